package broker

import (
	"context"
	"net/url"
	"testing"

	"github.com/dropDatabas3/fedbroker/internal/session"
)

func TestBuildAuthorizationURL(t *testing.T) {
	env := newTestEnv()
	p := env.provider(t, ProviderConfig{
		AuthorizationURL: "https://gov.example/oauth/authorize",
		DefaultScope:     "openid profile",
	})

	raw, err := p.BuildAuthorizationURL(context.Background(), AuthenticationRequest{
		State:       "opaque-state-123",
		RedirectURI: "https://broker.example/broker/gov-id/endpoint",
	})
	if err != nil {
		t.Fatalf("BuildAuthorizationURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	q := u.Query()

	want := map[string]string{
		ParamScope:        "openid profile",
		ParamState:        "opaque-state-123",
		ParamResponseType: "code",
		ParamClientID:     "broker-client",
		ParamRedirectURI:  "https://broker.example/broker/gov-id/endpoint",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	if env.transport.calls != 0 {
		t.Fatalf("building the URL made %d network calls", env.transport.calls)
	}
}

func TestBuildAuthorizationURLForwardsDeclaredParams(t *testing.T) {
	env := newTestEnv()
	p := env.provider(t, ProviderConfig{
		AuthorizationURL:  "https://gov.example/oauth/authorize",
		ForwardParameters: "audience, resource",
	})

	ctx := context.Background()
	const sid = "sess-1"
	env.notes.Set(ctx, sid, session.NoteForwardedParamPrefix+"audience", "api://payments")
	// "resource" nunca llegó en el login original
	env.notes.Set(ctx, sid, session.NoteForwardedParamPrefix+"undeclared", "dropped")

	raw, err := p.BuildAuthorizationURL(ctx, AuthenticationRequest{
		State: "s", RedirectURI: "https://broker.example/cb", SessionID: sid,
	})
	if err != nil {
		t.Fatalf("BuildAuthorizationURL: %v", err)
	}
	q := mustQuery(t, raw)

	if got := q.Get("audience"); got != "api://payments" {
		t.Errorf("audience = %q", got)
	}
	if q.Has("resource") {
		t.Error("resource forwarded without a captured value")
	}
	if q.Has("undeclared") {
		t.Error("param outside the declared forward list was forwarded")
	}
}

func TestBuildAuthorizationURLPromptPrecedence(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	const sid = "sess-2"
	env.notes.Set(ctx, sid, session.NotePrompt, "consent")
	env.notes.Set(ctx, sid, session.NoteLoginHint, "12345678901")
	env.notes.Set(ctx, sid, session.NoteACRValues, "loa-3")

	p := env.provider(t, ProviderConfig{
		AuthorizationURL: "https://gov.example/oauth/authorize",
		Prompt:           "login",
		LoginHint:        true,
		UILocales:        true,
	})
	raw, err := p.BuildAuthorizationURL(ctx, AuthenticationRequest{
		State: "s", RedirectURI: "https://broker.example/cb", SessionID: sid, Locale: "tr",
	})
	if err != nil {
		t.Fatalf("BuildAuthorizationURL: %v", err)
	}
	q := mustQuery(t, raw)

	// el prompt configurado pisa la client note
	if got := q.Get(ParamPrompt); got != "login" {
		t.Errorf("prompt = %q, want %q", got, "login")
	}
	if got := q.Get(ParamLoginHint); got != "12345678901" {
		t.Errorf("login_hint = %q", got)
	}
	if got := q.Get(ParamUILocales); got != "tr" {
		t.Errorf("ui_locales = %q", got)
	}
	if got := q.Get(ParamACRValues); got != "loa-3" {
		t.Errorf("acr_values = %q", got)
	}
}

func TestBuildAuthorizationURLMalformedBase(t *testing.T) {
	env := newTestEnv()
	p := env.provider(t, ProviderConfig{AuthorizationURL: "not a url"})

	_, err := p.BuildAuthorizationURL(context.Background(), AuthenticationRequest{State: "s"})
	if err == nil {
		t.Fatal("expected error for malformed authorization url")
	}
	if !IsKind(err, KindProtocol) {
		t.Fatalf("error kind = %v, want protocol", err)
	}
}

func mustQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u.Query()
}
