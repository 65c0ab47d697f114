package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/fedbroker/internal/audit"
)

func externalProviderConfig(userInfoURL string) ProviderConfig {
	return ProviderConfig{
		UserInfoURL:               userInfoURL,
		ExternalExchangeSupported: true,
		ProfileFields: ProfileFieldMap{
			ID:        ProfileField{Path: "sub"},
			FirstName: ProfileField{Path: "given_name"},
			LastName:  ProfileField{Path: "family_name"},
		},
	}
}

func TestValidateExternalTokenMissingToken(t *testing.T) {
	env := newTestEnv() // sin red
	p := env.provider(t, externalProviderConfig("https://gov.example/userinfo"))

	_, err := p.ValidateExternalToken(context.Background(), ExchangeContext{})
	ve, ok := err.(*ValidationError)
	if !ok || ve.Code != audit.ErrInvalidToken {
		t.Fatalf("err = %v", err)
	}
	if env.transport.calls != 0 {
		t.Fatalf("validation made %d network calls before checking the request", env.transport.calls)
	}
	if last := env.recorder.Last(); last.Details[audit.DetailValidationMethod] != "user info" {
		t.Fatalf("audit = %+v", last)
	}
}

func TestValidateExternalTokenUnsupportedType(t *testing.T) {
	env := newTestEnv()
	p := env.provider(t, externalProviderConfig("https://gov.example/userinfo"))

	_, err := p.ValidateExternalToken(context.Background(), ExchangeContext{
		SubjectToken:     "tok",
		SubjectTokenType: TokenTypeID,
	})
	ve, ok := err.(*ValidationError)
	if !ok || ve.Code != audit.ErrInvalidTokenType {
		t.Fatalf("err = %v", err)
	}
	if env.transport.calls != 0 {
		t.Fatalf("network calls = %d", env.transport.calls)
	}
}

func TestValidateExternalTokenNotSupported(t *testing.T) {
	env := newTestEnv()
	p := env.provider(t, ProviderConfig{}) // provider sin external exchange

	_, err := p.ValidateExternalToken(context.Background(), ExchangeContext{SubjectToken: "tok"})
	ve, ok := err.(*ValidationError)
	if !ok || ve.Code != audit.ErrInvalidRequest {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateExternalTokenRejectedUpstream(t *testing.T) {
	env := newTestEnv()
	env.allowNetwork()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := env.provider(t, externalProviderConfig(srv.URL))
	_, err := p.ValidateExternalToken(context.Background(), ExchangeContext{SubjectToken: "bad-tok"})
	ve, ok := err.(*ValidationError)
	if !ok || ve.Code != audit.ErrInvalidToken {
		t.Fatalf("err = %v", err)
	}
}

func TestExternalExchangeEndToEnd(t *testing.T) {
	env := newTestEnv()
	env.allowNetwork()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ext-subject-tok" {
			t.Errorf("userinfo auth = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sub": "ext-99", "given_name": "Alan", "family_name": "Turing",
		})
	}))
	defer srv.Close()

	p := env.provider(t, externalProviderConfig(srv.URL))
	ctx := context.Background()
	ec := ExchangeContext{SubjectToken: "ext-subject-tok", SessionID: "sess-ext"}

	ident, err := p.ValidateExternalToken(ctx, ec)
	if err != nil {
		t.Fatalf("ValidateExternalToken: %v", err)
	}
	if ident.ExternalUserID != "ext-99" || ident.FirstName != "Alan" || ident.LastName != "Turing" {
		t.Fatalf("identity = %+v", ident)
	}
	if last := env.recorder.Last(); last.Outcome != "success" {
		t.Fatalf("audit = %+v", last)
	}

	if err := p.ExchangeExternalComplete(ctx, ec.SessionID, ident, ec); err != nil {
		t.Fatalf("ExchangeExternalComplete: %v", err)
	}

	// el exchange posterior de la misma sesión resuelve por shortcut, sin red
	calls := env.transport.calls
	resp, err := p.ExchangeToken(ctx, ExchangeContext{SessionID: ec.SessionID})
	if err != nil {
		t.Fatalf("ExchangeToken after external: %v", err)
	}
	if resp.AccessToken != "ext-subject-tok" {
		t.Fatalf("access token = %q", resp.AccessToken)
	}
	if env.transport.calls != calls {
		t.Fatal("shortcut exchange hit the network")
	}
}
