package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/fedbroker/internal/audit"
	"github.com/dropDatabas3/fedbroker/internal/session"
)

func TestHandleCallbackAccessDeniedIsCancelled(t *testing.T) {
	env := newTestEnv() // sin red: cualquier llamada revienta el test
	p := env.provider(t, ProviderConfig{TokenURL: "https://gov.example/token"})

	res := p.HandleCallback(context.Background(), CallbackParams{
		State: "st-1",
		Error: OAuthErrorAccessDenied,
	})

	if res.Status != CallbackCancelled {
		t.Fatalf("status = %q, want cancelled", res.Status)
	}
	if res.State != "st-1" {
		t.Fatalf("state echo = %q", res.State)
	}
	if env.transport.calls != 0 {
		t.Fatalf("cancellation made %d network calls", env.transport.calls)
	}
	if last := env.recorder.Last(); last.Code != audit.ErrLoginFailure {
		t.Fatalf("audit code = %q", last.Code)
	}
}

func TestHandleCallbackOtherOAuthErrorIsFailed(t *testing.T) {
	env := newTestEnv()
	p := env.provider(t, ProviderConfig{TokenURL: "https://gov.example/token"})

	res := p.HandleCallback(context.Background(), CallbackParams{
		State: "st-2",
		Error: OAuthErrorLoginRequired,
	})
	if res.Status != CallbackFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if res.Message == "" {
		t.Fatal("failed result must carry a user-facing message")
	}
	if env.transport.calls != 0 {
		t.Fatalf("failure made %d network calls", env.transport.calls)
	}
}

func TestHandleCallbackHappyPath(t *testing.T) {
	env := newTestEnv()
	env.allowNetwork()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get(ParamGrantType); got != GrantAuthorizationCode {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get(ParamCode); got != "auth-code-1" {
			t.Errorf("code = %q", got)
		}
		if got := r.PostForm.Get(ParamClientSecret); got != "plain-test-secret" {
			t.Errorf("client_secret = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "fed-tok-1", "token_type": "bearer"})
	}))
	defer tokenSrv.Close()

	profileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer fed-tok-1" {
			t.Errorf("profile auth = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sub":  "ext-42",
			"name": map[string]any{"first": "Ada", "last": "Lovelace"},
		})
	}))
	defer profileSrv.Close()

	p := env.provider(t, ProviderConfig{
		TokenURL:            tokenSrv.URL,
		ProfileURL:          profileSrv.URL,
		CreateUserIfMissing: true,
		StoreToken:          true,
		ProfileFields: ProfileFieldMap{
			ID:        ProfileField{Path: "sub"},
			FirstName: ProfileField{Path: "name.first"},
			LastName:  ProfileField{Path: "name.last"},
		},
	})

	ctx := context.Background()
	res := p.HandleCallback(ctx, CallbackParams{
		State: "st-3", Code: "auth-code-1", SessionID: "sess-cb",
		RedirectURI: "https://broker.example/broker/gov-id/endpoint",
	})

	if res.Status != CallbackAuthenticated {
		t.Fatalf("status = %q (message %q)", res.Status, res.Message)
	}
	ident := res.Identity
	if ident == nil || ident.ExternalUserID != "ext-42" || ident.FirstName != "Ada" {
		t.Fatalf("identity = %+v", ident)
	}
	if ident.LocalUserID == "" {
		t.Fatal("local user was not created")
	}
	if ident.FederatedAccessToken != "fed-tok-1" {
		t.Fatalf("federated access token = %q", ident.FederatedAccessToken)
	}
	if res.Token == nil || res.Token.AccessToken == "" || res.Token.SessionState != "st-3" {
		t.Fatalf("assertion response = %+v", res.Token)
	}
	if err := res.Token.Validate(); err != nil {
		t.Fatalf("assertion response invariant: %v", err)
	}

	// el vínculo federado quedó persistido con token (storeToken habilitado)
	rec, err := env.identities.Get(ctx, "citizens", ident.LocalUserID, "gov-id")
	if err != nil {
		t.Fatalf("federated identity lookup: %v", err)
	}
	if rec.Token == "" {
		t.Fatal("stored token is empty with store_token enabled")
	}
	var stored TokenResponse
	if err := json.Unmarshal([]byte(rec.Token), &stored); err != nil {
		t.Fatalf("stored token is not valid JSON: %v", err)
	}
	if stored.AccessToken == "" || stored.SessionState != "st-3" {
		t.Fatalf("stored token = %+v", stored)
	}

	if last := env.recorder.Last(); last.Outcome != "success" {
		t.Fatalf("audit outcome = %+v", last)
	}

	// AuthenticationFinished deja las notes listas para el exchange shortcut
	if err := p.AuthenticationFinished(ctx, "sess-cb", ident); err != nil {
		t.Fatalf("AuthenticationFinished: %v", err)
	}
	if got := env.notes.Get(ctx, "sess-cb", session.NoteFederatedAccessToken); got != "fed-tok-1" {
		t.Fatalf("cached token note = %q", got)
	}
	if got := env.notes.Get(ctx, "sess-cb", session.NoteIdentityProvider); got != "gov-id" {
		t.Fatalf("identity provider note = %q", got)
	}
}

func TestHandleCallbackBasicAuth(t *testing.T) {
	env := newTestEnv()
	env.allowNetwork()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "broker-client" || pass != "plain-test-secret" {
			t.Errorf("basic auth = %q/%q (ok=%v)", user, pass, ok)
		}
		if err := r.ParseForm(); err == nil && r.PostForm.Has(ParamClientSecret) {
			t.Error("client_secret leaked into the form with basic auth")
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "fed-tok-2"})
	}))
	defer tokenSrv.Close()

	profileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"sub": "ext-7"})
	}))
	defer profileSrv.Close()

	p := env.provider(t, ProviderConfig{
		TokenURL:            tokenSrv.URL,
		ProfileURL:          profileSrv.URL,
		BasicAuthentication: true,
		CreateUserIfMissing: true,
		ProfileFields:       ProfileFieldMap{ID: ProfileField{Path: "sub"}},
	})

	res := p.HandleCallback(context.Background(), CallbackParams{State: "st", Code: "c"})
	if res.Status != CallbackAuthenticated {
		t.Fatalf("status = %q (message %q)", res.Status, res.Message)
	}
}

func TestHandleCallbackMissingAccessToken(t *testing.T) {
	env := newTestEnv()
	env.allowNetwork()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"token_type": "bearer"})
	}))
	defer tokenSrv.Close()

	p := env.provider(t, ProviderConfig{
		TokenURL:      tokenSrv.URL,
		ProfileURL:    "https://gov.example/profile",
		ProfileFields: ProfileFieldMap{ID: ProfileField{Path: "sub"}},
	})

	res := p.HandleCallback(context.Background(), CallbackParams{State: "st", Code: "c"})
	if res.Status != CallbackFailed {
		t.Fatalf("status = %q", res.Status)
	}
	// nunca llegó al profile endpoint
	if env.transport.calls != 1 {
		t.Fatalf("network calls = %d, want 1", env.transport.calls)
	}
}

func TestHandleCallbackTokenEndpointDownIsGatewayFailure(t *testing.T) {
	env := newTestEnv()
	env.allowNetwork()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer tokenSrv.Close()

	p := env.provider(t, ProviderConfig{TokenURL: tokenSrv.URL})

	res := p.HandleCallback(context.Background(), CallbackParams{State: "st", Code: "c"})
	if res.Status != CallbackFailed || !res.Gateway {
		t.Fatalf("result = %+v, want gateway-class failure", res)
	}
}

func TestHandleCallbackUserNotFoundWithoutCreation(t *testing.T) {
	env := newTestEnv()
	env.allowNetwork()

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "fed-tok-3"})
	}))
	defer tokenSrv.Close()
	profileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"sub": "ghost"})
	}))
	defer profileSrv.Close()

	p := env.provider(t, ProviderConfig{
		TokenURL:      tokenSrv.URL,
		ProfileURL:    profileSrv.URL,
		ProfileFields: ProfileFieldMap{ID: ProfileField{Path: "sub"}},
		// CreateUserIfMissing deshabilitado
	})

	res := p.HandleCallback(context.Background(), CallbackParams{State: "st", Code: "c"})
	if res.Status != CallbackFailed {
		t.Fatalf("status = %q", res.Status)
	}
}
