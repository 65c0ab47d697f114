package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/fedbroker/internal/broker"
	cachemem "github.com/dropDatabas3/fedbroker/internal/cache/memory"
	brokersvc "github.com/dropDatabas3/fedbroker/internal/http/services/broker"
	"github.com/dropDatabas3/fedbroker/internal/jwt"
	"github.com/dropDatabas3/fedbroker/internal/session"
	storemem "github.com/dropDatabas3/fedbroker/internal/store/memory"
)

// newTestServer levanta el stack completo contra IdP falsos (httptest).
func newTestServer(t *testing.T) (*httptest.Server, *httptest.Server) {
	t.Helper()

	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			_ = r.ParseForm()
			if r.PostForm.Get("code") != "good-code" {
				http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "idp-access-token"})
		case "/profile":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sub": "citizen-1", "name": map[string]any{"first": "Ada", "last": "Lovelace"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(idp.Close)

	signer, err := jwt.GenerateIssuer()
	require.NoError(t, err)

	notes := session.NewStore(cachemem.New(time.Hour, "rt:"), time.Hour)
	reg := broker.NewRegistry()
	require.NoError(t, reg.Add(broker.NewProvider(broker.ProviderConfig{
		Alias:               "gov-id",
		Realm:               "citizens",
		AuthorizationURL:    idp.URL + "/oauth/authorize",
		TokenURL:            idp.URL + "/oauth/token",
		ProfileURL:          idp.URL + "/profile",
		ClientID:            "broker-client",
		ClientSecretRef:     "test-secret",
		CreateUserIfMissing: true,
		ForwardParameters:   "audience",
		ProfileFields: broker.ProfileFieldMap{
			ID:        broker.ProfileField{Path: "sub"},
			FirstName: broker.ProfileField{Path: "name.first"},
			LastName:  broker.ProfileField{Path: "name.last"},
		},
	}, broker.Deps{
		Signer:     signer,
		Users:      storemem.NewUsers(),
		Identities: storemem.NewFederatedIdentities(),
		Notes:      notes,
	})))

	app := httptest.NewServer(New(Deps{Service: brokersvc.New(brokersvc.Deps{
		Registry:        reg,
		Notes:           notes,
		ExternalBaseURL: "https://broker.example",
	})}))
	t.Cleanup(app.Close)
	return app, idp
}

func noRedirects(c *http.Client) *http.Client {
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c
}

func TestLoginRedirectsToProvider(t *testing.T) {
	app, idp := newTestServer(t)
	client := noRedirects(app.Client())

	resp, err := client.Get(app.URL + "/broker/gov-id/login?realm=citizens&audience=api%3A%2F%2Fpay")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(loc.String(), idp.URL+"/oauth/authorize"))

	q := loc.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "broker-client", q.Get("client_id"))
	require.NotEmpty(t, q.Get("state"))
	require.Equal(t, "https://broker.example/broker/gov-id/endpoint", q.Get("redirect_uri"))
	// parámetro declarado en forward_parameters, relayed desde el login
	require.Equal(t, "api://pay", q.Get("audience"))
}

func TestCallbackAndSessionExchange(t *testing.T) {
	app, _ := newTestServer(t)
	client := noRedirects(app.Client())

	// 1. login para obtener un state real
	resp, err := client.Get(app.URL + "/broker/gov-id/login?realm=citizens")
	require.NoError(t, err)
	resp.Body.Close()
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	// 2. callback con code válido
	resp, err = client.Get(app.URL + "/broker/gov-id/endpoint?realm=citizens&state=" + state + "&code=good-code")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tok broker.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))
	require.NotEmpty(t, tok.AccessToken)
	require.Equal(t, state, tok.SessionState)

	// 3. exchange sobre la sesión recién autenticada
	form := url.Values{}
	form.Set("realm", "citizens")
	form.Set("requested_issuer", "gov-id")
	form.Set("session_id", state)
	resp, err = client.PostForm(app.URL+"/broker/token/exchange", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var exch broker.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&exch))
	require.Equal(t, "idp-access-token", exch.AccessToken)
	require.Equal(t, broker.TokenTypeAccess, exch.IssuedTokenType())
}

func TestCallbackCancelled(t *testing.T) {
	app, _ := newTestServer(t)

	resp, err := app.Client().Get(app.URL + "/broker/gov-id/endpoint?realm=citizens&state=s1&error=access_denied")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "access_denied", body["error"])
}

func TestExchangeNotLinked(t *testing.T) {
	app, _ := newTestServer(t)

	form := url.Values{}
	form.Set("realm", "citizens")
	form.Set("requested_issuer", "gov-id")
	form.Set("session_id", "unknown-session")
	resp, err := app.Client().PostForm(app.URL+"/broker/token/exchange", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "invalid_token", body["error"])
}

func TestUnknownProvider(t *testing.T) {
	app, _ := newTestServer(t)

	resp, err := noRedirects(app.Client()).Get(app.URL + "/broker/nope/login?realm=citizens")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	app, _ := newTestServer(t)

	resp, err := app.Client().Get(app.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
