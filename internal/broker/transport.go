package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/fedbroker/internal/metrics"
)

// límite de lectura del body de colaboradores externos (1 MB)
const maxResponseBody = 1 << 20

// tokenRequest es el request saliente al token endpoint antes de que el
// ClientAuthenticator le adjunte credenciales.
type tokenRequest struct {
	URL  string
	Form url.Values

	// basicUser/basicPass se setean cuando la autenticación es HTTP Basic.
	basicUser string
	basicPass string
}

func newTokenRequest(tokenURL string) *tokenRequest {
	return &tokenRequest{URL: tokenURL, Form: url.Values{}}
}

func (t *tokenRequest) set(k, v string) { t.Form.Set(k, v) }

// send ejecuta el POST form-urlencoded y retorna el body crudo. Non-2xx es
// un fallo de transporte terminal; no hay retry.
func (p *Provider) send(ctx context.Context, tr *tokenRequest) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tr.URL, strings.NewReader(tr.Form.Encode()))
	if err != nil {
		return "", wrapError(KindTransport, "build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if tr.basicUser != "" {
		req.SetBasicAuth(tr.basicUser, tr.basicPass)
	}

	start := time.Now()
	resp, err := p.http.Do(req)
	if err != nil {
		return "", wrapError(KindTransport, fmt.Sprintf("failed to invoke url [%s]", tr.URL), err)
	}
	defer resp.Body.Close()
	metrics.BrokerTokenRequestLatency.Observe(float64(time.Since(start).Milliseconds()))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", wrapError(KindTransport, "read token response", err)
	}
	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("failed to invoke url [%s]", tr.URL)
		}
		return "", newError(KindTransport, fmt.Sprintf("token endpoint status %d: %s", resp.StatusCode, msg))
	}
	return string(body), nil
}

// getJSON hace un GET autenticado con Bearer y exige 200 + JSON parseable.
func (p *Provider) getJSON(ctx context.Context, rawURL, bearer string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, wrapError(KindTransport, "build request", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, wrapError(KindTransport, fmt.Sprintf("failed to invoke url [%s]", rawURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, wrapError(KindTransport, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindTransport, fmt.Sprintf("url [%s] status %d", rawURL, resp.StatusCode))
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, wrapError(KindProtocol, "response is not valid JSON", err)
	}
	return doc, nil
}

// profileFetcher es el IdentityFetcher por defecto: GET al profile endpoint
// con el access token y mapeo declarativo de campos.
type profileFetcher struct {
	p *Provider
}

func (f *profileFetcher) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	if f.p.cfg.ProfileURL == "" {
		return nil, newError(KindProtocol, "provider has no profile endpoint configured")
	}
	doc, err := f.p.getJSON(ctx, f.p.cfg.ProfileURL, accessToken)
	if err != nil {
		return nil, err
	}
	return mapIdentity(f.p.cfg.ProfileFields, doc)
}

// declarativeMapper implementa ProfileMapper con el field map configurado.
type declarativeMapper struct {
	endpoint string
	fields   ProfileFieldMap
}

func (m *declarativeMapper) ProfileEndpoint() string { return m.endpoint }

func (m *declarativeMapper) MapProfile(profile map[string]any) (*Identity, error) {
	return mapIdentity(m.fields, profile)
}
