package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"

	"github.com/dropDatabas3/fedbroker/internal/audit"
	"github.com/dropDatabas3/fedbroker/internal/domain/repository"
	"github.com/dropDatabas3/fedbroker/internal/metrics"
	"github.com/dropDatabas3/fedbroker/internal/observability/logger"
	"github.com/dropDatabas3/fedbroker/internal/session"
)

// ExchangeToken resuelve un token exchange interno contra este provider.
// El árbol de decisión se evalúa en orden fijo:
//
//  1. Shortcut de sesión: si la sesión ya intercambió con este provider
//     (note EXCHANGE_PROVIDER == alias) y el token pedido está cacheado,
//     se responde desde las notes sin tocar el store.
//  2. requested_token_type distinto de access token: invalid_request.
//  3. Provider sin storeToken: se sirve el token de sesión, o falla con
//     not_linked / token_expired.
//  4. Provider con storeToken: se sirve el token persistido; un payload
//     ilegible limpia el token almacenado y falla con token_expired.
//
// Todo fallo emite su evento de auditoría antes de retornar y se reporta
// como *ExchangeError.
func (p *Provider) ExchangeToken(ctx context.Context, ec ExchangeContext) (*TokenResponse, error) {
	ev := p.newEvent("token_exchange").
		Detail(audit.DetailIdentityProvider, p.cfg.Alias)
	if ec.RequestingClientID != "" {
		ev.Detail("requesting_client", ec.RequestingClientID)
	}

	resp, err := p.exchangeFromContext(ctx, ev, ec)
	if err != nil {
		outcome := OutcomeInvalidRequest
		if ee, ok := AsExchangeError(err); ok {
			outcome = ee.Outcome
		}
		metrics.BrokerExchanges.WithLabelValues(p.cfg.Alias, string(outcome)).Inc()
		return nil, err
	}

	ev.Success(ctx)
	metrics.BrokerExchanges.WithLabelValues(p.cfg.Alias, "success").Inc()
	return resp, nil
}

func (p *Provider) exchangeFromContext(ctx context.Context, ev *audit.Event, ec ExchangeContext) (*TokenResponse, error) {
	requested := ec.RequestedTokenType
	if requested == "" {
		requested = TokenTypeAccess
	}

	// 1. Shortcut: la sesión ya pasó por un exchange con este provider.
	if p.note(ctx, ec.SessionID, session.NoteExchangeProvider) == p.cfg.Alias {
		switch requested {
		case TokenTypeAccess:
			if tok := p.note(ctx, ec.SessionID, session.NoteFederatedAccessToken); tok != "" {
				return p.issuedResponse(tok, "", requested), nil
			}
		case TokenTypeID:
			if tok := p.note(ctx, ec.SessionID, session.NoteFederatedIDToken); tok != "" {
				return p.issuedResponse("", tok, requested), nil
			}
		}
		// nota ausente: sigue por el camino normal
	}

	// 2. Solo access tokens fuera del shortcut.
	if requested != TokenTypeAccess {
		return nil, p.exchangeError(ctx, ev, OutcomeInvalidRequest, "requested_token_type unsupported")
	}

	if !p.cfg.StoreToken {
		return p.exchangeSessionToken(ctx, ev, ec)
	}
	return p.exchangeStoredToken(ctx, ev, ec)
}

// exchangeSessionToken sirve el access token federado cacheado en la sesión.
func (p *Provider) exchangeSessionToken(ctx context.Context, ev *audit.Event, ec ExchangeContext) (*TokenResponse, error) {
	linked := p.note(ctx, ec.SessionID, session.NoteIdentityProvider)
	if linked != p.cfg.Alias {
		return nil, p.exchangeError(ctx, ev, OutcomeNotLinked, "requested_issuer is not linked")
	}

	tok := p.note(ctx, ec.SessionID, session.NoteFederatedAccessToken)
	if tok == "" {
		return nil, p.exchangeError(ctx, ev, OutcomeTokenExpired, "requested_issuer token expired")
	}
	return p.issuedResponse(tok, "", TokenTypeAccess), nil
}

// exchangeStoredToken sirve la respuesta de token persistida junto al
// vínculo federado. Si el payload almacenado quedó ilegible o sin access
// token, se limpia (idempotente) y el exchange falla con token_expired.
func (p *Provider) exchangeStoredToken(ctx context.Context, ev *audit.Event, ec ExchangeContext) (*TokenResponse, error) {
	if p.identities == nil {
		return nil, p.exchangeError(ctx, ev, OutcomeNotLinked, "requested_issuer is not linked")
	}

	rec, err := p.identities.Get(ctx, p.realmOrDefault(ec.Realm), ec.UserID, p.cfg.Alias)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, p.exchangeError(ctx, ev, OutcomeNotLinked, "requested_issuer is not linked")
		}
		logger.From(ctx).Error("federated identity lookup failed",
			logger.Component("broker.exchange"), logger.ProviderAlias(p.cfg.Alias), logger.Err(err))
		return nil, p.exchangeError(ctx, ev, OutcomeInvalidRequest, "identity store failure")
	}
	if rec.Token == "" {
		return nil, p.exchangeError(ctx, ev, OutcomeNotLinked, "requested_issuer is not linked")
	}

	var stored TokenResponse
	if err := json.Unmarshal([]byte(rec.Token), &stored); err != nil || stored.AccessToken == "" {
		p.clearStoredToken(ctx, rec)
		return nil, p.exchangeError(ctx, ev, OutcomeTokenExpired, "requested_issuer token expired")
	}

	resp := p.issuedResponse(stored.AccessToken, "", TokenTypeAccess)
	resp.Scope = stored.Scope
	resp.SessionState = stored.SessionState
	if link := p.accountLinkURL(); link != "" {
		resp.SetExtra(ClaimAccountLinkURL, link)
	}
	return resp, nil
}

// clearStoredToken borra el token persistido. Fallar acá no cambia el
// outcome del exchange; solo se loguea.
func (p *Provider) clearStoredToken(ctx context.Context, rec *repository.FederatedIdentityRecord) {
	cleared := *rec
	cleared.Token = ""
	cleared.UpdatedAt = p.now().UTC()
	if err := p.identities.Update(ctx, &cleared); err != nil {
		logger.From(ctx).Warn("could not clear stored federated token",
			logger.Component("broker.exchange"), logger.ProviderAlias(p.cfg.Alias), logger.Err(err))
	}
}

func (p *Provider) issuedResponse(accessToken, idToken, issuedType string) *TokenResponse {
	resp := &TokenResponse{
		AccessToken: accessToken,
		IDToken:     idToken,
		TokenType:   "bearer",
	}
	resp.SetExtra("issued_token_type", issuedType)
	return resp
}

// accountLinkURL arma la URL de account-linking incluida como claim extra.
func (p *Provider) accountLinkURL() string {
	if p.cfg.LinkBaseURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("provider", p.cfg.Alias)
	q.Set("realm", p.cfg.Realm)
	return p.cfg.LinkBaseURL + "?" + q.Encode()
}

func (p *Provider) realmOrDefault(realm string) string {
	if realm != "" {
		return realm
	}
	return p.cfg.Realm
}

// exchangeError emite el evento de auditoría del fallo y construye el
// *ExchangeError correspondiente.
func (p *Provider) exchangeError(ctx context.Context, ev *audit.Event, outcome ExchangeOutcome, reason string) error {
	ev.Detail(audit.DetailReason, reason)
	switch outcome {
	case OutcomeInvalidRequest, OutcomeUnsupportedType:
		ev.Error(ctx, audit.ErrInvalidRequest)
	default:
		ev.Error(ctx, audit.ErrInvalidToken)
	}
	return &ExchangeError{Outcome: outcome, Reason: reason}
}
