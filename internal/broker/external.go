package broker

import (
	"context"

	"github.com/dropDatabas3/fedbroker/internal/audit"
	"github.com/dropDatabas3/fedbroker/internal/observability/logger"
	"github.com/dropDatabas3/fedbroker/internal/session"
)

// ValidateExternalToken valida un subject token emitido por el provider
// externo presentándolo contra el user-info endpoint. La identidad retornada
// sale del mapeo declarativo del JSON de perfil.
//
// Orden estricto: primero se valida la forma del request (token presente,
// tipo soportado) sin tocar la red; recién después se llama al endpoint.
// Todo fallo emite auditoría antes de retornar, como *ValidationError.
func (p *Provider) ValidateExternalToken(ctx context.Context, ec ExchangeContext) (*Identity, error) {
	ev := p.newEvent("external_token_exchange").
		Detail(audit.DetailIdentityProvider, p.cfg.Alias).
		Detail(audit.DetailValidationMethod, "user info")

	if !p.SupportsExternalExchange() {
		ev.Detail(audit.DetailReason, "external token exchange not supported")
		ev.Error(ctx, audit.ErrInvalidRequest)
		return nil, &ValidationError{Code: audit.ErrInvalidRequest, Reason: "external token exchange not supported"}
	}

	if ec.SubjectToken == "" {
		ev.Detail(audit.DetailReason, "subject_token not set")
		ev.Error(ctx, audit.ErrInvalidToken)
		return nil, &ValidationError{Code: audit.ErrInvalidToken, Reason: "subject_token not set"}
	}

	tokenType := ec.SubjectTokenType
	if tokenType == "" {
		tokenType = TokenTypeAccess
	}
	if tokenType != TokenTypeAccess {
		ev.Detail(audit.DetailReason, "subject_token_type unsupported")
		ev.Error(ctx, audit.ErrInvalidTokenType)
		return nil, &ValidationError{Code: audit.ErrInvalidTokenType, Reason: "subject_token_type unsupported"}
	}

	doc, err := p.getJSON(ctx, p.mapper.ProfileEndpoint(), ec.SubjectToken)
	if err != nil {
		logger.From(ctx).Warn("user info validation failed",
			logger.Component("broker.external"), logger.ProviderAlias(p.cfg.Alias), logger.Err(err))
		ev.Detail(audit.DetailReason, "user info call failure")
		ev.Error(ctx, audit.ErrInvalidToken)
		return nil, &ValidationError{Code: audit.ErrInvalidToken, Reason: "invalid token"}
	}

	ident, err := p.mapper.MapProfile(doc)
	if err != nil {
		ev.Detail(audit.DetailReason, "user info call failure")
		ev.Error(ctx, audit.ErrInvalidToken)
		return nil, &ValidationError{Code: audit.ErrInvalidToken, Reason: "invalid token"}
	}

	ident.ProviderAlias = p.cfg.Alias
	ident.FederatedAccessToken = ec.SubjectToken
	ev.Success(ctx)
	return ident, nil
}

// IssueAssertion firma una assertion fresca del broker (mismas claims y
// firma que la client assertion). Usada para responder exchanges externos.
func (p *Provider) IssueAssertion(ctx context.Context) (string, error) {
	return p.signAssertion(ctx)
}

// ExchangeExternalComplete deja la sesión marcada como ya-intercambiada con
// este provider y cachea el subject token, habilitando el shortcut de
// ExchangeToken para llamadas posteriores de la misma sesión.
func (p *Provider) ExchangeExternalComplete(ctx context.Context, sessionID string, ident *Identity, ec ExchangeContext) error {
	if p.notes == nil || sessionID == "" {
		return nil
	}

	tokenType := ec.SubjectTokenType
	if tokenType == "" {
		tokenType = TokenTypeAccess
	}
	if tokenType == TokenTypeAccess && ec.SubjectToken != "" {
		if err := p.notes.Set(ctx, sessionID, session.NoteFederatedAccessToken, ec.SubjectToken); err != nil {
			return err
		}
	}
	return p.notes.Set(ctx, sessionID, session.NoteExchangeProvider, p.cfg.Alias)
}
