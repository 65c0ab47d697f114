package broker

import (
	"context"
	"strings"

	"github.com/google/uuid"

	core "github.com/dropDatabas3/fedbroker/internal/broker"
	httperrors "github.com/dropDatabas3/fedbroker/internal/http/errors"
	"github.com/dropDatabas3/fedbroker/internal/observability/logger"
	"github.com/dropDatabas3/fedbroker/internal/session"
)

type service struct {
	registry        *core.Registry
	notes           session.NoteStore
	externalBaseURL string
	defaultIssuer   string
}

// noteParams son los parámetros del login original que siempre se capturan
// como session notes si vienen en el query.
var noteParams = []string{
	session.NoteLoginHint,
	session.NotePrompt,
	session.NoteACRValues,
}

func (s *service) StartLogin(ctx context.Context, req StartLoginRequest) (*StartLoginResult, error) {
	p, ok := s.registry.Get(req.Realm, req.Alias)
	if !ok {
		return nil, httperrors.ErrProviderNotFound.WithDetail(req.Alias)
	}

	// El state es opaco y sirve también como id de la sesión de login.
	state := uuid.NewString()

	if s.notes != nil {
		for _, name := range noteParams {
			if v := strings.TrimSpace(req.Query.Get(name)); v != "" {
				if err := s.notes.Set(ctx, state, name, v); err != nil {
					return nil, err
				}
			}
		}
		for _, name := range core.ForwardParameterNames(p.Config().ForwardParameters) {
			if v := strings.TrimSpace(req.Query.Get(name)); v != "" {
				if err := s.notes.Set(ctx, state, session.NoteForwardedParamPrefix+name, v); err != nil {
					return nil, err
				}
			}
		}
	}

	redirectURL, err := p.BuildAuthorizationURL(ctx, core.AuthenticationRequest{
		State:       state,
		RedirectURI: s.callbackURI(req.Alias),
		SessionID:   state,
		Locale:      strings.TrimSpace(req.Query.Get("ui_locales")),
	})
	if err != nil {
		return nil, httperrors.ErrBadRequest.WithDetail("could not build authorization url").WithCause(err)
	}
	return &StartLoginResult{RedirectURL: redirectURL, State: state}, nil
}

func (s *service) Callback(ctx context.Context, req CallbackRequest) (core.CallbackResult, error) {
	p, ok := s.registry.Get(req.Realm, req.Alias)
	if !ok {
		return core.CallbackResult{}, httperrors.ErrProviderNotFound.WithDetail(req.Alias)
	}

	res := p.HandleCallback(ctx, core.CallbackParams{
		State:       req.State,
		Code:        req.Code,
		Error:       req.Error,
		SessionID:   req.State,
		RedirectURI: s.callbackURI(req.Alias),
	})

	if res.Status == core.CallbackAuthenticated {
		if err := p.AuthenticationFinished(ctx, req.State, res.Identity); err != nil {
			// el login ya es válido; perder el note solo deshabilita el
			// shortcut del exchange
			logger.From(ctx).Warn("could not persist session notes after login",
				logger.ProviderAlias(req.Alias), logger.Err(err))
		}
	}
	return res, nil
}

func (s *service) Exchange(ctx context.Context, req ExchangeRequest) (*core.TokenResponse, error) {
	ec := core.ExchangeContext{
		RequestedTokenType: req.Form.Get(core.ParamRequestedTokenType),
		SubjectToken:       req.Form.Get(core.ParamSubjectToken),
		SubjectTokenType:   req.Form.Get(core.ParamSubjectTokenType),
		SubjectIssuer:      req.Form.Get(core.ParamSubjectIssuer),
		RequestingClientID: req.Form.Get(core.ParamClientID),
		SessionID:          req.Form.Get("session_id"),
		UserID:             req.Form.Get("requested_subject"),
		Realm:              req.Realm,
	}

	// subject_token presente: exchange externo (token ajeno -> identidad).
	if ec.SubjectToken != "" || ec.SubjectIssuer != "" {
		return s.exchangeExternal(ctx, ec)
	}

	alias := req.Form.Get("requested_issuer")
	if alias == "" {
		return nil, &core.ExchangeError{Outcome: core.OutcomeInvalidRequest, Reason: "requested_issuer required"}
	}
	p, ok := s.registry.Get(req.Realm, alias)
	if !ok {
		return nil, httperrors.ErrProviderNotFound.WithDetail(alias)
	}
	return p.ExchangeToken(ctx, ec)
}

func (s *service) exchangeExternal(ctx context.Context, ec core.ExchangeContext) (*core.TokenResponse, error) {
	p, ok := s.registry.ForIssuer(ec.Realm, s.defaultIssuer, ec)
	if !ok {
		return nil, &core.ExchangeError{Outcome: core.OutcomeInvalidRequest, Reason: "invalid issuer"}
	}

	ident, err := p.ValidateExternalToken(ctx, ec)
	if err != nil {
		return nil, err
	}

	sessionID := ec.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := p.ExchangeExternalComplete(ctx, sessionID, ident, ec); err != nil {
		logger.From(ctx).Warn("could not record external exchange notes",
			logger.ProviderAlias(p.Alias()), logger.Err(err))
	}

	assertion, err := p.IssueAssertion(ctx)
	if err != nil {
		return nil, err
	}
	resp := p.NewAssertionResponse(sessionID, assertion)
	resp.SetExtra("issued_token_type", core.TokenTypeAccess)
	return resp, nil
}

func (s *service) RetrieveToken(ctx context.Context, realm, alias, userID string) (string, error) {
	p, ok := s.registry.Get(realm, alias)
	if !ok {
		return "", httperrors.ErrProviderNotFound.WithDetail(alias)
	}
	return p.RetrieveToken(ctx, userID)
}

func (s *service) callbackURI(alias string) string {
	return strings.TrimRight(s.externalBaseURL, "/") + "/broker/" + alias + "/endpoint"
}
