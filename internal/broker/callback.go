package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dropDatabas3/fedbroker/internal/audit"
	"github.com/dropDatabas3/fedbroker/internal/domain/repository"
	"github.com/dropDatabas3/fedbroker/internal/metrics"
	"github.com/dropDatabas3/fedbroker/internal/observability/logger"
	"github.com/dropDatabas3/fedbroker/internal/session"
	"go.uber.org/zap"
)

// CallbackStatus es el estado terminal del callback de login.
type CallbackStatus string

const (
	CallbackAuthenticated CallbackStatus = "authenticated"
	CallbackCancelled     CallbackStatus = "cancelled"
	CallbackFailed        CallbackStatus = "failed"
)

// CallbackParams son los query params del redirect-back.
type CallbackParams struct {
	State string
	Code  string
	Error string

	// SessionID de la sesión de login que originó el redirect.
	SessionID string

	// RedirectURI es la URL de callback del broker, repetida en el token
	// request como exige el grant authorization_code.
	RedirectURI string
}

// CallbackResult es el único outcome emitido por el callback: exactamente
// uno por invocación.
type CallbackResult struct {
	Status   CallbackStatus
	State    string
	Identity *Identity

	// Token es la TokenResponse sintetizada (assertion firmada por el
	// broker), solo en Authenticated.
	Token *TokenResponse

	// Message es el mensaje user-facing en Failed.
	Message string

	// Gateway marca fallos de colaboradores externos (Bad-Gateway-class).
	Gateway bool
}

// Mensajes user-facing de fallo. El detalle real queda en logs/audit.
const (
	msgLoginFailed     = "identity provider login failed"
	msgProfileFailed   = "could not obtain user data from identity provider"
	msgUnexpectedError = "unexpected error when authenticating with identity provider"
)

// HandleCallback corre la máquina de estados del login federado:
//
//	AwaitingRedirect -> TokenRequested -> IdentityResolved ->
//	{Authenticated | Cancelled | Failed}
//
// El orden es estrictamente lineal por invocación: token request, luego
// profile lookup, luego construcción de la identidad. Ningún paso se
// reintenta; cualquier fallo es terminal para este flujo.
func (p *Provider) HandleCallback(ctx context.Context, params CallbackParams) CallbackResult {
	log := logger.From(ctx).With(
		logger.Component("broker.callback"),
		logger.ProviderAlias(p.cfg.Alias),
	)
	ev := p.newEvent("federated_login").
		Detail(audit.DetailIdentityProvider, p.cfg.Alias)

	res := p.runCallback(ctx, log, ev, params)

	switch res.Status {
	case CallbackAuthenticated:
		ev.Success(ctx)
	case CallbackCancelled:
		ev.Detail(audit.DetailReason, OAuthErrorAccessDenied).Error(ctx, audit.ErrLoginFailure)
	default:
		ev.Error(ctx, audit.ErrLoginFailure)
	}
	metrics.BrokerLogins.WithLabelValues(p.cfg.Alias, string(res.Status)).Inc()
	return res
}

func (p *Provider) runCallback(ctx context.Context, log *zap.Logger, ev *audit.Event, params CallbackParams) CallbackResult {
	// 1. Error del authorization endpoint: terminal, sin llamadas de red.
	if params.Error != "" {
		log.Warn("authorization endpoint returned error", logger.String("oauth_error", params.Error))
		if params.Error == OAuthErrorAccessDenied {
			return CallbackResult{Status: CallbackCancelled, State: params.State}
		}
		// login_required / interaction_required / cualquier otro code
		ev.Detail(audit.DetailReason, params.Error)
		return CallbackResult{Status: CallbackFailed, State: params.State, Message: msgLoginFailed}
	}

	if params.Code == "" {
		ev.Detail(audit.DetailReason, "missing authorization code")
		return CallbackResult{Status: CallbackFailed, State: params.State, Message: msgLoginFailed}
	}

	// 2. TokenRequested: code -> token, autenticado por el ClientAuthenticator.
	tr, err := p.generateTokenRequest(ctx, params.Code, params.RedirectURI)
	if err != nil {
		log.Error("could not build token request", logger.Err(err))
		ev.Detail(audit.DetailReason, "token request construction failed")
		return CallbackResult{Status: CallbackFailed, State: params.State, Message: msgUnexpectedError}
	}
	body, err := p.send(ctx, tr)
	if err != nil {
		log.Error("token request failed", logger.Err(err))
		ev.Detail(audit.DetailReason, "token endpoint failure")
		return CallbackResult{Status: CallbackFailed, State: params.State, Message: msgLoginFailed, Gateway: true}
	}

	accessToken, err := ExtractToken(body, ParamAccessToken)
	if err != nil {
		log.Error("could not parse token response", logger.Err(err))
		ev.Detail(audit.DetailReason, "token response unparseable")
		return CallbackResult{Status: CallbackFailed, State: params.State, Message: msgLoginFailed, Gateway: true}
	}
	if accessToken == "" {
		log.Error("no access token in token response")
		ev.Detail(audit.DetailReason, "no access token in response")
		return CallbackResult{Status: CallbackFailed, State: params.State, Message: msgLoginFailed}
	}

	// 3. IdentityResolved: lookup de perfil con el access token.
	ident, err := p.fetcher.FetchIdentity(ctx, accessToken)
	if err != nil {
		log.Error("identity lookup failed", logger.Err(err))
		ev.Detail(audit.DetailReason, "profile lookup failure")
		return CallbackResult{
			Status: CallbackFailed, State: params.State,
			Message: msgProfileFailed, Gateway: IsKind(err, KindTransport),
		}
	}
	ident.ProviderAlias = p.cfg.Alias
	ident.Code = params.State
	ident.FederatedAccessToken = accessToken

	// Resolución del usuario local, con creación opcional.
	user, err := p.resolveLocalUser(ctx, ident)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("local user not found and creation disabled", logger.ExternalUserID(ident.ExternalUserID))
			ev.Detail(audit.DetailReason, "user not found")
			return CallbackResult{Status: CallbackFailed, State: params.State, Message: msgLoginFailed}
		}
		log.Error("local user resolution failed", logger.Err(err))
		ev.Detail(audit.DetailReason, "user store failure")
		return CallbackResult{Status: CallbackFailed, State: params.State, Message: msgUnexpectedError}
	}
	ident.LocalUserID = user.ID

	// 4. Identity assertion + TokenResponse sintetizada.
	assertion, err := p.signAssertion(ctx)
	if err != nil {
		log.Error("could not sign identity assertion", logger.Err(err))
		ev.Detail(audit.DetailReason, "assertion signing failure")
		return CallbackResult{Status: CallbackFailed, State: params.State, Message: msgUnexpectedError}
	}

	if p.cfg.StoreToken && ident.Token == "" {
		// no pisar un token que el fetcher ya haya seteado
		ident.Token = p.serializeTokenInfo(params.State, assertion)
	}

	if err := p.persistFederatedIdentity(ctx, user, ident); err != nil {
		log.Error("could not persist federated identity", logger.Err(err))
		ev.Detail(audit.DetailReason, "identity store failure")
		return CallbackResult{Status: CallbackFailed, State: params.State, Message: msgUnexpectedError}
	}

	return CallbackResult{
		Status:   CallbackAuthenticated,
		State:    params.State,
		Identity: ident,
		Token:    p.NewAssertionResponse(params.State, assertion),
	}
}

// resolveLocalUser busca el usuario local por el subject externo; si no
// existe y la creación está habilitada, crea uno habilitado.
func (p *Provider) resolveLocalUser(ctx context.Context, ident *Identity) (*repository.User, error) {
	user, err := p.users.GetByUsername(ctx, p.cfg.Realm, ident.Username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if !p.cfg.CreateUserIfMissing {
		return nil, repository.ErrNotFound
	}
	return p.users.Create(ctx, repository.CreateUserInput{
		Realm:    p.cfg.Realm,
		Username: ident.Username,
	})
}

func (p *Provider) persistFederatedIdentity(ctx context.Context, user *repository.User, ident *Identity) error {
	if p.identities == nil {
		return nil
	}
	return p.identities.Upsert(ctx, &repository.FederatedIdentityRecord{
		UserID:         user.ID,
		Realm:          p.cfg.Realm,
		ProviderAlias:  p.cfg.Alias,
		ExternalUserID: ident.ExternalUserID,
		Username:       ident.Username,
		Token:          ident.Token,
		UpdatedAt:      p.now().UTC(),
	})
}

// serializeTokenInfo arma el payload de token que se persiste cuando
// storeToken está habilitado.
func (p *Provider) serializeTokenInfo(state, token string) string {
	b, _ := json.Marshal(TokenResponse{
		AccessToken:  token,
		SessionState: state,
		Scope:        p.cfg.DefaultScope,
		TokenType:    "bearer",
	})
	return string(b)
}

// NewAssertionResponse sintetiza la TokenResponse devuelta al completar el
// login (token firmado por el broker, no el del provider).
func (p *Provider) NewAssertionResponse(state, token string) *TokenResponse {
	return &TokenResponse{
		AccessToken:  token,
		TokenType:    "bearer",
		ExpiresIn:    int64(p.cfg.AssertionLifespan / time.Second),
		SessionState: state,
		Scope:        p.cfg.DefaultScope,
	}
}

// AuthenticationFinished cachea el access token federado como session note
// una vez que el login completó, para el shortcut del exchange.
func (p *Provider) AuthenticationFinished(ctx context.Context, sessionID string, ident *Identity) error {
	if p.notes == nil || sessionID == "" || ident == nil || ident.FederatedAccessToken == "" {
		return nil
	}
	if err := p.notes.Set(ctx, sessionID, session.NoteFederatedAccessToken, ident.FederatedAccessToken); err != nil {
		return err
	}
	return p.notes.Set(ctx, sessionID, session.NoteIdentityProvider, p.cfg.Alias)
}

// RetrieveToken retorna la respuesta de token cruda almacenada para la
// identidad federada del usuario, o ErrNotFound si no hay vínculo.
func (p *Provider) RetrieveToken(ctx context.Context, userID string) (string, error) {
	rec, err := p.identities.Get(ctx, p.cfg.Realm, userID, p.cfg.Alias)
	if err != nil {
		return "", err
	}
	if rec.Token == "" {
		return "", repository.ErrNotFound
	}
	return rec.Token, nil
}
