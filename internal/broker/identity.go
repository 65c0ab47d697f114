package broker

// Identity es la identidad federada derivada de un login o validación
// externa exitosa (BrokeredIdentityContext en otros brokers). Es transitoria:
// vive lo que dura el request, salvo que storeToken persista Token.
type Identity struct {
	// ExternalUserID es el subject id en el provider externo. Nunca vacío
	// en una identidad válida.
	ExternalUserID string

	Username  string
	FirstName string
	LastName  string

	// LocalUserID es el id del usuario local ya resuelto/creado, si aplica.
	LocalUserID string

	// ProviderAlias enlaza la identidad con la instancia de provider que
	// realizó el intercambio.
	ProviderAlias string

	// Code es el echo del state/code opaco del callback.
	Code string

	// FederatedAccessToken es el access token obtenido del provider,
	// disponible para cachear como session note al finalizar el login.
	FederatedAccessToken string

	// Token es la respuesta de token serializada, solo cuando storeToken
	// está habilitado.
	Token string
}

// AuthenticationRequest es el estado por-login consumido una vez por el
// AuthorizationRequestBuilder.
type AuthenticationRequest struct {
	// State es el request state opaco ya codificado, provisto por el caller.
	State string

	// RedirectURI es la URL de retorno registrada para este login.
	RedirectURI string

	// SessionID referencia la sesión de login origen; las client notes
	// (login_hint, prompt, acr_values, parámetros reenviados) se leen del
	// note store con este id.
	SessionID string

	// Locale resuelto para el request actual (ui_locales).
	Locale string
}

// ExchangeContext es el contexto de un token exchange entrante. Creado por
// request, consumido una vez.
type ExchangeContext struct {
	RequestedTokenType string
	SubjectToken       string
	SubjectTokenType   string
	SubjectIssuer      string

	RequestingClientID string
	SessionID          string
	UserID             string
	Realm              string
}
