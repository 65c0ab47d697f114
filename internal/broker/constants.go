package broker

// Parámetros OAuth2 del protocolo.
const (
	ParamAccessToken  = "access_token"
	ParamScope        = "scope"
	ParamState        = "state"
	ParamResponseType = "response_type"
	ParamRedirectURI  = "redirect_uri"
	ParamCode         = "code"
	ParamClientID     = "client_id"
	ParamClientSecret = "client_secret"
	ParamGrantType    = "grant_type"
	ParamLoginHint    = "login_hint"
	ParamUILocales    = "ui_locales"
	ParamPrompt       = "prompt"
	ParamACRValues    = "acr_values"

	ParamSubjectToken       = "subject_token"
	ParamSubjectTokenType   = "subject_token_type"
	ParamSubjectIssuer      = "subject_issuer"
	ParamRequestedTokenType = "requested_token_type"

	ParamClientAssertion     = "client_assertion"
	ParamClientAssertionType = "client_assertion_type"
)

// Grant types y URNs RFC 8693 / RFC 7523.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"

	ClientAssertionTypeJWT = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	TokenTypeAccess = "urn:ietf:params:oauth:token-type:access_token"
	TokenTypeID     = "urn:ietf:params:oauth:token-type:id_token"
)

// Métodos de autenticación del cliente.
const (
	AuthMethodClientSecretJWT = "client_secret_jwt"
	AuthMethodPrivateKeyJWT   = "private_key_jwt"
)

// Error codes del authorization endpoint externo.
const (
	OAuthErrorAccessDenied        = "access_denied"
	OAuthErrorLoginRequired       = "login_required"
	OAuthErrorInteractionRequired = "interaction_required"
)

// Claim extra en la respuesta de exchange con la URL de account linking.
const ClaimAccountLinkURL = "account-link-url"
