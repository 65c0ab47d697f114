// Package broker contiene los services HTTP del broker de federación.
package broker

import (
	"context"
	"net/url"

	core "github.com/dropDatabas3/fedbroker/internal/broker"
	"github.com/dropDatabas3/fedbroker/internal/session"
)

// StartLoginRequest inicia un login federado.
type StartLoginRequest struct {
	Realm string
	Alias string

	// Query trae los parámetros del request de login original; los que el
	// provider declara en forward_parameters (más login_hint/prompt/
	// acr_values) se capturan como session notes.
	Query url.Values
}

// StartLoginResult es la redirección al authorization endpoint externo.
type StartLoginResult struct {
	RedirectURL string

	// State identifica el flujo; vuelve en el callback y es también el id
	// de la sesión de login para las notes.
	State string
}

// CallbackRequest son los parámetros del redirect-back del provider.
type CallbackRequest struct {
	Realm string
	Alias string
	State string
	Code  string
	Error string
}

// ExchangeRequest es el form de POST /broker/token/exchange.
type ExchangeRequest struct {
	Realm string
	Form  url.Values
}

// Service es la fachada HTTP sobre el core del broker.
type Service interface {
	// StartLogin resuelve el provider y construye la authorization URL.
	StartLogin(ctx context.Context, req StartLoginRequest) (*StartLoginResult, error)

	// Callback corre la máquina de estados del login y finaliza la sesión
	// en caso de éxito.
	Callback(ctx context.Context, req CallbackRequest) (core.CallbackResult, error)

	// Exchange rutea un token exchange interno o externo según el form.
	Exchange(ctx context.Context, req ExchangeRequest) (*core.TokenResponse, error)

	// RetrieveToken devuelve la respuesta de token cruda almacenada para el
	// usuario en el provider.
	RetrieveToken(ctx context.Context, realm, alias, userID string) (string, error)
}

// Deps contiene las dependencias para crear el service.
type Deps struct {
	Registry *core.Registry
	Notes    session.NoteStore

	// ExternalBaseURL arma las redirect URIs de callback.
	ExternalBaseURL string

	// DefaultIssuer para external exchanges sin subject_issuer.
	DefaultIssuer string
}

// New crea el Service.
func New(d Deps) Service {
	return &service{
		registry:        d.Registry,
		notes:           d.Notes,
		externalBaseURL: d.ExternalBaseURL,
		defaultIssuer:   d.DefaultIssuer,
	}
}
