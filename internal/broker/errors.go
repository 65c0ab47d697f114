package broker

import "fmt"

// Kind clasifica los fallos del broker según su origen. Nada cruza la API
// pública como error crudo de bajo nivel: parse/transporte se convierten en
// uno de estos kinds en el límite del componente.
type Kind int

const (
	// KindProtocol: respuesta de autorización malformada, code/token ausente.
	// Terminal por request, se reporta como fallo gateway-class.
	KindProtocol Kind = iota

	// KindCredential: fallo resolviendo o firmando credenciales. Nunca se
	// reintenta y nunca filtra el valor del secreto.
	KindCredential

	// KindLinkage: not-linked / token-expired. Terminal para el exchange;
	// recuperable re-iniciando el login completo.
	KindLinkage

	// KindUnsupportedRequest: requested_token_type no soportado.
	KindUnsupportedRequest

	// KindTransport: non-2xx o fallo de red en una llamada a colaborador.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindCredential:
		return "credential"
	case KindLinkage:
		return "linkage"
	case KindUnsupportedRequest:
		return "unsupported_request"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// Error es el error del broker con kind y causa opcional.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("broker [%s]: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("broker [%s]: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// IsKind reporta si err es un *Error del kind dado.
func IsKind(err error, kind Kind) bool {
	be, ok := err.(*Error)
	return ok && be.Kind == kind
}

// ExchangeOutcome nombra los fallos del token exchange.
type ExchangeOutcome string

const (
	OutcomeNotLinked       ExchangeOutcome = "not_linked"
	OutcomeTokenExpired    ExchangeOutcome = "token_expired"
	OutcomeUnsupportedType ExchangeOutcome = "unsupported_type"
	OutcomeInvalidRequest  ExchangeOutcome = "invalid_request"
)

// ExchangeError es el fallo estructurado del TokenExchangeRouter. Siempre
// lleva una razón machine-readable; el evento de auditoría se emite antes de
// construirlo.
type ExchangeError struct {
	Outcome ExchangeOutcome
	Reason  string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange %s: %s", e.Outcome, e.Reason)
}

// AsExchangeError extrae un *ExchangeError si err lo es.
func AsExchangeError(err error) (*ExchangeError, bool) {
	ee, ok := err.(*ExchangeError)
	return ee, ok
}

// ValidationError es el fallo del ExternalTokenValidator.
type ValidationError struct {
	Code   string // audit.ErrInvalidToken | audit.ErrInvalidTokenType
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("external token validation %s: %s", e.Code, e.Reason)
}
