// Package audit registra eventos auditables del broker (login federado,
// token exchange). Cada outcome de fallo registra detail/reason y un error
// code antes de retornar, de modo que toda decisión quede trazable.
package audit

import (
	"context"
	"sort"
	"time"

	"github.com/dropDatabas3/fedbroker/internal/observability/logger"
	"go.uber.org/zap"
)

// Claves de detail conocidas.
const (
	DetailReason           = "reason"
	DetailValidationMethod = "validation_method"
	DetailIdentityProvider = "identity_provider"
)

// Error codes conocidos.
const (
	ErrInvalidRequest   = "invalid_request"
	ErrInvalidToken     = "invalid_token"
	ErrInvalidTokenType = "invalid_token_type"
	ErrLoginFailure     = "identity_provider_login_failure"
)

// Sink recibe los eventos terminados. La implementación por defecto escribe
// al logger estructurado; los tests usan un Recorder.
type Sink interface {
	Write(ctx context.Context, e Entry)
}

// Entry es un evento auditado ya cerrado.
type Entry struct {
	Type    string
	Outcome string // "success" | "error"
	Code    string // error code, vacío en success
	Details map[string]string
	At      time.Time
}

// Event acumula detalles y emite exactamente un outcome (Success o Error).
type Event struct {
	typ     string
	details map[string]string
	sink    Sink
	done    bool
}

// New crea un Event del tipo dado sobre el sink. sink nil usa el logger.
func New(typ string, sink Sink) *Event {
	if sink == nil {
		sink = LogSink{}
	}
	return &Event{typ: typ, details: map[string]string{}, sink: sink}
}

// Detail agrega un par clave/valor al evento. Encadenable.
func (e *Event) Detail(k, v string) *Event {
	e.details[k] = v
	return e
}

// Error cierra el evento con el code dado. Segunda llamada es no-op.
func (e *Event) Error(ctx context.Context, code string) {
	if e.done {
		return
	}
	e.done = true
	e.sink.Write(ctx, Entry{Type: e.typ, Outcome: "error", Code: code, Details: e.details, At: time.Now().UTC()})
}

// Success cierra el evento como exitoso. Segunda llamada es no-op.
func (e *Event) Success(ctx context.Context) {
	if e.done {
		return
	}
	e.done = true
	e.sink.Write(ctx, Entry{Type: e.typ, Outcome: "success", Details: e.details, At: time.Now().UTC()})
}

// LogSink escribe entries al logger estructurado.
type LogSink struct{}

func (LogSink) Write(ctx context.Context, e Entry) {
	fields := []zap.Field{
		zap.String("audit_event", e.Type),
		zap.String("outcome", e.Outcome),
	}
	if e.Code != "" {
		fields = append(fields, zap.String("error_code", e.Code))
	}
	// orden estable para que los logs sean comparables
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.String("detail_"+k, e.Details[k]))
	}
	if e.Outcome == "error" {
		logger.From(ctx).Warn("audit", fields...)
		return
	}
	logger.From(ctx).Info("audit", fields...)
}

// Recorder es un Sink para tests: acumula entries en memoria.
type Recorder struct {
	Entries []Entry
}

func (r *Recorder) Write(_ context.Context, e Entry) {
	r.Entries = append(r.Entries, e)
}

// Last retorna el último entry o zero value.
func (r *Recorder) Last() Entry {
	if len(r.Entries) == 0 {
		return Entry{}
	}
	return r.Entries[len(r.Entries)-1]
}
