package broker

import (
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/fedbroker/internal/audit"
	core "github.com/dropDatabas3/fedbroker/internal/broker"
	httperrors "github.com/dropDatabas3/fedbroker/internal/http/errors"
	svc "github.com/dropDatabas3/fedbroker/internal/http/services/broker"
	"github.com/dropDatabas3/fedbroker/internal/observability/logger"
)

// ExchangeController maneja el token exchange RFC 8693.
type ExchangeController struct {
	service svc.Service
}

// NewExchangeController crea el controller.
func NewExchangeController(service svc.Service) *ExchangeController {
	return &ExchangeController{service: service}
}

// Exchange maneja POST /broker/token/exchange (form-urlencoded).
func (c *ExchangeController) Exchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("ExchangeController.Exchange"))

	if err := r.ParseForm(); err != nil {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid form body"))
		return
	}

	resp, err := c.service.Exchange(ctx, svc.ExchangeRequest{
		Realm: r.PostForm.Get("realm"),
		Form:  r.PostForm,
	})
	if err != nil {
		log.Warn("token exchange rejected", logger.Err(err))
		writeExchangeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(resp)
}

// writeExchangeError mapea los fallos estructurados del exchange a la forma
// wire OAuth {error, error_description}.
func writeExchangeError(w http.ResponseWriter, err error) {
	if ee, ok := core.AsExchangeError(err); ok {
		code := audit.ErrInvalidToken
		if ee.Outcome == core.OutcomeInvalidRequest || ee.Outcome == core.OutcomeUnsupportedType {
			code = audit.ErrInvalidRequest
		}
		httperrors.WriteOAuthError(w, http.StatusBadRequest, code, ee.Reason)
		return
	}
	if ve, ok := err.(*core.ValidationError); ok {
		httperrors.WriteOAuthError(w, http.StatusBadRequest, ve.Code, ve.Reason)
		return
	}
	httperrors.WriteError(w, err)
}
