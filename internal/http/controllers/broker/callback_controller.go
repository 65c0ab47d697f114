package broker

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	core "github.com/dropDatabas3/fedbroker/internal/broker"
	httperrors "github.com/dropDatabas3/fedbroker/internal/http/errors"
	svc "github.com/dropDatabas3/fedbroker/internal/http/services/broker"
	"github.com/dropDatabas3/fedbroker/internal/observability/logger"
)

// CallbackController maneja el redirect-back del identity provider.
type CallbackController struct {
	service svc.Service
}

// NewCallbackController crea el controller.
func NewCallbackController(service svc.Service) *CallbackController {
	return &CallbackController{service: service}
}

// Endpoint maneja GET /broker/{alias}/endpoint.
func (c *CallbackController) Endpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Endpoint"))

	alias := chi.URLParam(r, "alias")
	q := r.URL.Query()
	state := strings.TrimSpace(q.Get("state"))
	if state == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("state required"))
		return
	}

	res, err := c.service.Callback(ctx, svc.CallbackRequest{
		Realm: q.Get("realm"),
		Alias: alias,
		State: state,
		Code:  strings.TrimSpace(q.Get("code")),
		Error: strings.TrimSpace(q.Get("error")),
	})
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	switch res.Status {
	case core.CallbackAuthenticated:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(res.Token)

	case core.CallbackCancelled:
		log.Info("login cancelled by user", logger.ProviderAlias(alias))
		httperrors.WriteOAuthError(w, http.StatusBadRequest, core.OAuthErrorAccessDenied, "login cancelled")

	default:
		if res.Gateway {
			httperrors.WriteError(w, httperrors.ErrBadGateway.WithDetail(res.Message))
			return
		}
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail(res.Message))
	}
}
