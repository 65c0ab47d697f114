// Package broker contiene los controllers HTTP del broker de federación.
package broker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/fedbroker/internal/http/errors"
	svc "github.com/dropDatabas3/fedbroker/internal/http/services/broker"
	"github.com/dropDatabas3/fedbroker/internal/observability/logger"
)

// LoginController maneja el inicio del login federado.
type LoginController struct {
	service svc.Service
}

// NewLoginController crea el controller.
func NewLoginController(service svc.Service) *LoginController {
	return &LoginController{service: service}
}

// Login maneja GET /broker/{alias}/login: resuelve el provider y redirige
// al authorization endpoint externo.
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Login"))

	alias := chi.URLParam(r, "alias")
	if alias == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("missing provider alias"))
		return
	}

	q := r.URL.Query()
	res, err := c.service.StartLogin(ctx, svc.StartLoginRequest{
		Realm: q.Get("realm"),
		Alias: alias,
		Query: q,
	})
	if err != nil {
		log.Warn("start login failed", logger.ProviderAlias(alias), logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	log.Info("redirecting to identity provider",
		logger.ProviderAlias(alias),
		logger.SessionID(res.State),
	)
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}
