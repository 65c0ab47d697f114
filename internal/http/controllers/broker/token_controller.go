package broker

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/fedbroker/internal/domain/repository"
	httperrors "github.com/dropDatabas3/fedbroker/internal/http/errors"
	svc "github.com/dropDatabas3/fedbroker/internal/http/services/broker"
	"github.com/dropDatabas3/fedbroker/internal/observability/logger"
)

// TokenController expone el token federado almacenado.
type TokenController struct {
	service svc.Service
}

// NewTokenController crea el controller.
func NewTokenController(service svc.Service) *TokenController {
	return &TokenController{service: service}
}

// Token maneja GET /broker/{alias}/token?user_id=...: devuelve la respuesta
// de token cruda persistida junto al vínculo federado, tal como se guardó.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TokenController.Token"))

	alias := chi.URLParam(r, "alias")
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("user_id required"))
		return
	}

	raw, err := c.service.RetrieveToken(ctx, q.Get("realm"), alias, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httperrors.WriteError(w, httperrors.ErrNotFound.WithDetail("no stored token for identity"))
			return
		}
		log.Error("retrieve token failed", logger.ProviderAlias(alias), logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}

	// raw ya es la respuesta serializada; se sirve sin re-encodear
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(raw))
}
