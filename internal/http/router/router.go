// Package router define las rutas HTTP del broker.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	brokerctrl "github.com/dropDatabas3/fedbroker/internal/http/controllers/broker"
	"github.com/dropDatabas3/fedbroker/internal/http/controllers/health"
	mw "github.com/dropDatabas3/fedbroker/internal/http/middlewares"
	brokersvc "github.com/dropDatabas3/fedbroker/internal/http/services/broker"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Service brokersvc.Service
}

// New arma el router chi con el middleware chain estándar.
func New(d Deps) http.Handler {
	login := brokerctrl.NewLoginController(d.Service)
	callback := brokerctrl.NewCallbackController(d.Service)
	exchange := brokerctrl.NewExchangeController(d.Service)
	token := brokerctrl.NewTokenController(d.Service)

	r := chi.NewRouter()
	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())

	r.Get("/healthz", health.Handler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/broker", func(r chi.Router) {
		r.Get("/{alias}/login", login.Login)
		r.Get("/{alias}/endpoint", callback.Endpoint)
		r.Get("/{alias}/token", token.Token)
		r.Post("/token/exchange", exchange.Exchange)
	})

	return r
}
