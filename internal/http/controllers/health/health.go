// Package health expone el health check del servicio.
package health

import (
	"encoding/json"
	"net/http"
)

// Handler responde GET /healthz.
func Handler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
