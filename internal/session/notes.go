// Package session implementa el session-note store del broker: pares
// clave/valor por sesión de login, usados para cachear tokens federados y el
// marcador de "qué provider realizó el exchange".
package session

import (
	"context"
	"time"

	"github.com/dropDatabas3/fedbroker/internal/cache"
)

// Claves de notas que el broker conoce. Las notas de request params
// reenviados usan el prefijo NoteForwardedParamPrefix + nombre.
const (
	NoteFederatedAccessToken = "FEDERATED_ACCESS_TOKEN"
	NoteFederatedIDToken     = "FEDERATED_ID_TOKEN"
	NoteExchangeProvider     = "EXCHANGE_PROVIDER"
	NoteIdentityProvider     = "IDENTITY_PROVIDER"
	NoteLoginHint            = "login_hint"
	NotePrompt               = "prompt"
	NoteACRValues            = "acr_values"

	// NoteForwardedParamPrefix prefija las notas con parámetros del request
	// de login original que el provider puede reenviar.
	NoteForwardedParamPrefix = "client_request_param_"
)

// NoteStore expone notas string por sesión. Implementado sobre cache.Client;
// la ausencia de una nota se reporta como string vacío, nunca como error.
type NoteStore interface {
	// Get retorna la nota o "" si no existe.
	Get(ctx context.Context, sessionID, key string) string

	// Set guarda la nota. Valor vacío elimina la nota.
	Set(ctx context.Context, sessionID, key, value string) error
}

// Store implementa NoteStore sobre un cache.Client.
type Store struct {
	cache cache.Client
	ttl   time.Duration
}

// NewStore crea un NoteStore con el TTL dado para cada nota.
// Si ttl <= 0 se usa 12h (vida típica de una user session).
func NewStore(c cache.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{cache: c, ttl: ttl}
}

func noteKey(sessionID, key string) string {
	return "broker:note:" + sessionID + ":" + key
}

func (s *Store) Get(ctx context.Context, sessionID, key string) string {
	v, err := s.cache.Get(ctx, noteKey(sessionID, key))
	if err != nil {
		return ""
	}
	return v
}

func (s *Store) Set(ctx context.Context, sessionID, key, value string) error {
	if value == "" {
		return s.cache.Delete(ctx, noteKey(sessionID, key))
	}
	return s.cache.Set(ctx, noteKey(sessionID, key), value, s.ttl)
}
