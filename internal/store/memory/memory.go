// Package memory implementa los repositorios del dominio en memoria.
// Usado por el modo dev y por los tests; el comportamiento (errores
// centinela incluidos) es el mismo contrato que la implementación Postgres.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/fedbroker/internal/domain/repository"
	"github.com/google/uuid"
)

// Users implementa repository.UserRepository en memoria.
type Users struct {
	mu    sync.RWMutex
	users map[string]*repository.User // realm/username -> user
}

func NewUsers() *Users {
	return &Users{users: map[string]*repository.User{}}
}

func userKey(realm, username string) string {
	return realm + "/" + strings.ToLower(username)
}

func (s *Users) GetByUsername(_ context.Context, realm, username string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userKey(realm, username)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Users) Create(_ context.Context, input repository.CreateUserInput) (*repository.User, error) {
	if strings.TrimSpace(input.Username) == "" {
		return nil, repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(input.Realm, input.Username)
	if _, ok := s.users[key]; ok {
		return nil, repository.ErrConflict
	}
	u := &repository.User{
		ID:        uuid.NewString(),
		Realm:     input.Realm,
		Username:  input.Username,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
	s.users[key] = u
	cp := *u
	return &cp, nil
}

// FederatedIdentities implementa repository.FederatedIdentityRepository en
// memoria, con clave (realm, userID, providerAlias).
type FederatedIdentities struct {
	mu    sync.RWMutex
	links map[string]*repository.FederatedIdentityRecord
}

func NewFederatedIdentities() *FederatedIdentities {
	return &FederatedIdentities{links: map[string]*repository.FederatedIdentityRecord{}}
}

func linkKey(realm, userID, alias string) string {
	return realm + "/" + userID + "/" + alias
}

func (s *FederatedIdentities) Get(_ context.Context, realm, userID, providerAlias string) (*repository.FederatedIdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.links[linkKey(realm, userID, providerAlias)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *FederatedIdentities) Upsert(_ context.Context, rec *repository.FederatedIdentityRecord) error {
	if rec.UserID == "" || rec.ProviderAlias == "" {
		return repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.links[linkKey(rec.Realm, rec.UserID, rec.ProviderAlias)] = &cp
	return nil
}

func (s *FederatedIdentities) Update(_ context.Context, rec *repository.FederatedIdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey(rec.Realm, rec.UserID, rec.ProviderAlias)
	if _, ok := s.links[key]; !ok {
		return repository.ErrNotFound
	}
	cp := *rec
	s.links[key] = &cp
	return nil
}
