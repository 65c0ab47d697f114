package repository

import (
	"context"
	"time"
)

// User representa un usuario local del realm.
type User struct {
	ID        string
	Realm     string
	Username  string
	FirstName string
	LastName  string
	Enabled   bool
	CreatedAt time.Time
}

// CreateUserInput contiene los datos mínimos para crear un usuario
// a partir de una identidad federada.
type CreateUserInput struct {
	Realm    string
	Username string
}

// UserRepository define operaciones sobre usuarios locales.
type UserRepository interface {
	// GetByUsername busca un usuario por username dentro del realm.
	// Retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, realm, username string) (*User, error)

	// Create crea un usuario habilitado con el username dado.
	// Retorna ErrConflict si ya existe.
	Create(ctx context.Context, input CreateUserInput) (*User, error)
}
