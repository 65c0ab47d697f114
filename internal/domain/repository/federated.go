package repository

import (
	"context"
	"time"
)

// FederatedIdentityRecord representa el vínculo persistido entre un usuario
// local y su identidad en un provider externo. Token guarda la respuesta
// cruda del token endpoint (JSON o form-encoded) cuando storeToken está
// habilitado; vacío si el provider no persiste tokens.
type FederatedIdentityRecord struct {
	UserID         string
	Realm          string
	ProviderAlias  string
	ExternalUserID string
	Username       string
	Token          string
	UpdatedAt      time.Time
}

// FederatedIdentityRepository define operaciones sobre identidades federadas.
// El alias del provider es la clave de enlace dentro del realm.
type FederatedIdentityRepository interface {
	// Get busca la identidad federada de (user, provider) en el realm.
	// Retorna ErrNotFound si el usuario nunca se vinculó con ese provider.
	Get(ctx context.Context, realm, userID, providerAlias string) (*FederatedIdentityRecord, error)

	// Upsert crea o actualiza el vínculo.
	Upsert(ctx context.Context, rec *FederatedIdentityRecord) error

	// Update reemplaza los datos mutables del vínculo existente (token incluido).
	// Retorna ErrNotFound si el vínculo no existe.
	Update(ctx context.Context, rec *FederatedIdentityRecord) error
}
