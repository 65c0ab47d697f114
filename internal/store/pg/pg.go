// Package pg implementa los repositorios del dominio sobre Postgres (pgx).
package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/fedbroker/internal/domain/repository"
)

// Store agrupa los repositorios sobre un pool compartido.
type Store struct {
	pool *pgxpool.Pool
}

// New conecta el pool y verifica la conexión.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = time.Hour
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Users retorna la vista UserRepository del store.
func (s *Store) Users() repository.UserRepository { return &users{pool: s.pool} }

// FederatedIdentities retorna la vista FederatedIdentityRepository.
func (s *Store) FederatedIdentities() repository.FederatedIdentityRepository {
	return &federated{pool: s.pool}
}

type users struct {
	pool *pgxpool.Pool
}

func (r *users) GetByUsername(ctx context.Context, realm, username string) (*repository.User, error) {
	const q = `
		SELECT id, realm, username, first_name, last_name, enabled, created_at
		FROM broker_user
		WHERE realm = $1 AND lower(username) = lower($2)
		LIMIT 1`

	var u repository.User
	err := r.pool.QueryRow(ctx, q, realm, username).Scan(
		&u.ID, &u.Realm, &u.Username, &u.FirstName, &u.LastName, &u.Enabled, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *users) Create(ctx context.Context, input repository.CreateUserInput) (*repository.User, error) {
	if input.Username == "" {
		return nil, repository.ErrInvalidInput
	}
	const q = `
		INSERT INTO broker_user (realm, username, enabled, created_at)
		VALUES ($1, $2, TRUE, NOW())
		RETURNING id, realm, username, first_name, last_name, enabled, created_at`

	var u repository.User
	err := r.pool.QueryRow(ctx, q, input.Realm, input.Username).Scan(
		&u.ID, &u.Realm, &u.Username, &u.FirstName, &u.LastName, &u.Enabled, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrConflict
		}
		return nil, err
	}
	return &u, nil
}

type federated struct {
	pool *pgxpool.Pool
}

func (r *federated) Get(ctx context.Context, realm, userID, providerAlias string) (*repository.FederatedIdentityRecord, error) {
	const q = `
		SELECT user_id, realm, provider_alias, external_user_id, username, COALESCE(token, ''), updated_at
		FROM federated_identity
		WHERE realm = $1 AND user_id = $2 AND provider_alias = $3
		LIMIT 1`

	var rec repository.FederatedIdentityRecord
	err := r.pool.QueryRow(ctx, q, realm, userID, providerAlias).Scan(
		&rec.UserID, &rec.Realm, &rec.ProviderAlias, &rec.ExternalUserID,
		&rec.Username, &rec.Token, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *federated) Upsert(ctx context.Context, rec *repository.FederatedIdentityRecord) error {
	if rec.UserID == "" || rec.ProviderAlias == "" {
		return repository.ErrInvalidInput
	}
	const q = `
		INSERT INTO federated_identity
			(user_id, realm, provider_alias, external_user_id, username, token, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		ON CONFLICT (realm, user_id, provider_alias) DO UPDATE SET
			external_user_id = EXCLUDED.external_user_id,
			username         = EXCLUDED.username,
			token            = EXCLUDED.token,
			updated_at       = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, q,
		rec.UserID, rec.Realm, rec.ProviderAlias, rec.ExternalUserID,
		rec.Username, rec.Token, rec.UpdatedAt)
	return err
}

func (r *federated) Update(ctx context.Context, rec *repository.FederatedIdentityRecord) error {
	const q = `
		UPDATE federated_identity
		SET external_user_id = $4, username = $5, token = NULLIF($6, ''), updated_at = $7
		WHERE realm = $1 AND user_id = $2 AND provider_alias = $3`

	tag, err := r.pool.Exec(ctx, q,
		rec.Realm, rec.UserID, rec.ProviderAlias,
		rec.ExternalUserID, rec.Username, rec.Token, rec.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
