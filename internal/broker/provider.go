package broker

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dropDatabas3/fedbroker/internal/audit"
	"github.com/dropDatabas3/fedbroker/internal/domain/repository"
	"github.com/dropDatabas3/fedbroker/internal/security/vault"
	"github.com/dropDatabas3/fedbroker/internal/session"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// ProfileField es un campo de identidad mapeado declarativamente a un path
// (dot-notation) dentro del JSON del profile endpoint. Required marca si su
// ausencia hace fallar el flujo; los opcionales simplemente quedan vacíos.
type ProfileField struct {
	Path     string `yaml:"path"`
	Required bool   `yaml:"required"`
}

// ProfileFieldMap mapea la respuesta del profile endpoint a la identidad
// federada. El campo ID es siempre requerido aunque Required sea false.
type ProfileFieldMap struct {
	ID        ProfileField `yaml:"id"`
	Username  ProfileField `yaml:"username"`
	FirstName ProfileField `yaml:"first_name"`
	LastName  ProfileField `yaml:"last_name"`
}

// ProviderConfig describe una instancia de identity provider externo.
// Inmutable durante un flujo; el alias la identifica unívocamente dentro del
// realm y es la clave de enlace que el exchange routing confía.
type ProviderConfig struct {
	Alias string `yaml:"alias"`
	Realm string `yaml:"realm"`

	AuthorizationURL string `yaml:"authorization_url"`
	TokenURL         string `yaml:"token_url"`
	ProfileURL       string `yaml:"profile_url"`
	UserInfoURL      string `yaml:"user_info_url"`

	ClientID string `yaml:"client_id"`

	// ClientSecretRef es la referencia al secreto (ver security/vault).
	ClientSecretRef string `yaml:"client_secret_ref"`

	// SecretOverrideEnv nombra una variable de entorno que, si está seteada,
	// tiene precedencia sobre ClientSecretRef. Evaluada una sola vez al
	// construir el provider.
	SecretOverrideEnv string `yaml:"secret_override_env"`

	// TenantSecretRefs selecciona credenciales por realm. Si el realm del
	// provider figura acá, su ref reemplaza a ClientSecretRef.
	TenantSecretRefs map[string]string `yaml:"tenant_secret_refs"`

	DefaultScope string `yaml:"default_scope"`
	Prompt       string `yaml:"prompt"`

	ClientAuthMethod    string `yaml:"client_auth_method"`
	JWTAuthentication   bool   `yaml:"jwt_authentication"`
	BasicAuthentication bool   `yaml:"basic_authentication"`

	LoginHint           bool `yaml:"login_hint"`
	UILocales           bool `yaml:"ui_locales"`
	StoreToken          bool `yaml:"store_token"`
	CreateUserIfMissing bool `yaml:"create_user_if_missing"`

	// ExternalExchangeSupported habilita validateExternalToken para este
	// provider (requiere UserInfoURL y ProfileFields).
	ExternalExchangeSupported bool `yaml:"external_exchange_supported"`

	// ForwardParameters: nombres separados por coma de parámetros del login
	// original a reenviar al authorization endpoint.
	ForwardParameters string `yaml:"forward_parameters"`

	// AssertionLifespan acota la vida de la client assertion JWT.
	AssertionLifespan time.Duration `yaml:"assertion_lifespan"`

	ProfileFields ProfileFieldMap `yaml:"profile_fields"`

	// LinkBaseURL es la base para construir la account-linking URL incluida
	// como claim extra en el exchange de tokens almacenados.
	LinkBaseURL string `yaml:"link_base_url"`
}

// AssertionSigner firma la client assertion cuando el método no es
// client_secret_jwt (asimétrico).
type AssertionSigner interface {
	SignRaw(claims jwtv5.MapClaims) (string, error)
}

// IdentityFetcher obtiene la identidad federada a partir del access token
// (la llamada secundaria autenticada del callback). Variantes de provider
// pueden reemplazar la implementación por defecto basada en ProfileFields.
type IdentityFetcher interface {
	FetchIdentity(ctx context.Context, accessToken string) (*Identity, error)
}

// ProfileMapper es la estrategia de validación por user-info para el
// external exchange: endpoint + mapeo del JSON de perfil a identidad.
type ProfileMapper interface {
	ProfileEndpoint() string
	MapProfile(profile map[string]any) (*Identity, error)
}

// Deps son los colaboradores del provider. Todos stateless/concurrent-safe;
// el provider no retiene estado mutable entre llamadas.
type Deps struct {
	Vault      vault.Vault
	Signer     AssertionSigner
	HTTP       *http.Client
	Users      repository.UserRepository
	Identities repository.FederatedIdentityRepository
	Notes      session.NoteStore
	Audit      audit.Sink

	// Fetcher y Mapper opcionales; nil usa las implementaciones declarativas
	// derivadas de ProviderConfig.
	Fetcher IdentityFetcher
	Mapper  ProfileMapper

	// Now permite fijar el reloj en tests.
	Now func() time.Time
}

// Provider es una instancia inmutable construida una vez a partir de la
// configuración, con la precedencia de credenciales ya aplicada.
type Provider struct {
	cfg       ProviderConfig
	secretRef string

	vault      vault.Vault
	signer     AssertionSigner
	http       *http.Client
	users      repository.UserRepository
	identities repository.FederatedIdentityRepository
	notes      session.NoteStore
	audit      audit.Sink
	fetcher    IdentityFetcher
	mapper     ProfileMapper
	now        func() time.Time
}

// NewProvider construye el provider aplicando la precedencia de secretos
// {override env, mapping por tenant, ref configurada} en un snapshot
// inmutable. El scope por defecto cae a "openid" si quedó vacío.
func NewProvider(cfg ProviderConfig, d Deps) *Provider {
	if strings.TrimSpace(cfg.DefaultScope) == "" {
		cfg.DefaultScope = "openid"
	}
	if cfg.AssertionLifespan <= 0 {
		cfg.AssertionLifespan = time.Minute
	}

	p := &Provider{
		cfg:        cfg,
		secretRef:  effectiveSecretRef(cfg),
		vault:      d.Vault,
		signer:     d.Signer,
		http:       d.HTTP,
		users:      d.Users,
		identities: d.Identities,
		notes:      d.Notes,
		audit:      d.Audit,
		fetcher:    d.Fetcher,
		mapper:     d.Mapper,
		now:        d.Now,
	}
	if p.vault == nil {
		p.vault = vault.New()
	}
	if p.http == nil {
		p.http = &http.Client{Timeout: 10 * time.Second}
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.fetcher == nil {
		p.fetcher = &profileFetcher{p: p}
	}
	if p.mapper == nil && cfg.UserInfoURL != "" {
		p.mapper = &declarativeMapper{endpoint: cfg.UserInfoURL, fields: cfg.ProfileFields}
	}
	return p
}

// effectiveSecretRef aplica la precedencia una sola vez, en construcción.
func effectiveSecretRef(cfg ProviderConfig) string {
	if cfg.SecretOverrideEnv != "" && os.Getenv(cfg.SecretOverrideEnv) != "" {
		return "env:" + cfg.SecretOverrideEnv
	}
	if ref, ok := cfg.TenantSecretRefs[cfg.Realm]; ok && ref != "" {
		return ref
	}
	return cfg.ClientSecretRef
}

// Config retorna la configuración (copia por valor del snapshot).
func (p *Provider) Config() ProviderConfig { return p.cfg }

// Alias es el id único del provider dentro del realm.
func (p *Provider) Alias() string { return p.cfg.Alias }

// Realm del provider.
func (p *Provider) Realm() string { return p.cfg.Realm }

// SupportsExternalExchange reporta si este provider acepta tokens externos.
func (p *Provider) SupportsExternalExchange() bool {
	return p.cfg.ExternalExchangeSupported && p.mapper != nil
}

// IsIssuer decide si este provider es responsable de un external exchange:
// compara el subject_issuer pedido (fallback al issuer por defecto provisto)
// contra el alias.
func (p *Provider) IsIssuer(defaultIssuer string, ctx ExchangeContext) bool {
	if !p.SupportsExternalExchange() {
		return false
	}
	requested := ctx.SubjectIssuer
	if requested == "" {
		requested = defaultIssuer
	}
	return requested == p.cfg.Alias
}

func (p *Provider) newEvent(typ string) *audit.Event {
	return audit.New(typ, p.audit)
}
