// Package config carga la configuración YAML del broker con defaults sanos
// y overrides por variables de entorno.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/fedbroker/internal/broker"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`

		// ExternalBaseURL es la base pública del broker; arma las redirect
		// URIs de callback (<base>/broker/{alias}/endpoint).
		ExternalBaseURL string `yaml:"external_base_url"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver  string `yaml:"driver"`
		DSN     string `yaml:"dsn"`
		Migrate bool   `yaml:"migrate"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL time.Duration `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Session struct {
		// NoteTTL acota la vida de las session notes del broker.
		NoteTTL time.Duration `yaml:"note_ttl"`
	} `yaml:"session"`

	Exchange struct {
		// DefaultIssuer se usa cuando un external exchange no trae
		// subject_issuer explícito.
		DefaultIssuer string `yaml:"default_issuer"`
	} `yaml:"exchange"`

	Providers []broker.ProviderConfig `yaml:"providers"`
}

// Load lee y parsea el YAML, aplica defaults y overrides de entorno, y
// valida lo mínimo para arrancar.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "fedbroker:"
	}
	if c.Cache.Memory.DefaultTTL <= 0 {
		c.Cache.Memory.DefaultTTL = 12 * time.Hour
	}
	if c.Session.NoteTTL <= 0 {
		c.Session.NoteTTL = 12 * time.Hour
	}

	c.applyEnvOverrides()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnvOverrides pisa los valores del YAML con el entorno (deploys donde
// el DSN o el addr no viven en el archivo).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FEDBROKER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("FEDBROKER_EXTERNAL_BASE_URL"); v != "" {
		c.Server.ExternalBaseURL = v
	}
	if v := os.Getenv("FEDBROKER_DB_DSN"); v != "" {
		c.Storage.Driver = "postgres"
		c.Storage.DSN = v
	}
	if v := os.Getenv("FEDBROKER_REDIS_ADDR"); v != "" {
		c.Cache.Kind = "redis"
		c.Cache.Redis.Addr = v
	}
}

func (c *Config) validate() error {
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("config: storage.driver postgres requires storage.dsn")
	}
	if c.Cache.Kind == "redis" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("config: cache.kind redis requires cache.redis.addr")
	}
	seen := map[string]struct{}{}
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Alias == "" {
			return fmt.Errorf("config: providers[%d] missing alias", i)
		}
		key := p.Realm + "/" + p.Alias
		if _, dup := seen[key]; dup {
			return fmt.Errorf("config: duplicate provider %q in realm %q", p.Alias, p.Realm)
		}
		seen[key] = struct{}{}
		if p.AuthorizationURL == "" || p.TokenURL == "" {
			return fmt.Errorf("config: provider %q missing authorization_url/token_url", p.Alias)
		}
		if p.ClientID == "" {
			return fmt.Errorf("config: provider %q missing client_id", p.Alias)
		}
	}
	return nil
}
