package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/fedbroker/internal/broker"
	"github.com/dropDatabas3/fedbroker/internal/cache"
	cachemem "github.com/dropDatabas3/fedbroker/internal/cache/memory"
	cacheredis "github.com/dropDatabas3/fedbroker/internal/cache/redis"
	"github.com/dropDatabas3/fedbroker/internal/config"
	"github.com/dropDatabas3/fedbroker/internal/domain/repository"
	"github.com/dropDatabas3/fedbroker/internal/http/router"
	brokersvc "github.com/dropDatabas3/fedbroker/internal/http/services/broker"
	jwtx "github.com/dropDatabas3/fedbroker/internal/jwt"
	"github.com/dropDatabas3/fedbroker/internal/metrics"
	"github.com/dropDatabas3/fedbroker/internal/observability/logger"
	"github.com/dropDatabas3/fedbroker/internal/session"
	storemem "github.com/dropDatabas3/fedbroker/internal/store/memory"
	storepg "github.com/dropDatabas3/fedbroker/internal/store/pg"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el broker HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loadEnv()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("FEDBROKER_LOG_LEVEL"),
		ServiceName: "fedbroker",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	cacheClient, err := buildCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer cacheClient.Close()
	notes := session.NewStore(cacheClient, cfg.Session.NoteTTL)

	users, identities, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	signer, err := buildSigner()
	if err != nil {
		return err
	}
	log.Info("signer ready", logger.Key(signer.ActiveKID()))

	reg := broker.NewRegistry()
	for _, pc := range cfg.Providers {
		p := broker.NewProvider(pc, broker.Deps{
			Signer:     signer,
			Users:      users,
			Identities: identities,
			Notes:      notes,
		})
		if err := reg.Add(p); err != nil {
			return err
		}
		log.Info("provider registered",
			logger.ProviderAlias(pc.Alias), logger.Realm(pc.Realm))
	}

	if err := metrics.RegisterBroker(nil); err != nil {
		return err
	}

	handler := router.New(router.Deps{
		Service: brokersvc.New(brokersvc.Deps{
			Registry:        reg,
			Notes:           notes,
			ExternalBaseURL: cfg.Server.ExternalBaseURL,
			DefaultIssuer:   cfg.Exchange.DefaultIssuer,
		}),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("fedbroker listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildCache(ctx context.Context, cfg *config.Config) (cache.Client, error) {
	switch cfg.Cache.Kind {
	case "redis":
		c := cacheredis.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password,
			cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
		if err := c.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return c, nil
	default:
		return cachemem.New(cfg.Cache.Memory.DefaultTTL, ""), nil
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (repository.UserRepository, repository.FederatedIdentityRepository, func(), error) {
	if cfg.Storage.Driver == "postgres" {
		st, err := storepg.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.Storage.Migrate {
			if err := st.Migrate(ctx); err != nil {
				st.Close()
				return nil, nil, nil, err
			}
		}
		return st.Users(), st.FederatedIdentities(), st.Close, nil
	}
	return storemem.NewUsers(), storemem.NewFederatedIdentities(), func() {}, nil
}

// buildSigner carga la clave Ed25519 de FEDBROKER_SIGNING_KEY (base64, seed
// de 32 bytes o clave privada de 64). Sin la variable genera un keypair
// efímero, solo apto para dev.
func buildSigner() (*jwtx.Issuer, error) {
	raw := os.Getenv("FEDBROKER_SIGNING_KEY")
	if raw == "" {
		logger.L().Warn("FEDBROKER_SIGNING_KEY not set, using an ephemeral signing key")
		return jwtx.GenerateIssuer()
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("FEDBROKER_SIGNING_KEY: %w", err)
	}
	var priv ed25519.PrivateKey
	switch len(b) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(b)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(b)
	default:
		return nil, fmt.Errorf("FEDBROKER_SIGNING_KEY: unexpected length %d", len(b))
	}
	kid := os.Getenv("FEDBROKER_SIGNING_KID")
	if kid == "" {
		kid = "active"
	}
	return jwtx.NewIssuer(kid, priv)
}
