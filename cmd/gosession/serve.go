package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/directory"
	"github.com/MrEthical07/goSession/internal/httpapi"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

type serveConfig struct {
	dev         bool
	devPassword string
	addr        string
}

func newServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the token service HTTP API",
		Long: `Run the HTTP API. With --dev the service uses an embedded Redis, an
in-memory user directory seeded with user "alice" and a random signing key.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.dev, "dev", false, "embedded redis and in-memory directory")
	cmd.Flags().StringVar(&cfg.devPassword, "dev-password", "correct-pw", "password of the seeded dev user")
	cmd.Flags().StringVar(&cfg.addr, "addr", "", "listen address (overrides HTTP_ADDR)")

	return cmd
}

// deps holds everything runServe needs to close on exit.
type deps struct {
	engine  *goSession.Engine
	rdb     *redis.Client
	mr      *miniredis.Miniredis
	handler http.Handler
}

func (d *deps) close() {
	if d.engine != nil {
		d.engine.Close()
	}
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	if d.mr != nil {
		d.mr.Close()
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, sc *serveConfig) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if sc.addr != "" {
		cfg.HTTPAddr = sc.addr
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Level(), cfg.LogFormat)

	d, err := buildDeps(cfg, sc, logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer d.close()

	report := d.engine.SecurityReport()
	logger.Info().
		Dur("access_ttl", report.AccessTTL).
		Dur("refresh_ttl", report.RefreshTTL).
		Bool("login_throttle", report.LoginThrottleActive).
		Bool("mask_unknown_identifier", report.MaskUnknownIdentifier).
		Bool("invalidate_sessions_on_reset", report.InvalidateSessionsOnReset).
		Bool("audit", report.AuditEnabled).
		Msg("security posture")

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           d.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	logger.Info().Str("addr", cfg.HTTPAddr).Bool("dev", sc.dev).Msg("gosession listening")

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("SERVER_FAILED").With("addr", cfg.HTTPAddr).Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.With("operation", "shutdown").Wrap(err)
	}
	logger.Info().Msg("gosession stopped")
	return nil
}

func buildDeps(cfg *config.Config, sc *serveConfig, logger zerolog.Logger) (*deps, error) {
	d := &deps{}

	var dir goSession.UserDirectory
	if sc.dev {
		if cfg.IsProduction() {
			return nil, oops.Code("CONFIG_INVALID").Errorf("--dev is not allowed when APP_ENV=production")
		}
		mr, err := miniredis.Run()
		if err != nil {
			return nil, oops.Wrap(err)
		}
		d.mr = mr
		d.rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})

		mem := directory.NewMemory(0)
		if err := mem.Add(goSession.User{
			ID:        "42",
			Username:  "alice",
			Email:     "alice@example.com",
			FirstName: "Alice",
			Role:      "USER",
		}, sc.devPassword); err != nil {
			d.close()
			return nil, oops.Wrap(err)
		}
		dir = mem

		if cfg.JWTSecret == "" {
			secret, err := randomSecret()
			if err != nil {
				d.close()
				return nil, err
			}
			cfg.JWTSecret = secret
			logger.Warn().Msg("JWT_SECRET unset, using a random development key")
		}
	} else {
		d.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		client, err := directory.NewHTTPClient(directory.Config{
			BaseURL:       cfg.UserServiceURL,
			Timeout:       cfg.UserServiceTimeout,
			SearchRetries: cfg.UserServiceSearchRetries,
			Logger:        logger,
		})
		if err != nil {
			d.close()
			return nil, err
		}
		dir = client
	}

	builder := goSession.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(d.rdb).
		WithUserDirectory(dir).
		WithLogger(logger)
	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(goSession.NewZerologSink(logger))
	}

	engine, err := builder.Build()
	if err != nil {
		d.close()
		return nil, oops.Code("ENGINE_BUILD_FAILED").Wrap(err)
	}
	d.engine = engine

	var metrics http.Handler
	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registry.MustRegister(promexport.NewCollector(engine))
		metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
	}

	d.handler = httpapi.New(engine, httpapi.Options{
		Logger:  &logger,
		Metrics: metrics,
	}).Handler()

	return d, nil
}

// validateEngineConfig checks the engine settings the way Build would.
func validateEngineConfig(cfg *config.Config) error {
	engineCfg := cfg.EngineConfig()
	if err := engineCfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}
