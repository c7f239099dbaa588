package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"roledash.org/internal/audit"
	"roledash.org/internal/auth"
	"roledash.org/internal/config"
	"roledash.org/internal/httpapi"
	"roledash.org/internal/messages"
	"roledash.org/internal/migrate"
	"roledash.org/internal/obs"
	"roledash.org/internal/ratelimit"
	"roledash.org/internal/store/memory"
	"roledash.org/internal/store/pg"
	"roledash.org/internal/users"
	"roledash.org/internal/validation"
	"roledash.org/migrations"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// backend is what both store implementations provide.
type backend interface {
	auth.UserStore
	messages.Store
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	configFile := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	var opts []config.Option
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("load config")
	}

	obs.InitLogger(obs.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	auditWriters := []io.Writer{os.Stdout}
	if cfg.AuditLogFile != "" {
		f, err := audit.OpenLogFile(cfg.AuditLogFile)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.AuditLogFile).Msg("audit log file unavailable, using stdout only")
		} else {
			defer f.Close()
			auditWriters = append(auditWriters, f)
		}
	}
	sink := audit.NewAsyncSink(audit.NewLogSink(auditWriters...), cfg.AuditQueueSize)

	codec, err := auth.NewTokenCodec([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatal().Err(err).Msg("token codec")
	}
	validator := validation.New()
	authSvc, err := auth.NewService(store, codec,
		auth.WithVerifier(auth.NewVerifier(cfg.BcryptCost)),
		auth.WithValidator(validator),
		auth.WithAudit(sink),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("auth service")
	}
	msgSvc, err := messages.NewService(store, validator)
	if err != nil {
		log.Fatal().Err(err).Msg("messages service")
	}
	gate, err := auth.NewGate(codec, sink)
	if err != nil {
		log.Fatal().Err(err).Msg("auth gate")
	}
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		log.Fatal().Err(err).Msg("trusted proxies")
	}
	origins := cfg.CORSAllowedOrigins
	if cfg.AllowsAnyOrigin() {
		log.Warn().Msg("CORS allows every origin; set CORS_ALLOWED_ORIGINS to restrict it")
		origins = []string{"*"}
	}

	ready := httpapi.ReadyProbe{"store": store.Ping}
	var limiter ratelimit.Limiter = ratelimit.NewMemory(cfg.RegisterRateLimit, cfg.RegisterRateWindow)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		limiter = ratelimit.NewRedis(rdb, cfg.RegisterRateLimit, cfg.RegisterRateWindow, "roledash:register")
		ready["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	api := httpapi.New(httpapi.Deps{
		Auth:            authSvc,
		Gate:            gate,
		Users:           users.NewService(store, sink),
		Messages:        msgSvc,
		RegisterLimiter: limiter,
		Ready:           ready,
		Version:         version,
	},
		httpapi.WithCORSOrigins(origins),
		httpapi.WithTrustedProxies(trusted),
		httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("version", version).Str("addr", srv.Addr).Msg("starting roledash api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := sink.Close(); err != nil {
		log.Error().Err(err).Msg("audit sink close")
	}
	log.Info().Msg("stopped")
}

func openStore(cfg config.Config) (backend, error) {
	if cfg.DatabaseURL == "" {
		obs.Logger().Warn().Msg("DATABASE_URL not set, using in-memory store")
		return memory.New(), nil
	}
	store, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		applied, err := migrate.NewManager(store.DB(), migrations.Schema(), migrations.Seeds()).Up(ctx)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		obs.Logger().Info().Strs("applied", applied).Msg("migrations applied")
	}
	return store, nil
}
