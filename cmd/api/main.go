package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"condominio.app/internal/auth"
	"condominio.app/internal/condo"
	"condominio.app/internal/config"
	"condominio.app/internal/httpapi"
	"condominio.app/internal/obs"
	"condominio.app/internal/ratelimit"
	"condominio.app/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		obs.L().Fatal("load config", zap.Error(err))
	}
	if cfg.App.Version != "" {
		version = cfg.App.Version
	}

	log := obs.InitLogger(obs.LogConfig{Env: cfg.Log.Env, Level: cfg.Log.Level, Service: cfg.App.Name, Version: version})
	defer func() { _ = obs.Sync() }()
	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:    cfg.JWT.Secret,
		Algorithm: cfg.JWT.Algorithm,
		TTL:       cfg.TokenTTL(),
	})
	if err != nil {
		return err
	}
	hasher, err := auth.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	var (
		identities auth.IdentityStore
		condoStore condo.Store
		ready      httpapi.ReadyProbe
		seedDemo   func(context.Context, *auth.Service) error
	)
	switch cfg.Database.Driver {
	case "memory":
		mem := condo.NewMemoryStore()
		identities, condoStore = auth.NewMemoryStore(), mem
		seedDemo = func(ctx context.Context, svc *auth.Service) error { return seedMemory(ctx, svc, mem) }
		log.Warn("using in-memory stores; data is lost on restart")
	default:
		store, err := pg.Open(cfg.DSN(), pg.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime(),
		})
		if err != nil {
			return err
		}
		defer store.Close()
		identities, condoStore = store, store
		ready = httpapi.ReadyProbe{DB: store.DB()}
	}

	authSvc, err := auth.NewService(identities, tokens, auth.WithHasher(hasher), auth.WithLogger(log.Named("auth")))
	if err != nil {
		return err
	}
	if seedDemo != nil {
		if err := seedDemo(ctx, authSvc); err != nil {
			return err
		}
	}
	condoSvc, err := condo.NewService(condoStore)
	if err != nil {
		return err
	}

	limiter, closeLimiter := newLoginLimiter(cfg, log)
	defer closeLimiter()

	api, err := httpapi.New(httpapi.Deps{
		Auth:           authSvc,
		Condo:          condoSvc,
		Ready:          ready,
		LoginLimiter:   limiter,
		Logger:         log,
		Version:        version,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout(),
		ReadHeaderTimeout: cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		log.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		grpcSrv = httpapi.NewGRPCServer(ready, authSvc)
		go func() {
			log.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("listener failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	return srv.Shutdown(shutdownCtx)
}

func newLoginLimiter(cfg *config.Config, log *zap.Logger) (ratelimit.Limiter, func()) {
	limit, window := cfg.Rate.Login.Limit, cfg.LoginWindow()
	if cfg.Rate.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Rate.Redis.Addr,
			Password: cfg.Rate.Redis.Password,
			DB:       cfg.Rate.Redis.DB,
		})
		log.Info("login rate limit backed by redis", zap.String("addr", cfg.Rate.Redis.Addr))
		return ratelimit.NewRedis(client, cfg.Rate.Redis.Prefix, limit, window), func() { _ = client.Close() }
	}
	return ratelimit.NewMemory(limit, window), func() {}
}
