package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/httplog/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pavelzhurbin/shorturl/internal/cache"
	"github.com/pavelzhurbin/shorturl/internal/config"
	"github.com/pavelzhurbin/shorturl/internal/database/postgres"
	"github.com/pavelzhurbin/shorturl/internal/feature"
	"github.com/pavelzhurbin/shorturl/internal/gate"
	"github.com/pavelzhurbin/shorturl/internal/service"
	pkgpostgres "github.com/pavelzhurbin/shorturl/pkg/postgres"

	api "github.com/pavelzhurbin/shorturl/internal/api/http"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("shorturl", httplog.Options{
		JSON:     cfg.Env == config.EnvProd,
		LogLevel: logLevel(cfg.Env),
		Concise:  cfg.Env != config.EnvProd,
	})

	db, err := pkgpostgres.New(
		ctx,
		cfg.Postgres.DSN(),
		pkgpostgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pkgpostgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pkgpostgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pkgpostgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return err
	}

	if err := pkgpostgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return db.Close()
	})

	var lookupCache service.LookupCache
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			return redisClient.Close()
		})

		lookupCache = cache.NewURLCache(logger.Logger, redisClient, cache.WithTTL(cfg.Redis.TTL))
	}

	extractor := feature.New(logger.Logger,
		feature.WithFetchTimeout(cfg.Extractor.FetchTimeout),
		feature.WithWhoisTimeout(cfg.Extractor.WhoisTimeout),
	)
	anomalyGate := gate.New(logger.Logger, cfg.Gate.ModelPath)

	urlRepo := postgres.NewURLRepository(db)
	urlSvc := service.NewURLService(logger.Logger, urlRepo, extractor, anomalyGate, lookupCache, cfg.ShortCodeLength)

	reaper := service.NewReaper(logger.Logger, urlRepo, cfg.Reaper.Interval)
	g.Go(func() error {
		reaper.Run(ctx)
		return nil
	})

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        api.NewRouter(logger, urlSvc),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func logLevel(env string) slog.Level {
	switch env {
	case config.EnvProd:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
