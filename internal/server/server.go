// Package server assembles the stores, dispatcher and gateway from a Config
// and serves them over HTTP.
package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cventus/azif/internal/auth"
	"github.com/cventus/azif/internal/catalog"
	"github.com/cventus/azif/internal/config"
	"github.com/cventus/azif/internal/database"
	"github.com/cventus/azif/internal/dispatch"
	"github.com/cventus/azif/internal/eventlog"
	"github.com/cventus/azif/internal/game"
	"github.com/cventus/azif/internal/session"
	"github.com/cventus/azif/internal/store"
	"github.com/cventus/azif/internal/users"
	"github.com/cventus/azif/internal/wsgateway"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds graceful HTTP shutdown.
const ShutdownTimeout = 10 * time.Second

// App is a fully wired server.
type App struct {
	Dispatcher *dispatch.Dispatcher
	Gateway    *wsgateway.Gateway
	Handler    http.Handler

	log     logrus.FieldLogger
	closers []func() error
}

// Close releases databases and clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// Build wires every component selected by cfg.
func Build(ctx context.Context, cfg config.Config, logger *logrus.Logger) (_ *App, err error) {
	app := &App{log: logger.WithField("component", "server")}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var (
		backend   store.Backend
		directory users.Directory
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
		if err := database.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		backend = store.NewPostgres(pool)
		directory = users.NewPostgres(pool, 0)
		if len(cfg.DevUsers) > 0 {
			app.log.Warn("AZIF_DEV_USERS is ignored with a database; use azif-user instead")
		}
		app.log.Info("using postgres game store and user directory")
	} else {
		mem := users.NewMemory(0)
		creds, err := cfg.Credentials()
		if err != nil {
			return nil, err
		}
		for _, c := range creds {
			if _, err := mem.Create(ctx, c.Username, c.Password); err != nil {
				return nil, fmt.Errorf("create dev user %s: %w", c.Username, err)
			}
		}
		backend = store.NewMemory(mem)
		directory = mem
		app.log.WithField("dev_users", len(creds)).Warn("using in-memory game store and user directory")
	}

	var events eventlog.Log
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		app.closers = append(app.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		events = eventlog.NewRedis(rdb, cfg.EventRetention, "azif:")
		app.log.Info("using redis event log")
	} else {
		events = eventlog.NewMemory(cfg.EventRetention, nil)
		app.log.Warn("using in-memory event log")
	}

	contents, err := openCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, contents.Close)

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		rand.Read(secret)
		app.log.Warn("AZIF_JWT_SECRET not set; session tokens will not survive a restart")
	}
	tokens, err := auth.NewIssuer(secret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	games := store.New(backend, store.WithLogger(logger))
	processor := game.NewProcessor(games, events, contents, game.WithLogger(logger))
	app.Gateway = wsgateway.New(
		wsgateway.WithLogger(logger),
		wsgateway.WithReadLimit(cfg.ReadLimit),
		wsgateway.WithWriteTimeout(cfg.WriteTimeout),
		wsgateway.WithOriginPatterns(cfg.AllowedOrigins...),
	)
	app.Dispatcher = dispatch.New(dispatch.Deps{
		Transport: app.Gateway,
		Sessions:  session.NewRegistry(),
		Processor: processor,
		Games:     games,
		Users:     directory,
		Contents:  contents,
		Tokens:    tokens,
		Logger:    logger,
	}, dispatch.WithWorkers(cfg.Workers), dispatch.WithQueueSize(cfg.QueueSize))

	mux := http.NewServeMux()
	mux.Handle("GET /ws", app.Gateway.Handler(app.Dispatcher))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	app.Handler = mux
	return app, nil
}

func openCatalog(ctx context.Context, cfg config.Config) (*catalog.SQLite, error) {
	contents, err := catalog.OpenSQLite(ctx, cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	if cfg.CatalogSeed == "" {
		return contents, nil
	}
	f, err := os.Open(cfg.CatalogSeed)
	if err != nil {
		contents.Close()
		return nil, fmt.Errorf("open catalog seed: %w", err)
	}
	defer f.Close()
	sets, err := catalog.DecodeJSON(f)
	if err == nil {
		err = contents.Import(ctx, sets)
	}
	if err != nil {
		contents.Close()
		return nil, fmt.Errorf("seed catalog from %s: %w", cfg.CatalogSeed, err)
	}
	return contents, nil
}

// Run serves app on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, app *App) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return app.Dispatcher.Run(ctx)
	})
	eg.Go(func() error {
		app.log.WithField("addr", addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		app.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		// Hijacked sockets are not tracked by http.Server.
		app.Gateway.Shutdown()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
