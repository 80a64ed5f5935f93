package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/klokku/hris/internal/amqp"
	"github.com/klokku/hris/internal/config"
	"github.com/klokku/hris/internal/database"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Application wires configuration, database, router, and server lifecycle.
type Application struct {
	cfg     config.Application
	router  *mux.Router
	srv     *http.Server
	deps    *Dependencies
	storage Storage
	broker  *amqp.Client
}

// NewApplication constructs the full HTTP application, ready to Run().
func NewApplication(cfg config.Application) (*Application, error) {
	storage, err := openStorage(cfg.Database)
	if err != nil {
		return nil, err
	}

	var broker *amqp.Client
	var publisher amqp.Publisher
	if cfg.Amqp.Url != "" {
		broker, err = amqp.NewClient(cfg.Amqp.Url, cfg.Amqp.Exchange)
		if err != nil {
			closeStorage(storage)
			return nil, fmt.Errorf("failed to connect to message broker: %w", err)
		}
		publisher = broker
		log.Infof("Publishing ledger events to exchange %s", cfg.Amqp.Exchange)
	}

	r := mux.NewRouter()

	// Build dependencies (services, handlers...)
	deps := BuildDependencies(storage, publisher, cfg)

	// Middleware chain
	SetupMiddleware(r, deps, cfg)

	// Routes
	RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Server.Addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Application{cfg: cfg, router: r, srv: srv, deps: deps, storage: storage, broker: broker}, nil
}

func openStorage(cfg config.Database) (Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.Path)
		if err != nil {
			return Storage{}, err
		}
		log.Infof("Using SQLite database at %s", cfg.Path)
		return Storage{SQLite: db}, nil
	default:
		if err := database.Migrate(cfg); err != nil {
			return Storage{}, err
		}
		pool, err := database.Open(cfg)
		if err != nil {
			return Storage{}, err
		}
		log.Infof("Using Postgres database %s on %s:%d", cfg.Name, cfg.Host, cfg.Port)
		return Storage{Pool: pool}, nil
	}
}

func closeStorage(storage Storage) {
	if storage.Pool != nil {
		storage.Pool.Close()
	}
	if storage.SQLite != nil {
		if err := storage.SQLite.Close(); err != nil {
			log.Errorf("failed to close database: %v", err)
		}
	}
}

// Run starts the HTTP server and blocks until it fails or the process receives SIGINT or SIGTERM.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting server on %s", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.close()
	return err
}

func (a *Application) close() {
	if a.deps.EventForwarder != nil {
		a.deps.EventForwarder.Stop()
	}
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			log.Errorf("failed to close message broker connection: %v", err)
		}
	}
	closeStorage(a.storage)
	log.Info("Server stopped")
}
