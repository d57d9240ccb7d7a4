package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/serroba/docstore/internal/acl"
	"github.com/serroba/docstore/internal/config"
	"github.com/serroba/docstore/internal/db"
	"github.com/serroba/docstore/internal/logging"
	"github.com/serroba/docstore/internal/metrics"
	"github.com/serroba/docstore/internal/storage"
	"github.com/serroba/docstore/internal/ws"
)

// app holds the components shared by every command.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	hub     *ws.Hub
	checker *acl.Checker
	db      *db.DB
}

func newApp(configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: logOut,
	})

	store, err := openStore(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg: cfg,
		log: logger,
		hub: ws.NewHub(logger),
	}

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}

	dbCfg := db.Config{
		Store:    store,
		Notifier: a.hub,
		Metrics:  a.metrics,
		Logger:   logger,
	}

	if cfg.ACL.Enabled {
		checker, err := newChecker(cfg.ACL.Grants)
		if err != nil {
			_ = store.Close()

			return nil, err
		}

		dbCfg.Validator = checker
		a.checker = checker
	}

	a.db = db.New(dbCfg)

	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func openStore(cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		bcfg := storage.DefaultBadgerConfig(cfg.Path)
		bcfg.SyncWrites = cfg.SyncWrites
		bcfg.GCEvery = cfg.GCEvery
		bcfg.Logger = logger.With(slog.String("component", "badger"))

		store, err := storage.OpenBadger(bcfg)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}

		return store, nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

func newChecker(grants []config.Grant) (*acl.Checker, error) {
	perms := acl.NewMemoryStore()

	for _, g := range grants {
		role, err := acl.ParseRole(g.Role)
		if err != nil {
			return nil, err
		}

		if err := perms.Grant(g.Prefix, g.User, role); err != nil {
			return nil, fmt.Errorf("grant %s on %q: %w", g.User, g.Prefix, err)
		}
	}

	return acl.NewChecker(perms), nil
}
