package cli

import (
	"context"
	"fmt"

	"github.com/pratik-mahalle/snapdrift/internal/analyzer"
	"github.com/pratik-mahalle/snapdrift/internal/config"
	"github.com/pratik-mahalle/snapdrift/internal/domain/change"
	"github.com/pratik-mahalle/snapdrift/internal/domain/scan"
	"github.com/pratik-mahalle/snapdrift/internal/health"
	"github.com/pratik-mahalle/snapdrift/internal/pkg/logger"
	"github.com/pratik-mahalle/snapdrift/internal/reconciler"
	"github.com/pratik-mahalle/snapdrift/internal/repository/sqldb"
	"github.com/pratik-mahalle/snapdrift/internal/services"
	"github.com/pratik-mahalle/snapdrift/internal/source"
	"github.com/pratik-mahalle/snapdrift/migrations"
)

// app holds the local components a command works with
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *sqldb.DB
	scans      scan.Repository
	changes    change.Repository
	reconciler *reconciler.Reconciler
	analyzer   *analyzer.Analyzer
	reporter   *health.Reporter
	snapshots  *services.SnapshotService
}

// openApp connects to the configured database, applies pending migrations
// and wires the services. It is opened once per command invocation.
func (o *options) openApp(ctx context.Context) (*app, error) {
	if o.app != nil {
		return o.app, nil
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})

	db, err := sqldb.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	migrationsFS, err := migrations.GetFS(cfg.Database.Driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	applied, err := sqldb.RunMigrations(ctx, db, migrationsFS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if len(applied) > 0 {
		log.WithFields(map[string]interface{}{"migrations": applied}).Info("Applied migrations")
	}

	scans := sqldb.NewScanRepository(db)
	changes := sqldb.NewChangeRepository(db)
	rec := reconciler.New(scans, changes, log)
	an := analyzer.New(scans, changes, rec, log)

	o.app = &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		scans:      scans,
		changes:    changes,
		reconciler: rec,
		analyzer:   an,
		reporter:   health.NewReporter(scans, an, log),
		snapshots:  services.NewSnapshotService(source.NewManifestSource(cfg.Scanner.ManifestDir, log), scans, rec, log),
	}
	return o.app, nil
}

// withSource rebuilds the snapshot service on another manifest directory
func (a *app) withSource(dir string) {
	a.cfg.Scanner.ManifestDir = dir
	a.snapshots = services.NewSnapshotService(source.NewManifestSource(dir, a.log), a.scans, a.reconciler, a.log)
}

func (o *options) close() error {
	if o.app == nil {
		return nil
	}
	err := o.app.db.Close()
	o.app = nil
	return err
}
