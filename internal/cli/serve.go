package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/snapdrift/internal/api/handlers"
	"github.com/pratik-mahalle/snapdrift/internal/api/router"
	"github.com/pratik-mahalle/snapdrift/internal/repository/sqldb"
	"github.com/pratik-mahalle/snapdrift/internal/worker"
	"github.com/pratik-mahalle/snapdrift/migrations"
)

func newServeCmd(o *options) *cobra.Command {
	var (
		port        int
		noScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the snapshot scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := o.openApp(ctx)
			if err != nil {
				return err
			}
			cfg := a.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			handler := router.New(cfg.Server, a.log, &router.Handlers{
				Health:   handlers.NewHealthHandler(a.db, a.log),
				Scan:     handlers.NewScanHandler(a.scans, a.changes, a.log),
				Analysis: handlers.NewAnalysisHandler(a.analyzer, a.reporter, cfg.Scanner.DriftWindowDays, a.log),
			})

			srv := &http.Server{
				Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
				Handler:      handler,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			if !noScheduler {
				scheduler := worker.NewScheduler(a.snapshots, worker.Config{
					Context:           cfg.Scanner.Context,
					Namespace:         cfg.Scanner.Namespace,
					Schedule:          cfg.Scanner.Schedule,
					RetentionDays:     cfg.Scanner.RetentionDays,
					RetentionSchedule: cfg.Scanner.RetentionSchedule,
				}, a.log)
				if err := scheduler.Start(ctx); err != nil {
					return err
				}
				defer scheduler.Stop()
			}

			errCh := make(chan error, 1)
			go func() {
				a.log.WithFields(map[string]interface{}{
					"addr":   srv.Addr,
					"driver": cfg.Database.Driver,
				}).Info("Server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			a.log.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port (overrides SERVER_PORT)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without periodic snapshots")

	return cmd
}

func newMigrateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}

			db, err := sqldb.New(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			migrationsFS, err := migrations.GetFS(cfg.Database.Driver)
			if err != nil {
				return err
			}
			applied, err := sqldb.RunMigrations(cmd.Context(), db, migrationsFS)
			if err != nil {
				return err
			}

			p := o.printer(cmd.OutOrStdout())
			if p.structured() {
				return p.print(map[string]interface{}{"applied": applied})
			}
			if len(applied) == 0 {
				p.line("Database is up to date")
				return nil
			}
			for _, name := range applied {
				p.line("Applied %s", name)
			}
			return nil
		},
	}
}
