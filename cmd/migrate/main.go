package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pratik-mahalle/snapdrift/internal/config"
	"github.com/pratik-mahalle/snapdrift/internal/repository/sqldb"
	"github.com/pratik-mahalle/snapdrift/migrations"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := sqldb.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database successfully\n", cfg.Database.Driver)

	migrationsFS, err := migrations.GetFS(cfg.Database.Driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load migrations: %v\n", err)
		os.Exit(1)
	}

	applied, err := sqldb.RunMigrations(context.Background(), db, migrationsFS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	if len(applied) == 0 {
		fmt.Println("No pending migrations")
		return
	}
	for _, name := range applied {
		fmt.Printf("Migration %s completed successfully\n", name)
	}
	fmt.Println("\nAll migrations completed successfully!")
}
