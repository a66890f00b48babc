package main

import (
	"fmt"
	"os"

	"github.com/pratik-mahalle/assetwatch/internal/config"
	"github.com/pratik-mahalle/assetwatch/internal/repository/postgres"
	"github.com/pratik-mahalle/assetwatch/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Database.Driver == "memory" {
		fmt.Println("DB_DRIVER=memory has no schema to migrate")
		return
	}

	db, err := postgres.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database\n", cfg.Database.Driver)

	applied, err := postgres.RunMigrations(db, postgres.Dialect(cfg.Database.Driver), migrations.GetFS())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	if applied == 0 {
		fmt.Println("Schema is up to date")
		return
	}
	fmt.Printf("Applied %d migration(s)\n", applied)
}
