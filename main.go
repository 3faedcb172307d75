// Command service-shop-go creates the database schema and exits. The API
// server lives in cmd/api.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// init logger
	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	if cfg.Database.Driver != "postgres" {
		sugar.Fatalf("schema bootstrap needs DATABASE_DRIVER=postgres, got %q", cfg.Database.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	_, ensurers := app.PostgresRepos(db)
	if err := database.EnsureAll(ctx, ensurers...); err != nil {
		sugar.Fatalf("ensure tables: %v", err)
	}
	sugar.Infow("schema ready", "repositories", len(ensurers))
}
