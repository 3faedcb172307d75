package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-shop-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-shop-go/internal/memstore"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/utilities"
)

func main() {
	// load .env file if present; best effort
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	utilities.SetSnowflakeNode(cfg.SnowflakeNode)

	// init logger
	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Infow("starting service-shop-go", "environment", cfg.Environment, "database", cfg.Database.Driver)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repos app.Repos
	switch cfg.Database.Driver {
	case "memory":
		sugar.Warn("using in-memory storage; data is lost on exit")
		repos = app.MemoryRepos(memstore.New())
	default:
		db, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			sugar.Fatalf("db connect: %v", err)
		}
		defer db.Close()

		var ensurers []database.TableEnsurer
		repos, ensurers = app.PostgresRepos(db)
		if cfg.Database.AutoMigrate {
			if err := database.EnsureAll(ctx, ensurers...); err != nil {
				sugar.Fatalf("ensure tables: %v", err)
			}
		}
	}

	a, err := app.New(cfg, sugar, repos, app.Options{})
	if err != nil {
		sugar.Fatalf("build app: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      a.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// run server in background
	go func() {
		sugar.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	// let queued reset mails finish
	a.Recovery.Wait()

	sugar.Info("goodbye")
}
