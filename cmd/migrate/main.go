package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/samirrijal/mylocation/internal/adapters/postgres"
	"github.com/samirrijal/mylocation/internal/pkg/config"
	"github.com/samirrijal/mylocation/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down>")
	}

	cfg, err := config.Load("mylocation-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx, os.Args[1]); err != nil {
		log.Fatalf("migrate %s: %v", os.Args[1], err)
	}
	slog.Info("all migrations applied", "direction", os.Args[1])
}
