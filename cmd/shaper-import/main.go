package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/MaciejGL/shaper/internal/config"
	"github.com/MaciejGL/shaper/internal/models"
	"github.com/MaciejGL/shaper/internal/plan"
	"github.com/MaciejGL/shaper/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "validate plans without writing to the database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Usage: shaper-import -config config.yaml [-dry-run] plan.json...\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	plans := make([]*models.Plan, 0, flag.NArg())
	for _, path := range flag.Args() {
		p, err := readPlan(path)
		if err != nil {
			log.Error("invalid plan", "path", path, "error", err)
			os.Exit(1)
		}
		plans = append(plans, p)
		log.Info("plan ok", "path", path, "plan", p.ID, "weeks", len(p.Weeks))
	}

	if *dryRun {
		log.Info("DRY RUN mode: nothing written")
		return
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	// Connect database
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	for _, p := range plans {
		if err := db.SavePlan(ctx, p); err != nil {
			log.Error("import failed", "plan", p.ID, "error", err)
			os.Exit(1)
		}
		log.Info("plan imported", "plan", p.ID)
	}
	log.Info("import complete", "plans", len(plans))
}

func readPlan(path string) (*models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	var p models.Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if err := plan.Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}
