package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/MaciejGL/shaper/internal/config"
	"github.com/MaciejGL/shaper/internal/drafts"
	"github.com/MaciejGL/shaper/internal/mcp"
	"github.com/MaciejGL/shaper/internal/remote"
	"github.com/MaciejGL/shaper/internal/session"
	"github.com/MaciejGL/shaper/internal/storage"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	planID := flag.String("plan", "", "plan to open (overrides session.plan_id)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("shaper-mcp", Version)
		return
	}

	// stdout carries the MCP protocol.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *planID != "" {
		if err := os.Setenv("SHAPER_SESSION_PLAN_ID", *planID); err != nil {
			log.Error("failed to set plan", "error", err)
			os.Exit(1)
		}
	}
	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store session.Remote
	if cfg.Remote.URL != "" {
		store = remote.NewHTTPClient(cfg.Remote.URL, cfg.Remote.APIKey)
		log.Info("using remote server", "url", cfg.Remote.URL)
	} else {
		db, err := storage.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = db
		log.Info("database connected")
	}

	journal, err := drafts.OpenJournal(cfg.Drafts.Dir, cfg.Session.PlanID)
	if err != nil {
		log.Error("failed to open drafts journal", "error", err)
		os.Exit(1)
	}
	defer journal.Close()

	sess := session.New(store, session.Options{
		PlanID:       cfg.Session.PlanID,
		EditDebounce: cfg.Session.EditDebounce,
		ClickWindow:  cfg.Session.ClickWindow,
		DefaultRest:  cfg.Session.DefaultRest,
		Journal:      journal,
		Logger:       log,
		OnError: func(op string, err error) {
			log.Error("background mutation failed", "op", op, "error", err)
		},
		OnRestDone: func(setID string) {
			log.Info("rest finished", "set", setID)
		},
	})
	defer sess.Close()

	if err := sess.Load(ctx); err != nil {
		log.Error("failed to load plan", "plan", cfg.Session.PlanID, "error", err)
		os.Exit(1)
	}
	log.Info("session ready", "plan", cfg.Session.PlanID, "version", Version)

	if err := server.ServeStdio(mcp.New(sess, Version, log)); err != nil {
		log.Error("mcp server error", "error", err)
	}
}
