// Package main is the entry point for the Tandem engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tandemlabs/tandem-engine/internal/activity"
	"github.com/tandemlabs/tandem-engine/internal/config"
	"github.com/tandemlabs/tandem-engine/internal/ipc"
	"github.com/tandemlabs/tandem-engine/internal/pairing"
	"github.com/tandemlabs/tandem-engine/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration JSON file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tandem %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	// Resolve config path: --config flag > TANDEM_CONFIG env > auto-discover
	// next to exe. With no file anywhere, defaults plus environment
	// overrides apply.
	path := *configPath
	if path == "" {
		path = os.Getenv("TANDEM_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	machine := activity.NewMachine(db, activity.Config{
		StoryMaxTurns:    cfg.StoryMaxTurns,
		LayersPerUser:    cfg.LayersPerUser,
		SongPartsPerUser: cfg.SongPartsPerUser,
	})
	manager := pairing.NewManager(db)

	handler := &ipc.Handler{
		Pairing:      manager,
		Machine:      machine,
		DB:           db,
		Journal:      &store.JournalRepo{},
		Activities:   &store.ActivityRepo{},
		SnapshotPoll: time.Duration(cfg.SnapshotPollMs) * time.Millisecond,
	}

	srv := ipc.NewServer(handler, cfg.ListenAddr)

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("tandem engine listening on %s", ipc.FormatListenURL(cfg.ListenAddr))

	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// discoverConfig looks for config.json next to the executable, then in the cwd.
func discoverConfig() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}
