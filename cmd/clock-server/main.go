package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clockreader "github.com/pinthoz/analogic-watch-detector"
	"github.com/pinthoz/analogic-watch-detector/internal/backend"
	"github.com/pinthoz/analogic-watch-detector/internal/config"
	"github.com/pinthoz/analogic-watch-detector/internal/server"
	"github.com/pinthoz/analogic-watch-detector/internal/store"
	"github.com/pinthoz/analogic-watch-detector/internal/utils"
)

func main() {
	var configPath, addr string
	var noHistory bool

	flag.StringVar(&configPath, "config", "", "config file (default ~/.config/analogic-watch-detector/config.json if present)")
	flag.StringVar(&addr, "addr", "", "listen address (overrides config and PORT)")
	flag.BoolVar(&noHistory, "nohistory", false, "do not store readings in SQLite")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Default()
	if configPath == "" && utils.FileExists(config.GetConfigPath()) {
		configPath = config.GetConfigPath()
	}
	if configPath != "" {
		loaded, err := config.LoadFromFile(configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	be, err := backend.New(cfg.Detector, logger)
	if err != nil {
		log.Fatalf("Failed to create detector: %v", err)
	}
	defer be.Close()

	reader, err := clockreader.NewWithOptions(be.Detector, backend.ReaderOptions(cfg, logger))
	if err != nil {
		log.Fatal(err)
	}

	var history server.History
	if !noHistory {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			log.Fatalf("Failed to open history: %v", err)
		}
		defer db.Close()
		history = db
	}

	api := server.New(reader, history, server.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		OverlayQuality: cfg.Output.Quality,
		Stats:          be.Stats,
	}, logger)

	srv := &http.Server{
		Handler:      api.Handler(),
		Addr:         cfg.Server.Addr,
		WriteTimeout: cfg.Reader.DetectTimeout.Duration*2 + 30*time.Second,
		ReadTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s (%s backend)", srv.Addr, be.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Printf("server stopped")
}
