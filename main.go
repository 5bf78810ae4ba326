package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"web/communityglobe/config"
	"web/communityglobe/httpapi"
	"web/communityglobe/runner"
)

// loadInitialSession loads the configured roster, or a synthetic one when
// generate is positive, so the globe has something to show on first request.
func loadInitialSession(r *runner.Runner, cfg *config.Config, generate int) (*runner.Session, error) {
	req := &runner.LoadRosterRequest{Path: cfg.Data.RosterPath}
	if req.Path == "" {
		if generate <= 0 {
			return nil, nil
		}
		req = &runner.LoadRosterRequest{Generate: generate, Seed: cfg.Clustering.Seed}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	s, err := r.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	info := s.Info()
	log.Printf("Loaded session %s: %d attendees, %d points in %v",
		info.ID, info.Attendees, info.Points, time.Since(start))
	return s, nil
}

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "The HTTP listen address (overrides config)")
	generate := flag.Int("generate", 0, "Generate a synthetic roster of this many rows when no roster path is configured")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.HTTPAddr = *addr
	}

	viewRunner, err := runner.NewRunner(cfg)
	if err != nil {
		log.Fatalf("Failed to create runner: %v", err)
	}

	server := httpapi.NewServer(viewRunner)
	s, err := loadInitialSession(viewRunner, cfg, *generate)
	if err != nil {
		log.Printf("Failed to load initial roster: %v", err)
	} else if s != nil {
		server.SetDefaultSession(s.ID)
	}

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: server.Router(),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s...", cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := viewRunner.Close(); err != nil {
		log.Printf("Failed to close runner: %v", err)
	}
}
