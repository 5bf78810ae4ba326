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

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "The HTTP listen address (overrides config)")
	upstream := flag.String("upstream", "", "The runner address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.HTTPAddr = *addr
	}
	if *upstream != "" {
		cfg.Server.Upstream = *upstream
	}

	// Connect to view runner
	client, err := runner.Dial(cfg.Server.Upstream)
	if err != nil {
		log.Fatalf("Failed to connect to view runner: %v", err)
	}
	defer client.Close()

	server := httpapi.NewServer(client)

	// Most recently used session becomes the default
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if resp, err := client.ListSessions(ctx, &runner.ListSessionsRequest{}); err == nil && len(resp.Sessions) > 0 {
		server.SetDefaultSession(resp.Sessions[0].ID)
	}
	cancel()

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: server.Router(),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s (runner at %s)...", cfg.Server.HTTPAddr, cfg.Server.Upstream)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
