package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"web/communityglobe/config"
	"web/communityglobe/runner"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "The gRPC listen address (overrides config)")
	maxSessions := flag.Int("max-sessions", 0, "Maximum number of sessions to keep in memory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.GRPCAddr = *addr
	}
	if *maxSessions > 0 {
		cfg.Runner.MaxSessions = *maxSessions
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	viewRunner, err := runner.NewRunner(cfg)
	if err != nil {
		log.Fatalf("Failed to create runner: %v", err)
	}

	s := grpc.NewServer()
	runner.RegisterViewServiceServer(s, viewRunner)

	// Enable reflection for debugging
	reflection.Register(s)

	if cfg.Data.RosterPath != "" {
		if _, err := viewRunner.Load(context.Background(), &runner.LoadRosterRequest{Path: cfg.Data.RosterPath}); err != nil {
			log.Printf("Failed to load roster %s: %v", cfg.Data.RosterPath, err)
		}
	}

	// Handle shutdown gracefully
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down gRPC server...")
		s.GracefulStop()
	}()

	log.Printf("Starting gRPC server on %s...", cfg.Server.GRPCAddr)
	if err := s.Serve(lis); err != nil {
		log.Fatalf("Failed to serve: %v", err)
	}

	if err := viewRunner.Close(); err != nil {
		log.Printf("Failed to close runner: %v", err)
	}
}
