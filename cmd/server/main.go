package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/himanishpuri/AdvertDNA/internal/app"
	"github.com/himanishpuri/AdvertDNA/internal/config"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "", "Optional config file (yaml, json, toml or env); environment variables override it")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, sink, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	if sink != nil {
		defer sink.Close()
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	server := NewServer(a.Pipeline, a.Prober, &ServerConfig{
		Addr:           cfg.ListenAddr(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowedOrigins: cfg.Origins(),
		ProbeTimeout:   cfg.ProbeSampleDuration() + time.Minute,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Errorf("Server failed: %v", err)
		a.Close()
		os.Exit(1)
	}
}
