package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/speedrun-hq/speedrun-minter/pkg/config"
	"github.com/speedrun-hq/speedrun-minter/pkg/minter"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Cancel on SIGINT/SIGTERM for a graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := minter.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create minter: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("Error while closing minter: %v", err)
		}
	}()

	log.Println("Starting the minter service...")
	if err := app.Start(ctx); err != nil {
		log.Printf("Minter stopped with error: %v", err)
		stop()
		return
	}
	log.Println("Minter stopped")
}
