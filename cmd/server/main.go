// Command main is the entry point for the Toolhub backend server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"toolhub/internal/bootstrap"
	"toolhub/internal/config"
	"toolhub/internal/database"
	"toolhub/internal/observability"
	"toolhub/internal/server"
)

// @title Toolhub API
// @version 1.0
// @description Tool lending library API with catalog, collections, borrow requests, and reviews
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@toolhub.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8460
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize tracing before any request handling
	if cfg.TracingEnabled {
		shutdownTracing, terr := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "toolhub-api",
			ServiceVersion: "1.0.0",
			Environment:    cfg.Env,
			Enabled:        cfg.TracingEnabled,
			Exporter:       cfg.TracingExporter,
			OTLPEndpoint:   cfg.TracingOTLPEndpoint,
			SamplerRatio:   cfg.TracingSamplerRatio,
		})
		if terr != nil {
			log.Fatalf("Failed to initialize tracing: %v", terr)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if serr := shutdownTracing(ctx); serr != nil {
				log.Printf("tracing shutdown error: %v", serr)
			}
		}()
	}

	// Create server with dependency injection
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// First librarian for local development
	if err := bootstrap.EnsureDevLibrarian(context.Background(), database.DB, cfg); err != nil {
		log.Fatalf("Failed to bootstrap dev librarian: %v", err)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		os.Exit(0)
	}()

	// Start server
	log.Fatal(srv.Start())
}
