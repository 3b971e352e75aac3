/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the engagement engine API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Resolve configuration (flags > env > .engine.yaml > defaults)
  2. Initialize SQLite store
  3. Optionally seed it from a plan document
  4. Create API handler and start the rate refresher
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION:
  Flag                   Env                          Default
  --port                 ENGINE_PORT                  8080
  --db                   ENGINE_DB                    engine.db (":memory:" allowed)
  --week-start           ENGINE_WEEK_START            sunday (hour buckets)
  --timeline-week-start  ENGINE_TIMELINE_WEEK_START   sunday (Gantt columns)
  --rate-refresh         ENGINE_RATE_REFRESH          5m (0 disables the ticker)
  --cors-origins         ENGINE_CORS_ORIGINS          localhost dev servers, comma-separated
  --seed                 ENGINE_SEED                  plan document loaded at startup
  --config               ENGINE_CONFIG                ./.engine.yaml or $HOME/.engine.yaml

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the rate refresher
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server --db=./data/engine.db

  # In-memory database seeded with a demo portfolio
  ./server --db=":memory:" --seed=./examples/portfolio.yaml

  # Monday-first Gantt columns
  ENGINE_TIMELINE_WEEK_START=monday ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warp/engagement-engine/api"
	"github.com/warp/engagement-engine/factory"
	"github.com/warp/engagement-engine/generic"
	"github.com/warp/engagement-engine/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Serve the resource and timeline engine over HTTP.",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().Int("port", 8080, "HTTP server port")
	rootCmd.Flags().String("db", "engine.db", "SQLite database path (\":memory:\" for in-memory)")
	rootCmd.Flags().String("week-start", "sunday", "First day of hour buckets: sunday or monday")
	rootCmd.Flags().String("timeline-week-start", "sunday", "First day of timeline columns: sunday or monday")
	rootCmd.Flags().Duration("rate-refresh", 5*time.Minute, "Currency rate reload interval (0 disables)")
	rootCmd.Flags().String("cors-origins", strings.Join(api.DefaultAllowedOrigins, ","), "Comma-separated allowed CORS origins")
	rootCmd.Flags().String("seed", "", "Plan document (YAML/JSON) to load at startup")
	rootCmd.Flags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		log.Fatalf("Error binding flags: %v", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

type serverConfig struct {
	Port              int
	DBPath            string
	WeekStart         generic.WeekStart
	TimelineWeekStart generic.WeekStart
	RateRefresh       time.Duration
	CORSOrigins       []string
	SeedPath          string
}

// loadConfig merges defaults, file, env and flags, then validates.
func loadConfig() (serverConfig, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return serverConfig{}, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}

	cfg := serverConfig{
		Port:        viper.GetInt("port"),
		DBPath:      viper.GetString("db"),
		RateRefresh: viper.GetDuration("rate-refresh"),
		SeedPath:    viper.GetString("seed"),
	}

	var err error
	if cfg.WeekStart, err = generic.ParseWeekStart(viper.GetString("week-start")); err != nil {
		return cfg, fmt.Errorf("week-start: %w", err)
	}
	if cfg.TimelineWeekStart, err = generic.ParseWeekStart(viper.GetString("timeline-week-start")); err != nil {
		return cfg, fmt.Errorf("timeline-week-start: %w", err)
	}
	for _, origin := range strings.Split(viper.GetString("cors-origins"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("port %d out of range", cfg.Port)
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg serverConfig) error {
	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	if cfg.SeedPath != "" {
		doc, err := factory.NewPlanFactory().LoadFile(cfg.SeedPath)
		if err != nil {
			return err
		}
		if err := doc.Seed(ctx, store); err != nil {
			return fmt.Errorf("failed to seed %s: %w", cfg.SeedPath, err)
		}
		log.Printf("Seeded %d plans from %s", len(doc.Plans), cfg.SeedPath)
	}

	// Initialize handler
	handler := api.NewHandler(store)
	handler.Estimates = handler.Estimates.WithWeekStart(cfg.WeekStart)
	handler.TimelineWeekStart = cfg.TimelineWeekStart

	// Load the rate snapshot before serving, then keep it fresh
	if err := handler.Rates.Refresh(ctx); err != nil {
		log.Printf("Warning: Failed to load rates: %v", err)
	}
	handler.Rates.Interval = cfg.RateRefresh
	handler.Rates.Start()
	defer handler.Rates.Stop()

	// Create router
	router := api.NewRouter(handler, cfg.CORSOrigins...)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
