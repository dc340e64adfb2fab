package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/cover-letter-studio/internal/config"
	"github.com/jonathan/cover-letter-studio/internal/db"
	"github.com/jonathan/cover-letter-studio/internal/fetch"
	"github.com/jonathan/cover-letter-studio/internal/gateway"
	"github.com/jonathan/cover-letter-studio/internal/ingestion"
	"github.com/jonathan/cover-letter-studio/internal/progress"
	"github.com/jonathan/cover-letter-studio/internal/server"
	"github.com/jonathan/cover-letter-studio/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server exposing letter generation, jobs, letters and profiles to the web client.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	deadline, _ := cfg.Deadline()
	callTimeout, _ := cfg.CallTimeout()

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	passwordCfg, err := config.NewPasswordConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	importer := ingestion.NewImporter(client, log)
	var publisher *progress.RedisPublisher
	if cfg.RedisAddr != "" {
		publisher, err = progress.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisChannel, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		importer.Fetcher = &fetch.CachedFetcher{
			Cache: fetch.NewRedisCache(publisher.Client(), fetch.DefaultCacheTTL),
			Log:   log,
		}
		log.Info("progress and page cache backed by redis", "addr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	} else {
		importer.Fetcher = &fetch.CachedFetcher{Cache: fetch.NewMemoryCache(), Log: log}
	}

	srv, err := server.New(server.Config{
		Port:           cfg.Port,
		Deadline:       deadline,
		AllowedOrigins: cfg.AllowedOrigins,
		JWT:            jwtCfg,
		Password:       passwordCfg,
		RateLimit:      ratelimit.LoadConfig(),
	}, server.Deps{
		Repository: gateway.NewPostgres(database, gateway.NewLLMWriter(client, callTimeout), log),
		Users:      database,
		Importer:   importer,
		Redis:      publisher,
		Database:   database,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start(ctx)
}
