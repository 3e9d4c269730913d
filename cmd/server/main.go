package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/siphyr/dmserver/internal/api"
	"github.com/siphyr/dmserver/internal/config"
	"github.com/siphyr/dmserver/internal/database"
	"github.com/siphyr/dmserver/internal/server"
	"github.com/siphyr/dmserver/internal/stats"
	"github.com/siphyr/dmserver/internal/store"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	addr           string
	dsn            string
	signingKey     string
	allowedOrigins stringSliceFlag
)

func main() {
	// .env is optional; flags override anything it sets.
	_ = godotenv.Load()

	flag.StringVar(&addr, "addr", envOr("DMSERVER_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("DMSERVER_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", envOr("DMSERVER_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key shared with the identity provider")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		if v := os.Getenv("DMSERVER_ALLOWED_ORIGINS"); v != "" {
			allowedOrigins = strings.Split(v, ",")
		}
	}

	logger := log.New(os.Stderr, "[dmserver] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	db, err := database.NewPgMessagingRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	messageStore := store.NewMessageStore(logger, db)
	reader := store.NewConversationReader(messageStore)

	messagingServer, err := server.NewMessagingServer(logger, messageStore, statsUpdater)
	if err != nil {
		logger.Fatal("new messaging server:", err)
	}

	srv := api.NewMessagingApp(mux, logger, messagingServer, db, reader, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down messaging server...")
	if err := messagingServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("messaging server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
