package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hadoku/fidelity-worker/internal/api"
	"github.com/hadoku/fidelity-worker/internal/config"
	"github.com/hadoku/fidelity-worker/internal/fidelity"
	"github.com/hadoku/fidelity-worker/internal/journal"
	"github.com/hadoku/fidelity-worker/internal/quotes"
	"github.com/hadoku/fidelity-worker/internal/session"
	"github.com/hadoku/fidelity-worker/internal/util"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../../.env")

	cfg, err := config.Load(os.Getenv("TRADER_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)

	catalog := fidelity.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = fidelity.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("Failed to load selector catalog: %v", err)
		}
		logger.Info("selector catalog loaded", "path", cfg.CatalogPath)
	}

	var tradeJournal *journal.Journal
	if cfg.Database.Enabled() {
		tradeJournal, err = journal.Open(cfg.Database, logger)
		if err != nil {
			log.Fatalf("Failed to connect to trade journal database: %v", err)
		}
		logger.Info("trade journal connected", "host", cfg.Database.Host)
	} else {
		logger.Info("trade journal disabled, no database password configured")
	}

	var checker *quotes.Checker
	if cfg.Alpaca.Enabled() {
		checker = quotes.NewChecker(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret)
		logger.Info("reference quote cross-check enabled")
	}

	manager := session.NewManager(cfg, catalog, logger, tradeJournal, checker)

	// Log in at startup when credentials exist. Failure is not fatal: the
	// service comes up unauthenticated and /refresh-session retries later.
	if cfg.Fidelity.HasCredentials() {
		if err := manager.Authenticate(); err != nil {
			logger.Warn("startup authentication failed", "err", err)
		}
	} else {
		logger.Warn("no brokerage credentials configured, trading disabled until provided")
	}

	apiServer := &api.API{
		Trader:     manager,
		APIKey:     cfg.Server.APIKey,
		JWTManager: api.NewJWTManager(cfg.Server.JWTSecret),
		Log:        logger,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: apiServer.Router(),
	}

	go func() {
		logger.Info("starting trading worker", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", "err", err)
	}

	manager.Close()
	tradeJournal.Close()
}
