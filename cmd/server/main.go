package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/olyamironova/cryptodesk/internal/adapter/cache"
	"github.com/olyamironova/cryptodesk/internal/adapter/coingecko"
	"github.com/olyamironova/cryptodesk/internal/adapter/ledger"
	"github.com/olyamironova/cryptodesk/internal/adapter/pg"
	httpapi "github.com/olyamironova/cryptodesk/internal/api/http"
	"github.com/olyamironova/cryptodesk/internal/config"
	"github.com/olyamironova/cryptodesk/internal/core"
	"github.com/olyamironova/cryptodesk/internal/domain"
	"github.com/olyamironova/cryptodesk/internal/port"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	repo, err := pg.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect to Postgres", zap.Error(err))
	}
	defer repo.Close()

	// Quotes live in Redis when configured, otherwise in the Postgres
	// crypto_price_cache table. Same upsert semantics either way.
	var quoteStore port.QuoteStore = repo
	if cfg.RedisAddr != "" {
		quoteStore = cache.NewRedisQuotes(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 0)
	}

	quoteSource := coingecko.NewClient(cfg.QuoteBaseURL, cfg.FiatCurrency, cfg.SymbolIDs, cfg.QuoteTimeout())
	for _, s := range cfg.Symbols {
		if !quoteSource.Covers(s) {
			logger.Fatal("whitelisted symbol has no quote-provider id", zap.String("symbol", s))
		}
	}
	ledgerClient := ledger.NewClient(cfg.LedgerBaseURL, cfg.LedgerTimeout())

	prices := core.NewPriceCache(quoteStore, quoteSource, cfg.PriceTTL(), logger)
	engine := core.NewEngine(repo, prices, ledgerClient, domain.NewSymbolSet(cfg.Symbols...), cfg.FiatCurrency, logger)

	server := httpapi.NewHTTPServer(engine)
	logger.Info("starting HTTP server", zap.String("addr", cfg.ListenAddr))
	if err := server.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}
}
