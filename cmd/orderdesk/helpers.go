package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/celikd/orderdesk/internal/config"
	"github.com/celikd/orderdesk/internal/dedup"
	"github.com/celikd/orderdesk/internal/directory"
	"github.com/celikd/orderdesk/internal/engine"
	"github.com/celikd/orderdesk/internal/extract"
	"github.com/celikd/orderdesk/internal/match"
	"github.com/celikd/orderdesk/internal/pricing"
	"github.com/celikd/orderdesk/internal/storage"
)

// initStorage initializes the storage layer with proper path expansion.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/orderdesk/orderdesk.db"
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initProcessor wires the full pipeline over the given store.
func initProcessor(store *storage.SQLiteStorage) (*engine.Processor, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	clients := directory.NewClientCache(store, cfg.Directory.CacheTTL)
	products := directory.NewProductCache(store, cfg.Directory.CacheTTL)

	return engine.NewProcessor(
		extract.NewExtractor(cfg.Extract),
		clients,
		products,
		match.NewClientMatcher(cfg.Matching),
		match.NewProductMatcher(cfg.Matching),
		dedup.NewDetector(store, cfg.Dedup),
		pricing.NewEngine(store, store, cfg.Pricing),
		store,
		store,
	), nil
}
