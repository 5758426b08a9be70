// Package testutil provides shared test utilities: in-memory databases and
// reference-data fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/celikd/orderdesk/internal/model"
	"github.com/celikd/orderdesk/internal/storage"
)

// SetupTestDB creates a migrated in-memory SQLite store with automatic
// cleanup.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// SeedCatalog loads clients and products into the store.
func SeedCatalog(t *testing.T, store *storage.SQLiteStorage, clients []model.Client, products []model.Product) {
	t.Helper()
	ctx := context.Background()

	for i := range clients {
		if err := store.UpsertClient(ctx, &clients[i]); err != nil {
			t.Fatalf("failed to seed client %s: %v", clients[i].ID, err)
		}
	}
	for i := range products {
		if err := store.UpsertProduct(ctx, &products[i]); err != nil {
			t.Fatalf("failed to seed product %s: %v", products[i].ID, err)
		}
	}
}

// Price parses a decimal literal or fails the test.
func Price(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad price literal %q: %v", value, err)
	}
	return d
}

// DaysAgo returns a timestamp the given number of days in the past.
func DaysAgo(days int) time.Time {
	return time.Now().AddDate(0, 0, -days)
}
