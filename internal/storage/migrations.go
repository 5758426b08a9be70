package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS clients (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					domains TEXT NOT NULL DEFAULT '[]',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS products (
					id TEXT PRIMARY KEY,
					code TEXT NOT NULL,
					name TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_products_code ON products(code)`,

				`CREATE TABLE IF NOT EXISTS sales (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					product_id TEXT NOT NULL,
					client_id TEXT NOT NULL,
					sale_date DATETIME NOT NULL,
					price TEXT NOT NULL,
					quantity INTEGER NOT NULL DEFAULT 1
				)`,
				`CREATE INDEX idx_sales_product ON sales(product_id)`,
				`CREATE INDEX idx_sales_product_client ON sales(product_id, client_id)`,

				`CREATE TABLE IF NOT EXISTS supplier_prices (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					product_id TEXT NOT NULL,
					price_date DATETIME NOT NULL,
					price TEXT NOT NULL
				)`,
				`CREATE INDEX idx_supplier_prices_product ON supplier_prices(product_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Processed-request ledger with unique fingerprint",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS processed_requests (
					id TEXT PRIMARY KEY,
					fingerprint_hash TEXT UNIQUE NOT NULL,
					sender TEXT NOT NULL,
					client_id TEXT NOT NULL,
					product_ids TEXT NOT NULL DEFAULT '[]',
					subject TEXT,
					time_bucket DATETIME NOT NULL,
					first_seen DATETIME NOT NULL,
					outcome_ref TEXT,
					status TEXT NOT NULL,
					duplicate_flag TEXT NOT NULL DEFAULT 'NONE',
					superseded_by TEXT
				)`,
				`CREATE INDEX idx_requests_sender ON processed_requests(sender, first_seen)`,
				`CREATE INDEX idx_requests_client ON processed_requests(client_id, first_seen)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Pricing decisions and duplicate-check audit trail",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS pricing_decisions (
					id TEXT PRIMARY KEY,
					request_id TEXT NOT NULL,
					case_type TEXT NOT NULL,
					unit_price TEXT NOT NULL,
					margin_applied TEXT,
					justification TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					requires_validation INTEGER NOT NULL DEFAULT 0,
					alerts TEXT NOT NULL DEFAULT '[]',
					client_id TEXT NOT NULL,
					product_id TEXT NOT NULL,
					quantity INTEGER NOT NULL DEFAULT 0,
					supplier_price TEXT NOT NULL,
					prior_sale_price TEXT,
					created_at DATETIME NOT NULL,
					supersedes TEXT
				)`,
				`CREATE INDEX idx_decisions_request ON pricing_decisions(request_id)`,
				`CREATE INDEX idx_decisions_product ON pricing_decisions(product_id)`,

				`CREATE TABLE IF NOT EXISTS duplicate_checks (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					fingerprint_hash TEXT NOT NULL,
					type TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					prior_request_id TEXT,
					checked_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_duplicate_checks_hash ON duplicate_checks(fingerprint_hash)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Fingerprint uniqueness scoped to non-superseded requests",
		Up: func(tx *sql.Tx) error {
			// The inline UNIQUE constraint held a fingerprint hash forever,
			// even after its request aged past the lookback window. Rebuild
			// the table so uniqueness only covers the active record and a
			// superseded one can be replaced.
			queries := []string{
				`ALTER TABLE processed_requests RENAME TO processed_requests_old`,
				`CREATE TABLE processed_requests (
					id TEXT PRIMARY KEY,
					fingerprint_hash TEXT NOT NULL,
					sender TEXT NOT NULL,
					client_id TEXT NOT NULL,
					product_ids TEXT NOT NULL DEFAULT '[]',
					subject TEXT,
					time_bucket DATETIME NOT NULL,
					first_seen DATETIME NOT NULL,
					outcome_ref TEXT,
					status TEXT NOT NULL,
					duplicate_flag TEXT NOT NULL DEFAULT 'NONE',
					superseded_by TEXT
				)`,
				`INSERT INTO processed_requests
					SELECT id, fingerprint_hash, sender, client_id, product_ids,
					       subject, time_bucket, first_seen, outcome_ref, status,
					       duplicate_flag, superseded_by
					FROM processed_requests_old`,
				`DROP TABLE processed_requests_old`,
				`CREATE UNIQUE INDEX uq_requests_active_fingerprint
					ON processed_requests(fingerprint_hash)
					WHERE superseded_by IS NULL`,
				`CREATE INDEX idx_requests_sender ON processed_requests(sender, first_seen)`,
				`CREATE INDEX idx_requests_client ON processed_requests(client_id, first_seen)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		slog.Info("Applied migration", "version", m.Version, "description", m.Description)
	}

	return nil
}
