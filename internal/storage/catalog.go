package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/celikd/orderdesk/internal/model"
)

// UpsertClient inserts or updates a client directory entry.
func (s *SQLiteStorage) UpsertClient(ctx context.Context, client *model.Client) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(client.ID, "client.ID"); err != nil {
		return err
	}
	if err := validateString(client.Name, "client.Name"); err != nil {
		return err
	}

	domains, err := json.Marshal(client.Domains)
	if err != nil {
		return fmt.Errorf("failed to encode domains: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, domains) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			domains = excluded.domains
	`, client.ID, client.Name, string(domains))
	if err != nil {
		return fmt.Errorf("failed to upsert client: %w", err)
	}
	return nil
}

// ListClients returns every client in the directory.
func (s *SQLiteStorage) ListClients(ctx context.Context) ([]model.Client, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, domains FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var clients []model.Client
	for rows.Next() {
		var c model.Client
		var domains string
		if err := rows.Scan(&c.ID, &c.Name, &domains); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		if err := json.Unmarshal([]byte(domains), &c.Domains); err != nil {
			return nil, fmt.Errorf("corrupt domains for client %s: %w", c.ID, err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}

// UpsertProduct inserts or updates a product catalog entry.
func (s *SQLiteStorage) UpsertProduct(ctx context.Context, product *model.Product) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(product.ID, "product.ID"); err != nil {
		return err
	}
	if err := validateString(product.Code, "product.Code"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, code, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name
	`, product.ID, product.Code, product.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

// ListProducts returns every product in the catalog.
func (s *SQLiteStorage) ListProducts(ctx context.Context) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}
