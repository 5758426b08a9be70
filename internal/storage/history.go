package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/celikd/orderdesk/internal/model"
)

// AddSale appends one sale line to a product's history.
func (s *SQLiteStorage) AddSale(ctx context.Context, productID string, sale model.Sale) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(productID, "productID"); err != nil {
		return err
	}
	if err := validateString(sale.ClientID, "sale.ClientID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (product_id, client_id, sale_date, price, quantity)
		VALUES (?, ?, ?, ?, ?)
	`, productID, sale.ClientID, sale.Date, sale.Price.String(), sale.Quantity)
	if err != nil {
		return fmt.Errorf("failed to add sale: %w", err)
	}
	return nil
}

// SalesFor returns the sale history of a product, optionally restricted to
// one client. An empty clientID retrieves cross-client history.
func (s *SQLiteStorage) SalesFor(ctx context.Context, clientID, productID string) ([]model.Sale, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(productID, "productID"); err != nil {
		return nil, err
	}

	query := `SELECT client_id, sale_date, price, quantity FROM sales WHERE product_id = ?`
	args := []any{productID}
	if clientID != "" {
		query += ` AND client_id = ?`
		args = append(args, clientID)
	}
	query += ` ORDER BY sale_date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sales []model.Sale
	for rows.Next() {
		var sale model.Sale
		var price string
		if err := rows.Scan(&sale.ClientID, &sale.Date, &price, &sale.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		if sale.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("corrupt sale price %q: %w", price, err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sales: %w", err)
	}
	return sales, nil
}

// AddSupplierPrice appends one point to a product's supplier price history.
func (s *SQLiteStorage) AddSupplierPrice(ctx context.Context, productID string, point model.PricePoint) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(productID, "productID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supplier_prices (product_id, price_date, price)
		VALUES (?, ?, ?)
	`, productID, point.Date, point.Price.String())
	if err != nil {
		return fmt.Errorf("failed to add supplier price: %w", err)
	}
	return nil
}

// PriceHistory returns the supplier price history of a product, oldest
// first.
func (s *SQLiteStorage) PriceHistory(ctx context.Context, productID string) ([]model.PricePoint, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(productID, "productID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT price_date, price FROM supplier_prices
		WHERE product_id = ?
		ORDER BY price_date ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query supplier prices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var points []model.PricePoint
	for rows.Next() {
		var point model.PricePoint
		var price string
		if err := rows.Scan(&point.Date, &price); err != nil {
			return nil, fmt.Errorf("failed to scan supplier price: %w", err)
		}
		if point.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("corrupt supplier price %q: %w", price, err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate supplier prices: %w", err)
	}
	return points, nil
}
