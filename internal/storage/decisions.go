package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/celikd/orderdesk/internal/common"
	"github.com/celikd/orderdesk/internal/model"
)

// RecordProposal persists a fully computed proposal as one logical step:
// the processed-request record, its duplicate-check audit row and every
// pricing decision commit or roll back together. Returns false without
// writing decisions when another writer already owns the fingerprint.
func (s *SQLiteStorage) RecordProposal(ctx context.Context, record *model.ProcessedRequest, check model.DuplicateCheck, decisions []model.PricingDecision) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	for i := range decisions {
		if err := decisions[i].Validate(); err != nil {
			return false, fmt.Errorf("invalid decision: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := s.insertRequest(ctx, tx, record)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		// Lost the race: the conflicting writer's decisions stand.
		return false, nil
	}

	if err := insertDuplicateCheckTx(ctx, tx, record.Hash, check); err != nil {
		return false, err
	}

	for i := range decisions {
		if err := insertDecisionTx(ctx, tx, &decisions[i]); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit proposal: %w", err)
	}
	return true, nil
}

// RecordDuplicateCheck appends a duplicate classification to the audit
// trail outside of a proposal write (strict short-circuits).
func (s *SQLiteStorage) RecordDuplicateCheck(ctx context.Context, hash string, check model.DuplicateCheck) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertDuplicateCheckTx(ctx, tx, hash, check); err != nil {
		return err
	}
	return tx.Commit()
}

func insertDuplicateCheckTx(ctx context.Context, tx *sql.Tx, hash string, check model.DuplicateCheck) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO duplicate_checks (fingerprint_hash, type, confidence, prior_request_id)
		VALUES (?, ?, ?, ?)
	`, hash, string(check.Type), check.Confidence, check.PriorRequestID)
	if err != nil {
		return fmt.Errorf("failed to record duplicate check: %w", err)
	}
	return nil
}

func insertDecisionTx(ctx context.Context, tx *sql.Tx, d *model.PricingDecision) error {
	alerts, err := json.Marshal(d.Alerts)
	if err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}

	var margin, priorPrice any
	if d.MarginApplied != nil {
		margin = d.MarginApplied.String()
	}
	if d.Input.PriorSalePrice != nil {
		priorPrice = d.Input.PriorSalePrice.String()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pricing_decisions (
			id, request_id, case_type, unit_price, margin_applied,
			justification, confidence, requires_validation, alerts,
			client_id, product_id, quantity, supplier_price,
			prior_sale_price, created_at, supersedes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		d.RequestID,
		string(d.Case),
		d.UnitPrice.String(),
		margin,
		d.Justification,
		d.Confidence,
		d.RequiresValidation,
		string(alerts),
		d.Input.ClientID,
		d.Input.ProductID,
		d.Input.Quantity,
		d.Input.SupplierPrice.String(),
		priorPrice,
		d.CreatedAt,
		nullable(d.Supersedes),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// SupersedeDecision appends a replacement decision linked to the one it
// corrects. The superseded decision row is never modified: the ledger stays
// append-only.
func (s *SQLiteStorage) SupersedeDecision(ctx context.Context, oldID string, replacement *model.PricingDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(oldID, "oldID"); err != nil {
		return err
	}

	old, err := s.GetDecision(ctx, oldID)
	if err != nil {
		return err
	}
	replacement.Supersedes = old.ID
	replacement.RequestID = old.RequestID
	if err := replacement.Validate(); err != nil {
		return fmt.Errorf("invalid replacement decision: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertDecisionTx(ctx, tx, replacement); err != nil {
		return err
	}
	return tx.Commit()
}

// GetDecision returns one pricing decision by id.
func (s *SQLiteStorage) GetDecision(ctx context.Context, id string) (*model.PricingDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, decisionSelect+` WHERE id = ?`, id)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decision %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	return d, nil
}

// ListDecisionsForRequest returns all decisions for a request, oldest first.
func (s *SQLiteStorage) ListDecisionsForRequest(ctx context.Context, requestID string) ([]model.PricingDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, decisionSelect+` WHERE request_id = ? ORDER BY created_at ASC`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.PricingDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}
	return decisions, nil
}

// ListRecentDecisions returns the latest decisions across all requests.
func (s *SQLiteStorage) ListRecentDecisions(ctx context.Context, limit int) ([]model.PricingDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, decisionSelect+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.PricingDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}
	return decisions, nil
}

const decisionSelect = `
	SELECT id, request_id, case_type, unit_price, margin_applied,
	       justification, confidence, requires_validation, alerts,
	       client_id, product_id, quantity, supplier_price,
	       prior_sale_price, created_at, COALESCE(supersedes, '')
	FROM pricing_decisions`

func scanDecision(row rowScanner) (*model.PricingDecision, error) {
	var (
		d          model.PricingDecision
		unitPrice  string
		margin     sql.NullString
		alerts     string
		supplier   string
		priorPrice sql.NullString
		createdAt  time.Time
	)
	err := row.Scan(
		&d.ID,
		&d.RequestID,
		&d.Case,
		&unitPrice,
		&margin,
		&d.Justification,
		&d.Confidence,
		&d.RequiresValidation,
		&alerts,
		&d.Input.ClientID,
		&d.Input.ProductID,
		&d.Input.Quantity,
		&supplier,
		&priorPrice,
		&createdAt,
		&d.Supersedes,
	)
	if err != nil {
		return nil, err
	}

	if d.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("corrupt unit price %q: %w", unitPrice, err)
	}
	if d.Input.SupplierPrice, err = decimal.NewFromString(supplier); err != nil {
		return nil, fmt.Errorf("corrupt supplier price %q: %w", supplier, err)
	}
	if margin.Valid {
		m, err := decimal.NewFromString(margin.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt margin %q: %w", margin.String, err)
		}
		d.MarginApplied = &m
	}
	if priorPrice.Valid {
		p, err := decimal.NewFromString(priorPrice.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt prior sale price %q: %w", priorPrice.String, err)
		}
		d.Input.PriorSalePrice = &p
	}
	if err := json.Unmarshal([]byte(alerts), &d.Alerts); err != nil {
		return nil, fmt.Errorf("corrupt alerts %q: %w", alerts, err)
	}
	d.CreatedAt = createdAt
	return &d, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
