package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/celikd/orderdesk/internal/model"
)

// Find returns the active (non-superseded) record with the given fingerprint
// hash, or nil when none exists.
func (s *SQLiteStorage) Find(ctx context.Context, hash string) (*model.ProcessedRequest, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(hash, "hash"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, fingerprint_hash, sender, client_id, product_ids, subject,
		       time_bucket, first_seen, outcome_ref, status, duplicate_flag,
		       COALESCE(superseded_by, '')
		FROM processed_requests
		WHERE fingerprint_hash = ? AND superseded_by IS NULL
	`, hash)

	record, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find request: %w", err)
	}
	return record, nil
}

// FindRecentBySender returns the records from this sender since the cutoff,
// newest first.
func (s *SQLiteStorage) FindRecentBySender(ctx context.Context, sender string, since time.Time) ([]model.ProcessedRequest, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint_hash, sender, client_id, product_ids, subject,
		       time_bucket, first_seen, outcome_ref, status, duplicate_flag,
		       COALESCE(superseded_by, '')
		FROM processed_requests
		WHERE sender = ? AND first_seen > ?
		ORDER BY first_seen DESC
	`, sender, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests by sender: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRequests(rows)
}

// FindRecentByClient returns the records resolved to this client since the
// cutoff, newest first.
func (s *SQLiteStorage) FindRecentByClient(ctx context.Context, clientID string, since time.Time) ([]model.ProcessedRequest, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint_hash, sender, client_id, product_ids, subject,
		       time_bucket, first_seen, outcome_ref, status, duplicate_flag,
		       COALESCE(superseded_by, '')
		FROM processed_requests
		WHERE client_id = ? AND first_seen > ?
		ORDER BY first_seen DESC
	`, clientID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests by client: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRequests(rows)
}

// InsertIfAbsent atomically inserts the record unless another non-superseded
// record already owns its fingerprint hash. The partial unique index on
// fingerprint_hash is the system's only mutual-exclusion boundary; unrelated
// requests are never serialized against each other.
func (s *SQLiteStorage) InsertIfAbsent(ctx context.Context, record *model.ProcessedRequest) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	res, err := s.insertRequest(ctx, s.db, record)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return affected == 1, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStorage) insertRequest(ctx context.Context, db execer, record *model.ProcessedRequest) (sql.Result, error) {
	productIDs, err := json.Marshal(record.Fingerprint.ProductIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode product ids: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO processed_requests (
			id, fingerprint_hash, sender, client_id, product_ids, subject,
			time_bucket, first_seen, outcome_ref, status, duplicate_flag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint_hash) WHERE superseded_by IS NULL DO NOTHING
	`,
		record.ID,
		record.Hash,
		record.Fingerprint.Sender,
		record.Fingerprint.ClientID,
		string(productIDs),
		record.Subject,
		record.Fingerprint.TimeBucket,
		record.FirstSeen,
		record.OutcomeRef,
		string(record.Status),
		string(record.DuplicateFlag),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}
	return res, nil
}

// SupersedeRequest marks an active record as superseded by another, freeing
// its fingerprint hash for a fresh record. The original row is never deleted.
// Superseding a record twice is a no-op: the first link wins.
func (s *SQLiteStorage) SupersedeRequest(ctx context.Context, id, supersededBy string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if err := validateString(supersededBy, "supersededBy"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE processed_requests SET status = ?, superseded_by = ?
		WHERE id = ? AND superseded_by IS NULL
	`, string(model.RequestSuperseded), supersededBy, id)
	if err != nil {
		return fmt.Errorf("failed to supersede request: %w", err)
	}
	return nil
}

// ListRequests returns the most recent processed requests, newest first.
func (s *SQLiteStorage) ListRequests(ctx context.Context, limit int) ([]model.ProcessedRequest, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint_hash, sender, client_id, product_ids, subject,
		       time_bucket, first_seen, outcome_ref, status, duplicate_flag,
		       COALESCE(superseded_by, '')
		FROM processed_requests
		ORDER BY first_seen DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRequests(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*model.ProcessedRequest, error) {
	var (
		record     model.ProcessedRequest
		productIDs string
		subject    sql.NullString
		outcomeRef sql.NullString
	)
	err := row.Scan(
		&record.ID,
		&record.Hash,
		&record.Fingerprint.Sender,
		&record.Fingerprint.ClientID,
		&productIDs,
		&subject,
		&record.Fingerprint.TimeBucket,
		&record.FirstSeen,
		&outcomeRef,
		&record.Status,
		&record.DuplicateFlag,
		&record.SupersededBy,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(productIDs), &record.Fingerprint.ProductIDs); err != nil {
		return nil, fmt.Errorf("failed to decode product ids: %w", err)
	}
	record.Subject = subject.String
	record.OutcomeRef = outcomeRef.String
	return &record, nil
}

func collectRequests(rows *sql.Rows) ([]model.ProcessedRequest, error) {
	var records []model.ProcessedRequest
	for rows.Next() {
		record, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate requests: %w", err)
	}
	return records, nil
}
