package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/storage"
)

const (
	upsertDetection = `
INSERT INTO detections
    (id, task, address, to_address, tx_hash, mode, probability, tx_count, explained, payload, created_at)
VALUES
    (:id, :task, :address, :to_address, :tx_hash, :mode, :probability, :tx_count, :explained, :payload, :created_at)
ON CONFLICT (id) DO UPDATE SET
    mode = EXCLUDED.mode,
    probability = EXCLUDED.probability,
    tx_count = EXCLUDED.tx_count,
    explained = EXCLUDED.explained,
    payload = EXCLUDED.payload`

	selectDetection = `
SELECT id, task, address, to_address, tx_hash, mode, probability, tx_count, explained, payload, created_at
FROM detections`
)

// DetectionRepo implements storage.DetectionRepository using PostgreSQL.
type DetectionRepo struct {
	db *DB
}

var _ storage.DetectionRepository = (*DetectionRepo)(nil)

// NewDetectionRepo creates a new PostgreSQL detection repository.
func NewDetectionRepo(db *DB) *DetectionRepo {
	return &DetectionRepo{db: db}
}

// Save upserts a detection.
func (r *DetectionRepo) Save(ctx context.Context, d *domain.Detection) error {
	row := *d
	row.Address = strings.ToLower(row.Address)
	if len(row.Payload) == 0 {
		row.Payload = []byte("{}")
	}
	if _, err := r.db.NamedExecContext(ctx, upsertDetection, &row); err != nil {
		return fmt.Errorf("failed to save detection: %w", err)
	}
	return nil
}

// GetByID retrieves a detection by ID.
func (r *DetectionRepo) GetByID(ctx context.Context, id string) (*domain.Detection, error) {
	var d domain.Detection
	err := r.db.GetContext(ctx, &d, selectDetection+` WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrDetectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}
	return &d, nil
}

// ListByAddress returns the latest detections for an address.
func (r *DetectionRepo) ListByAddress(
	ctx context.Context,
	address string,
	limit int,
) ([]*domain.Detection, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}
	var rows []*domain.Detection
	err := r.db.SelectContext(ctx, &rows,
		selectDetection+` WHERE address = LOWER($1) ORDER BY created_at DESC LIMIT $2`,
		address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	return rows, nil
}

// DeleteOlderThan removes detections created before the cutoff.
func (r *DetectionRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM detections WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune detections: %w", err)
	}
	return res.RowsAffected()
}
