package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/scamradar/internal/core/domain"
)

var (
	// ErrDetectionNotFound is returned when no detection has the given ID.
	ErrDetectionNotFound = errors.New("detection not found")
)

// DetectionRepository stores the audit log of detection results.
type DetectionRepository interface {
	// Save stores a detection. Saving an existing ID replaces it.
	Save(ctx context.Context, d *domain.Detection) error

	// GetByID retrieves a detection by ID
	GetByID(ctx context.Context, id string) (*domain.Detection, error)

	// ListByAddress returns the latest detections for an address, newest first
	ListByAddress(ctx context.Context, address string, limit int) ([]*domain.Detection, error)

	// DeleteOlderThan removes detections created before the cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// DefaultListLimit bounds ListByAddress when the caller passes a non-positive limit.
const DefaultListLimit = 50
