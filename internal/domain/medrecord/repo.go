package medrecord

import (
	"context"
	"time"
)

type RecordRepository interface {
	Insert(ctx context.Context, rec *Record) error
	UpdateMetadata(ctx context.Context, rec *Record) error
	SetExists(ctx context.Context, id string, exists bool, at time.Time) error
	// GetByID returns soft-deleted records too.
	GetByID(ctx context.Context, id string) (*Record, error)
	Has(ctx context.Context, id string) (bool, error)
	// ListByPatient returns existing records only.
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Record, error)
}
