package patient

import (
	"context"
	"time"
)

type PatientRepository interface {
	Insert(ctx context.Context, p *Patient) error
	UpdateData(ctx context.Context, p *Patient) error
	SetExists(ctx context.Context, id string, exists bool, at time.Time) error
	// GetByID returns deactivated patients too; direct lookup survives
	// deactivation.
	GetByID(ctx context.Context, id string) (*Patient, error)
	// List returns active patients only.
	List(ctx context.Context, limit, offset int) ([]*Patient, error)
	// Exists reports the soft-existence flag; false for unknown ids.
	Exists(ctx context.Context, id string) (bool, error)
	// Has reports whether the id was ever created, active or not.
	Has(ctx context.Context, id string) (bool, error)
}
