package consent

import (
	"context"
	"time"
)

type ConsentRepository interface {
	Insert(ctx context.Context, c *Consent) error
	MarkRevoked(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*Consent, error)
	Has(ctx context.Context, id string) (bool, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Consent, error)
	// ListByGrant returns every consent row matching (patient, grantee,
	// scope) regardless of status or expiry; the service decides liveness.
	ListByGrant(ctx context.Context, patientID, grantee, scope string) ([]*Consent, error)
}
