package claim

import "context"

type ClaimRepository interface {
	Insert(ctx context.Context, c *Claim) error
	Update(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id string) (*Claim, error)
	Has(ctx context.Context, id string) (bool, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Claim, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Claim, error)
}
