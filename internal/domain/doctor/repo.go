package doctor

import "context"

type DoctorRepository interface {
	Insert(ctx context.Context, d *Doctor) error
	UpdateStatus(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id string) (*Doctor, error)
	GetByIdentity(ctx context.Context, identity string) (*Doctor, error)
	List(ctx context.Context, limit, offset int) ([]*Doctor, error)
	Has(ctx context.Context, id string) (bool, error)
	// IdentityBound reports whether the identity holds a live (pending or
	// verified) credential. Terminal credentials release the binding.
	IdentityBound(ctx context.Context, identity string) (bool, error)
	AddReview(ctx context.Context, rev *Review) error
	ListReviews(ctx context.Context, doctorID string) ([]*Review, error)
}
