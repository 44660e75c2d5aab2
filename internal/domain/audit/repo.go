package audit

import "context"

type AuditRepository interface {
	Insert(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	ListRecent(ctx context.Context, limit int) ([]*Record, error)
	ListByTarget(ctx context.Context, targetID string, limit int) ([]*Record, error)
	Count(ctx context.Context) (int, error)
}
