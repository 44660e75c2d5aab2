package audit

import (
	"context"
	"time"

	"github.com/medledger/medledger/internal/ledger"
)

// Recorder is what the entity stores depend on. Keeping it one method wide
// means their mocks stay trivial.
type Recorder interface {
	Record(ctx context.Context, actor, action, targetID, detail string) (string, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type Service struct {
	repo AuditRepository
	now  func() time.Time
}

func NewService(repo AuditRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record appends one trail entry and returns its derived id.
func (s *Service) Record(ctx context.Context, actor, action, targetID, detail string) (string, error) {
	if actor == "" || action == "" || targetID == "" {
		return "", ledger.ErrInvalidInput
	}
	ts := s.now().UTC()
	rec := &Record{
		ID:        DeriveID(ts, actor, action, targetID),
		Action:    action,
		Actor:     actor,
		TargetID:  targetID,
		Detail:    detail,
		Timestamp: ts,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ledger.ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	return s.repo.ListRecent(ctx, clampLimit(limit))
}

func (s *Service) ListByTarget(ctx context.Context, targetID string, limit int) ([]*Record, error) {
	if targetID == "" {
		return nil, ledger.ErrInvalidInput
	}
	return s.repo.ListByTarget(ctx, targetID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
