package audit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type auditRepoPG struct{ pool *pgxpool.Pool }

func NewAuditRepoPG(pool *pgxpool.Pool) AuditRepository { return &auditRepoPG{pool: pool} }

// conn prefers the transaction of the enclosing mutation so the trail entry
// commits or rolls back with the entity write it describes.
func (r *auditRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *auditRepoPG) Insert(ctx context.Context, rec *Record) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO audit_record (id, action, actor, target_id, detail, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Action, rec.Actor, rec.TargetID, rec.Detail, rec.Timestamp)
	return err
}

func (r *auditRepoPG) GetByID(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, action, actor, target_id, detail, recorded_at
		FROM audit_record WHERE id = $1`, id).
		Scan(&rec.ID, &rec.Action, &rec.Actor, &rec.TargetID, &rec.Detail, &rec.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *auditRepoPG) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, action, actor, target_id, detail, recorded_at
		FROM audit_record ORDER BY recorded_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *auditRepoPG) ListByTarget(ctx context.Context, targetID string, limit int) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, action, actor, target_id, detail, recorded_at
		FROM audit_record WHERE target_id = $1
		ORDER BY recorded_at DESC, id LIMIT $2`, targetID, limit)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *auditRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM audit_record`).Scan(&n)
	return n, err
}

func scanRecords(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.Actor, &rec.TargetID, &rec.Detail, &rec.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
