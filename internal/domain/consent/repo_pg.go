package consent

import (
	"context"
	"errors"
	"time"

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

type consentRepoPG struct{ pool *pgxpool.Pool }

func NewConsentRepoPG(pool *pgxpool.Pool) ConsentRepository { return &consentRepoPG{pool: pool} }

func (r *consentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const consentColumns = `id, patient_id, grantee, scope, purpose, valid_until, status, created_at, revoked_at`

func (r *consentRepoPG) Insert(ctx context.Context, c *Consent) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consent (`+consentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.PatientID, c.Grantee, c.Scope, c.Purpose, c.ValidUntil, string(c.Status), c.CreatedAt, c.RevokedAt)
	return err
}

func (r *consentRepoPG) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consent SET status = $2, revoked_at = $3 WHERE id = $1`,
		id, string(StatusRevoked), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *consentRepoPG) GetByID(ctx context.Context, id string) (*Consent, error) {
	var c Consent
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+consentColumns+` FROM consent WHERE id = $1`, id).
		Scan(&c.ID, &c.PatientID, &c.Grantee, &c.Scope, &c.Purpose, &c.ValidUntil, &c.Status, &c.CreatedAt, &c.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *consentRepoPG) Has(ctx context.Context, id string) (bool, error) {
	var has bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM consent WHERE id = $1)`, id).Scan(&has)
	return has, err
}

func (r *consentRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*Consent, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+consentColumns+` FROM consent
		WHERE patient_id = $1 ORDER BY created_at DESC, id`, patientID)
	if err != nil {
		return nil, err
	}
	return scanConsents(rows)
}

func (r *consentRepoPG) ListByGrant(ctx context.Context, patientID, grantee, scope string) ([]*Consent, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+consentColumns+` FROM consent
		WHERE patient_id = $1 AND grantee = $2 AND scope = $3`,
		patientID, grantee, scope)
	if err != nil {
		return nil, err
	}
	return scanConsents(rows)
}

func scanConsents(rows pgx.Rows) ([]*Consent, error) {
	defer rows.Close()
	var out []*Consent
	for rows.Next() {
		var c Consent
		if err := rows.Scan(&c.ID, &c.PatientID, &c.Grantee, &c.Scope, &c.Purpose, &c.ValidUntil, &c.Status, &c.CreatedAt, &c.RevokedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
