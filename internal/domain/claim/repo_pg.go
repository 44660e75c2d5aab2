package claim

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

type claimRepoPG struct{ pool *pgxpool.Pool }

func NewClaimRepoPG(pool *pgxpool.Pool) ClaimRepository { return &claimRepoPG{pool: pool} }

func (r *claimRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const claimColumns = `id, policy_number, patient_id, provider_id, claimed_amount, approved_amount, status, document_refs, submitted_by, verified_by, approved_by, rejection_reason, created_at, updated_at`

func (r *claimRepoPG) Insert(ctx context.Context, c *Claim) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO insurance_claim (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.PolicyNumber, c.PatientID, c.ProviderID, c.ClaimedAmount, c.ApprovedAmount,
		string(c.Status), c.DocumentRefs, c.SubmittedBy, c.VerifiedBy, c.ApprovedBy,
		c.RejectionReason, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *claimRepoPG) Update(ctx context.Context, c *Claim) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE insurance_claim
		SET status = $2, approved_amount = $3, verified_by = $4, approved_by = $5,
		    rejection_reason = $6, updated_at = $7
		WHERE id = $1`,
		c.ID, string(c.Status), c.ApprovedAmount, c.VerifiedBy, c.ApprovedBy,
		c.RejectionReason, c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.PolicyNumber, &c.PatientID, &c.ProviderID, &c.ClaimedAmount, &c.ApprovedAmount,
		&c.Status, &c.DocumentRefs, &c.SubmittedBy, &c.VerifiedBy, &c.ApprovedBy,
		&c.RejectionReason, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *claimRepoPG) GetByID(ctx context.Context, id string) (*Claim, error) {
	return scanClaim(r.conn(ctx).QueryRow(ctx,
		`SELECT `+claimColumns+` FROM insurance_claim WHERE id = $1`, id))
}

func (r *claimRepoPG) Has(ctx context.Context, id string) (bool, error) {
	var has bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM insurance_claim WHERE id = $1)`, id).Scan(&has)
	return has, err
}

func (r *claimRepoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Claim, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+claimColumns+` FROM insurance_claim
		WHERE patient_id = $1 ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanClaims(rows)
}

func (r *claimRepoPG) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Claim, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+claimColumns+` FROM insurance_claim
		WHERE status = $1 ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	return scanClaims(rows)
}

func scanClaims(rows pgx.Rows) ([]*Claim, error) {
	defer rows.Close()
	var out []*Claim
	for rows.Next() {
		var c Claim
		if err := rows.Scan(&c.ID, &c.PolicyNumber, &c.PatientID, &c.ProviderID, &c.ClaimedAmount, &c.ApprovedAmount,
			&c.Status, &c.DocumentRefs, &c.SubmittedBy, &c.VerifiedBy, &c.ApprovedBy,
			&c.RejectionReason, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
