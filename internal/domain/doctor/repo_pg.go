package doctor

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

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository { return &doctorRepoPG{pool: pool} }

func (r *doctorRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *doctorRepoPG) Insert(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_credential (id, identity, name, specialty, license_number, status, created_at, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.Identity, d.Name, d.Specialty, d.LicenseNumber, string(d.Status), d.CreatedAt, d.VerifiedAt)
	return err
}

func (r *doctorRepoPG) UpdateStatus(ctx context.Context, d *Doctor) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_credential SET status = $2, verified_at = $3 WHERE id = $1`,
		d.ID, string(d.Status), d.VerifiedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

const doctorColumns = `id, identity, name, specialty, license_number, status, created_at, verified_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Identity, &d.Name, &d.Specialty, &d.LicenseNumber, &d.Status, &d.CreatedAt, &d.VerifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorColumns+` FROM doctor_credential WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByIdentity(ctx context.Context, identity string) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `
		SELECT `+doctorColumns+` FROM doctor_credential
		WHERE identity = $1 AND status IN ('pending', 'verified')
		ORDER BY created_at DESC LIMIT 1`, identity))
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+doctorColumns+` FROM doctor_credential
		ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Identity, &d.Name, &d.Specialty, &d.LicenseNumber, &d.Status, &d.CreatedAt, &d.VerifiedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *doctorRepoPG) Has(ctx context.Context, id string) (bool, error) {
	var has bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM doctor_credential WHERE id = $1)`, id).Scan(&has)
	return has, err
}

func (r *doctorRepoPG) IdentityBound(ctx context.Context, identity string) (bool, error) {
	var bound bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doctor_credential
			WHERE identity = $1 AND status IN ('pending', 'verified'))`, identity).Scan(&bound)
	return bound, err
}

func (r *doctorRepoPG) AddReview(ctx context.Context, rev *Review) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_review (doctor_id, reviewer, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rev.DoctorID, rev.Reviewer, rev.Rating, rev.Comment, rev.CreatedAt)
	return err
}

func (r *doctorRepoPG) ListReviews(ctx context.Context, doctorID string) ([]*Review, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT doctor_id, reviewer, rating, comment, created_at
		FROM doctor_review WHERE doctor_id = $1 ORDER BY created_at`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		var rev Review
		if err := rows.Scan(&rev.DoctorID, &rev.Reviewer, &rev.Rating, &rev.Comment, &rev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rev)
	}
	return out, rows.Err()
}
