package prescription

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

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const rxColumns = `id, patient_id, doctor_id, medication, dosage, instructions, issued_at, expires_at, status, pharmacist_id, filled_at, dispensed, verification_token`

func (r *prescriptionRepoPG) Insert(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescription (`+rxColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.PatientID, p.DoctorID, p.Medication, p.Dosage, p.Instructions,
		p.IssuedAt, p.ExpiresAt, string(p.Status), p.PharmacistID, p.FilledAt, p.Dispensed, p.VerificationToken)
	return err
}

func (r *prescriptionRepoPG) UpdateStatus(ctx context.Context, p *Prescription) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription
		SET status = $2, pharmacist_id = $3, filled_at = $4, dispensed = $5
		WHERE id = $1`,
		p.ID, string(p.Status), p.PharmacistID, p.FilledAt, p.Dispensed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.Medication, &p.Dosage, &p.Instructions,
		&p.IssuedAt, &p.ExpiresAt, &p.Status, &p.PharmacistID, &p.FilledAt, &p.Dispensed, &p.VerificationToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id string) (*Prescription, error) {
	return scanPrescription(r.conn(ctx).QueryRow(ctx,
		`SELECT `+rxColumns+` FROM prescription WHERE id = $1`, id))
}

func (r *prescriptionRepoPG) Has(ctx context.Context, id string) (bool, error) {
	var has bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM prescription WHERE id = $1)`, id).Scan(&has)
	return has, err
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+rxColumns+` FROM prescription
		WHERE patient_id = $1 ORDER BY issued_at DESC, id
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanPrescriptions(rows)
}

func (r *prescriptionRepoPG) ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+rxColumns+` FROM prescription
		WHERE doctor_id = $1 ORDER BY issued_at DESC, id
		LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanPrescriptions(rows)
}

func scanPrescriptions(rows pgx.Rows) ([]*Prescription, error) {
	defer rows.Close()
	var out []*Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.Medication, &p.Dosage, &p.Instructions,
			&p.IssuedAt, &p.ExpiresAt, &p.Status, &p.PharmacistID, &p.FilledAt, &p.Dispensed, &p.VerificationToken); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
