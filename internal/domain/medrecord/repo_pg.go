package medrecord

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

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordColumns = `id, patient_id, doctor_id, record_type, content_hash, metadata, uploaded_by, active, created_at, updated_at`

func (r *recordRepoPG) Insert(ctx context.Context, rec *Record) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medical_record (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.RecordType, rec.ContentHash,
		rec.Metadata, rec.UploadedBy, rec.Exists, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *recordRepoPG) UpdateMetadata(ctx context.Context, rec *Record) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_record SET metadata = $2, updated_at = $3 WHERE id = $1`,
		rec.ID, rec.Metadata, rec.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *recordRepoPG) SetExists(ctx context.Context, id string, exists bool, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medical_record SET active = $2, updated_at = $3 WHERE id = $1`,
		id, exists, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *recordRepoPG) GetByID(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordColumns+` FROM medical_record WHERE id = $1`, id).
		Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.RecordType, &rec.ContentHash,
			&rec.Metadata, &rec.UploadedBy, &rec.Exists, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepoPG) Has(ctx context.Context, id string) (bool, error) {
	var has bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM medical_record WHERE id = $1)`, id).Scan(&has)
	return has, err
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recordColumns+` FROM medical_record
		WHERE patient_id = $1 AND active
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.RecordType, &rec.ContentHash,
			&rec.Metadata, &rec.UploadedBy, &rec.Exists, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
