package appointment

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

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptColumns = `id, patient_id, doctor_id, scheduled_at, reason, notes, status, created_at, updated_at`

func (r *appointmentRepoPG) Insert(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment (`+apptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledAt, a.Reason, a.Notes, string(a.Status), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status = $2, notes = $3, updated_at = $4 WHERE id = $1`,
		a.ID, string(a.Status), a.Notes, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id string) (*Appointment, error) {
	var a Appointment
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptColumns+` FROM appointment WHERE id = $1`, id).
		Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.Reason, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Has(ctx context.Context, id string) (bool, error) {
	var has bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointment WHERE id = $1)`, id).Scan(&has)
	return has, err
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptColumns+` FROM appointment
		WHERE patient_id = $1 ORDER BY scheduled_at DESC, id
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptColumns+` FROM appointment
		WHERE doctor_id = $1 ORDER BY scheduled_at DESC, id
		LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func scanAppointments(rows pgx.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var out []*Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.Reason, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
