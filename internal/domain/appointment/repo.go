package appointment

import "context"

type AppointmentRepository interface {
	Insert(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	Has(ctx context.Context, id string) (bool, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*Appointment, error)
}
