package prescription

import "context"

type PrescriptionRepository interface {
	Insert(ctx context.Context, p *Prescription) error
	UpdateStatus(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id string) (*Prescription, error)
	Has(ctx context.Context, id string) (bool, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Prescription, error)
	ListByDoctor(ctx context.Context, doctorID string, limit, offset int) ([]*Prescription, error)
}
