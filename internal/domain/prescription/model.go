// Package prescription issues and dispenses prescriptions. Each one carries
// a derived verification token a pharmacy can present before dispensing;
// expiry is enforced lazily at fill and verify time.
package prescription

import "time"

type Status string

const (
	StatusActive    Status = "active"
	StatusFilled    Status = "filled"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

type Prescription struct {
	ID                string     `db:"id" json:"id"`
	PatientID         string     `db:"patient_id" json:"patient_id"`
	DoctorID          string     `db:"doctor_id" json:"doctor_id"`
	Medication        string     `db:"medication" json:"medication"`
	Dosage            string     `db:"dosage" json:"dosage"`
	Instructions      string     `db:"instructions" json:"instructions"`
	IssuedAt          time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expires_at"`
	Status            Status     `db:"status" json:"status"`
	PharmacistID      string     `db:"pharmacist_id" json:"pharmacist_id,omitempty"`
	FilledAt          *time.Time `db:"filled_at" json:"filled_at,omitempty"`
	Dispensed         bool       `db:"dispensed" json:"dispensed"`
	VerificationToken string     `db:"verification_token" json:"verification_token"`
}
