// Package consent is the ledger of patient-granted read permissions. A
// consent names a grantee and a scope and carries its own expiry; whether it
// still grants anything is decided at read time, never by a background
// sweep.
package consent

import "time"

type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Scopes consumed by the read paths of the other stores.
const (
	ScopeMedicalRecords = "medical-records"
	ScopePrescriptions  = "prescriptions"
)

type Consent struct {
	ID         string     `db:"id" json:"id"`
	PatientID  string     `db:"patient_id" json:"patient_id"`
	Grantee    string     `db:"grantee" json:"grantee"`
	Scope      string     `db:"scope" json:"scope"`
	Purpose    string     `db:"purpose" json:"purpose"`
	ValidUntil time.Time  `db:"valid_until" json:"valid_until"`
	Status     Status     `db:"status" json:"status"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}
