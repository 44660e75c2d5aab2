// Package doctor holds practitioner credentials and their review trail. A
// credential moves pending -> verified and ends in rejected or revoked; a
// practitioner whose credential ended badly starts over under a new id.
package doctor

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
)

type Doctor struct {
	ID            string     `db:"id" json:"id"`
	Identity      string     `db:"identity" json:"identity"`
	Name          string     `db:"name" json:"name"`
	Specialty     string     `db:"specialty" json:"specialty"`
	LicenseNumber string     `db:"license_number" json:"license_number"`
	Status        Status     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	VerifiedAt    *time.Time `db:"verified_at" json:"verified_at,omitempty"`
}

// Review is one append-only patient rating. Reviews are never edited or
// removed.
type Review struct {
	DoctorID  string    `db:"doctor_id" json:"doctor_id"`
	Reviewer  string    `db:"reviewer" json:"reviewer"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
