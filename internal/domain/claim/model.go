// Package claim processes insurance claims through a fixed review
// pipeline: submitted, verified, approved, paid, with rejection possible
// until approval. Amounts are integer cents.
package claim

import "time"

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusVerified  Status = "verified"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPaid      Status = "paid"
)

type Claim struct {
	ID              string    `db:"id" json:"id"`
	PolicyNumber    string    `db:"policy_number" json:"policy_number"`
	PatientID       string    `db:"patient_id" json:"patient_id"`
	ProviderID      string    `db:"provider_id" json:"provider_id"`
	ClaimedAmount   int64     `db:"claimed_amount" json:"claimed_amount"`
	ApprovedAmount  int64     `db:"approved_amount" json:"approved_amount"`
	Status          Status    `db:"status" json:"status"`
	DocumentRefs    []string  `db:"document_refs" json:"document_refs"`
	SubmittedBy     string    `db:"submitted_by" json:"submitted_by"`
	VerifiedBy      string    `db:"verified_by" json:"verified_by,omitempty"`
	ApprovedBy      string    `db:"approved_by" json:"approved_by,omitempty"`
	RejectionReason string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
