// Package medrecord stores references to clinical documents. The content
// itself lives elsewhere; the store keeps an opaque content hash, metadata,
// and a soft-existence flag. A deleted record leaves the patient's listing
// but stays reachable by direct id.
package medrecord

import (
	"encoding/json"
	"time"
)

// SelfUploaded marks records a patient uploaded without a treating doctor.
const SelfUploaded = "self-uploaded"

type Record struct {
	ID          string          `db:"id" json:"id"`
	PatientID   string          `db:"patient_id" json:"patient_id"`
	DoctorID    string          `db:"doctor_id" json:"doctor_id"`
	RecordType  string          `db:"record_type" json:"record_type"`
	ContentHash string          `db:"content_hash" json:"content_hash"`
	Metadata    json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	UploadedBy  string          `db:"uploaded_by" json:"uploaded_by"`
	Exists      bool            `db:"active" json:"exists"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}
