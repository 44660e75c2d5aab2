// Package patient holds the demographic store. Patient payloads are opaque
// JSON blobs owned by one identity; deactivation is a soft flag and nothing
// is ever physically deleted.
package patient

import (
	"encoding/json"
	"time"
)

type Patient struct {
	ID            string          `db:"id" json:"id"`
	OwnerIdentity string          `db:"owner_identity" json:"owner_identity"`
	Data          json.RawMessage `db:"data" json:"data"`
	Exists        bool            `db:"active" json:"exists"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
