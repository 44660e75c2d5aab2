// Package audit is the append-only trail of every accepted mutation. It is
// written only as a trusted internal call from the entity stores, inside the
// same unit of work as the mutation it describes; the HTTP surface exposes
// reads alone.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Record is one immutable log entry. Records are never updated or deleted.
type Record struct {
	ID        string    `db:"id" json:"id"`
	Action    string    `db:"action" json:"action"`
	Actor     string    `db:"actor" json:"actor"`
	TargetID  string    `db:"target_id" json:"target_id"`
	Detail    string    `db:"detail" json:"detail"`
	Timestamp time.Time `db:"recorded_at" json:"timestamp"`
}

// DeriveID builds the deterministic record id from the digest of
// timestamp, actor, action and target. Identical actions in the same
// instant collide on purpose; that limitation is part of the contract.
func DeriveID(ts time.Time, actor, action, targetID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s", ts.Unix(), actor, action, targetID)))
	return hex.EncodeToString(sum[:])
}
