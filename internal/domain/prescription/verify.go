package prescription

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DeriveToken computes the verification token for a prescription: the hex
// SHA-256 digest of the prescription id and its issue second. The digest is
// unkeyed, so anyone who knows both inputs can recompute it; the token
// proves possession of the prescription reference, not authorization.
func DeriveToken(prescriptionID string, issuedAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", prescriptionID, issuedAt.Unix())))
	return hex.EncodeToString(sum[:])
}

func tokenMatches(want, got string) bool {
	return hmac.Equal([]byte(want), []byte(got))
}
