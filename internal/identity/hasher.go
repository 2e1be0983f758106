// Package identity derives stable, non-reversible identity tokens from raw
// network addresses. The token enforces one-submission-per-identity without
// the server ever storing a raw address.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/datecast/backend/internal/domain"
)

// Hasher computes HMAC-SHA256 over a raw identity with a process-wide secret
// salt. Deterministic across restarts (required for duplicate detection) and
// one-way (the raw address is not recoverable from the token).
type Hasher struct {
	salt []byte
}

// NewHasher constructs a Hasher with the given secret salt.
// The salt must stay constant across deployments or previously admitted
// identities would be able to submit again.
func NewHasher(salt string) *Hasher {
	return &Hasher{salt: []byte(salt)}
}

// Hash returns the hex-encoded identity token for rawIdentity.
// The HTTP layer rejects requests with no resolvable address before calling
// the core; an empty input here is still refused defensively.
func (h *Hasher) Hash(rawIdentity string) (string, error) {
	if strings.TrimSpace(rawIdentity) == "" {
		return "", fmt.Errorf("identity.Hasher.Hash: %w", domain.Validationf("raw identity is empty"))
	}

	mac := hmac.New(sha256.New, h.salt)
	mac.Write([]byte(rawIdentity))
	return hex.EncodeToString(mac.Sum(nil)), nil
}
