package auth

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// decoyPassword seeds the hash compared against when an account has no
// password hash.
const decoyPassword = "omnilearn-decoy-password"

// PasswordHasher hashes and verifies passwords with bcrypt.
type PasswordHasher struct {
	cost    int
	compare func(hash, plain []byte) error

	decoyOnce sync.Once
	decoy     []byte
}

// NewPasswordHasher creates a hasher. Costs outside bcrypt's range fall back
// to bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost, compare: bcrypt.CompareHashAndPassword}
}

// Hash returns a salted bcrypt hash of plain.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hash. An empty hash never matches but
// still costs one comparison at the hasher's cost, so a missing account or
// password takes as long to reject as a wrong one.
func (h *PasswordHasher) Verify(hash, plain string) bool {
	if hash == "" {
		_ = h.compare(h.decoyHash(), []byte(plain))
		return false
	}
	return h.compare([]byte(hash), []byte(plain)) == nil
}

func (h *PasswordHasher) decoyHash() []byte {
	h.decoyOnce.Do(func() {
		// Only fails for inputs over 72 bytes or a cost out of range.
		h.decoy, _ = bcrypt.GenerateFromPassword([]byte(decoyPassword), h.cost)
	})
	return h.decoy
}
