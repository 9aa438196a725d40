package auth

import "golang.org/x/crypto/bcrypt"

// PasswordHasher hashes and verifies secrets with bcrypt.
type PasswordHasher struct {
	cost  int
	dummy []byte
}

// NewPasswordHasher returns a hasher using cost, or bcrypt's default when
// cost is out of range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("quickdesk-dummy-secret"), cost)
	return &PasswordHasher{cost: cost, dummy: dummy}
}

// Hash hashes a plaintext secret.
func (h *PasswordHasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Matches reports whether secret matches hashed.
func (h *PasswordHasher) Matches(hashed, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret)) == nil
}

// Burn spends the same work as a failed comparison, so unknown handles take
// as long to reject as wrong secrets.
func (h *PasswordHasher) Burn(secret string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(secret))
}
