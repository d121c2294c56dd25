// Package credential hashes and verifies account secrets with bcrypt.
package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrCorruptCredential reports a stored hash that cannot be interpreted.
var ErrCorruptCredential = errors.New("corrupt credential")

// ErrSecretTooLong is returned for secrets bcrypt cannot represent.
var ErrSecretTooLong = errors.New("secret exceeds 72 bytes")

const maxSecretLen = 72

// BcryptCodec is a salted one-way codec. The zero value uses bcrypt.DefaultCost.
type BcryptCodec struct {
	cost int
}

// NewBcryptCodec creates a codec with the given work factor. Out of range
// values fall back to bcrypt.DefaultCost.
func NewBcryptCodec(cost int) *BcryptCodec {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptCodec{cost: cost}
}

// Hash returns a freshly salted hash of secret.
func (c *BcryptCodec) Hash(secret []byte) (string, error) {
	if len(secret) > maxSecretLen {
		return "", ErrSecretTooLong
	}
	cost := c.cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword(secret, cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether secret produced hash. A mismatch is (false, nil);
// only an unreadable hash yields an error, wrapping ErrCorruptCredential.
// The comparison itself is constant time (bcrypt uses crypto/subtle).
func (c *BcryptCodec) Verify(secret []byte, hash string) (bool, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptCredential, err)
	}
	if len(secret) > maxSecretLen {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), secret)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrCorruptCredential, err)
	}
}
