package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

const resetTokenSize = 32

// NewResetToken returns 32 random bytes, hex encoded.
func NewResetToken() (string, error) {
	var raw [resetTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// HashResetToken returns the hex SHA-256 digest used as the store key.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidResetToken reports whether token has the shape produced by
// NewResetToken. It does not consult the store.
func ValidResetToken(token string) error {
	if len(token) != resetTokenSize*2 {
		return errors.New("invalid reset token length")
	}
	if _, err := hex.DecodeString(token); err != nil {
		return errors.New("invalid reset token encoding")
	}
	return nil
}
