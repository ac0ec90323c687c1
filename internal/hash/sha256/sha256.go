// Package sha256 computes and verifies hex SHA-256 digests for checkpoint
// payloads.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrMismatch reports a payload whose digest differs from the recorded one.
var ErrMismatch = errors.New("checksum mismatch")

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Verify checks data against a previously recorded digest.
func (h *Hasher) Verify(data []byte, want string) error {
	got, err := h.Hash(data)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: got %s want %s", ErrMismatch, got, want)
	}
	return nil
}
