// Package secrets persists node public keys for later peer onboarding.
// The store is best-effort from the reconciler's point of view: a failed
// publication never rolls back a config file that was already written.
package secrets

import (
	"errors"
	"fmt"
)

// ErrToolUnavailable means the secret-store capability cannot be invoked
// (missing local installation, unreachable backend).
var ErrToolUnavailable = errors.New("secret store unavailable")

// Store reads and writes named secret entries.
type Store interface {
	// Read returns the stored value, or "" when the entry does not exist.
	Read(entry string) (string, error)
	// Write stores the value under the entry, overwriting any prior value.
	Write(entry, value string) error
}

// Publish writes value under entry only when it differs from what is
// already stored, so repeated reconciliation leaves no churn or spurious
// audit trail in the backing store. Returns whether a write happened.
func Publish(s Store, entry, value string) (bool, error) {
	current, err := s.Read(entry)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", entry, err)
	}
	if current == value {
		return false, nil
	}
	if err := s.Write(entry, value); err != nil {
		return false, fmt.Errorf("write %s: %w", entry, err)
	}
	return true, nil
}
