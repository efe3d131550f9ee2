package secrets

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Pass stores entries in the standard unix password manager. Reads shell
// out to `pass show`, writes to `pass insert -e`.
type Pass struct{}

func (Pass) Read(entry string) (string, error) {
	out, err := exec.Command("pass", "show", entry).Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("pass show: %w (install pass and pull the secrets repo)", ErrToolUnavailable)
		}
		// pass exits non-zero for a missing entry; treat that as absent.
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

func (Pass) Write(entry, value string) error {
	cmd := exec.Command("pass", "insert", "-e", entry)
	cmd.Stdin = bytes.NewReader([]byte(value + "\n"))
	if out, err := cmd.CombinedOutput(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("pass insert: %w (install pass and pull the secrets repo)", ErrToolUnavailable)
		}
		return fmt.Errorf("pass insert failed: %v output=%s", err, string(out))
	}
	return nil
}
