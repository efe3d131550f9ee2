package remote

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Host exposes the file, service, and package operations the reconciler
// needs on one managed machine. All operations are idempotent at this
// level; change detection happens on the remote side so the caller gets a
// truthful changed flag.
type Host struct {
	Name   string
	runner Runner
}

func NewHost(name string, r Runner) *Host {
	return &Host{Name: name, runner: r}
}

// ReadFile returns the file's content and whether it exists at all.
func (h *Host) ReadFile(path string) (string, bool, error) {
	script := fmt.Sprintf(`set -eu
if [ -f %s ]; then
  echo present
  cat %s
else
  echo absent
fi
`, shellQuote(path), shellQuote(path))
	out, err := h.runner.Run(script)
	if err != nil {
		return "", false, fmt.Errorf("host %s: read %s: %w", h.Name, path, err)
	}
	marker, rest, _ := strings.Cut(out, "\n")
	switch strings.TrimSpace(marker) {
	case "present":
		return rest, true, nil
	case "absent":
		return "", false, nil
	}
	return "", false, fmt.Errorf("host %s: read %s: unexpected output %q", h.Name, path, strings.TrimSpace(marker))
}

// Put replaces the file with the given content via write-then-rename in
// the target directory, so the file is never observed half-written.
// Returns whether the resulting bytes differ from what was there before.
// Content travels base64-encoded, so arbitrary bytes survive the shell.
func (h *Host) Put(path, content, mode string) (bool, error) {
	q := shellQuote(path)
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	script := fmt.Sprintf(`set -eu
dir=$(dirname %s)
mkdir -p "$dir"
tmp=$(mktemp "$dir/.wgnest.XXXXXX")
printf '%%s' %s | base64 -d > "$tmp"
chmod %s "$tmp"
if [ -f %s ] && cmp -s "$tmp" %s; then
  rm -f "$tmp"
  echo unchanged
else
  mv "$tmp" %s
  echo changed
fi
`, q, shellQuote(encoded), mode, q, q, q)
	out, err := h.runner.Run(script)
	if err != nil {
		return false, fmt.Errorf("host %s: put %s: %w", h.Name, path, err)
	}
	switch strings.TrimSpace(out) {
	case "changed":
		return true, nil
	case "unchanged":
		return false, nil
	}
	return false, fmt.Errorf("host %s: put %s: unexpected output %q", h.Name, path, strings.TrimSpace(out))
}

// EnsureService drives the unit to the declared state. Restart is only
// issued when requested; enable and start are safe to repeat.
func (h *Host) EnsureService(name string, enabled, running, restart bool) error {
	var b strings.Builder
	b.WriteString("set -eu\n")
	if enabled {
		fmt.Fprintf(&b, "systemctl enable %s\n", shellQuote(name))
	}
	if restart {
		fmt.Fprintf(&b, "systemctl restart %s\n", shellQuote(name))
	} else if running {
		fmt.Fprintf(&b, "systemctl start %s\n", shellQuote(name))
	}
	if _, err := h.runner.Run(b.String()); err != nil {
		return fmt.Errorf("host %s: service %s: %w", h.Name, name, err)
	}
	return nil
}

// EnsurePackages installs the packages if missing. apt is idempotent, so
// no separate presence probe is needed.
func (h *Host) EnsurePackages(packages []string) error {
	quoted := make([]string, len(packages))
	for i, p := range packages {
		quoted[i] = shellQuote(p)
	}
	script := fmt.Sprintf(`set -eu
export DEBIAN_FRONTEND=noninteractive
apt-get -y -q install %s
`, strings.Join(quoted, " "))
	if _, err := h.runner.Run(script); err != nil {
		return fmt.Errorf("host %s: install %v: %w", h.Name, packages, err)
	}
	return nil
}

func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}
