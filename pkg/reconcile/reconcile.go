// Package reconcile drives a node's WireGuard configuration to the
// operator-declared state. Every mutation is individually idempotent; the
// pass aggregates their change flags into the single restart decision.
package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"wgnest/pkg/keys"
	"wgnest/pkg/model"
	"wgnest/pkg/secrets"
)

const (
	// ConfigPath is the single well-known interface config location.
	ConfigPath = "/etc/wireguard/wg0.conf"
	// ServiceName is the systemd unit managing the interface.
	ServiceName = "wg-quick@wg0"

	configMode = "600" // private key inside, owner-only
)

// wireguardPackages are installed before any provisioning step.
var wireguardPackages = []string{"wireguard"}

// ErrMalformedInput marks a declared spec with missing required fields,
// surfaced before any remote mutation is attempted.
var ErrMalformedInput = errors.New("malformed input")

// HostOps is the contract the reconciler places on its target host. File
// replacement must be atomic (write-then-rename) and Put must report
// whether the resulting bytes differ from the prior ones.
type HostOps interface {
	ReadFile(path string) (content string, found bool, err error)
	Put(path, content, mode string) (changed bool, err error)
	EnsureService(name string, enabled, running, restart bool) error
	EnsurePackages(packages []string) error
}

// Result describes what one reconciliation pass did.
type Result struct {
	Node         string
	Role         model.Role
	KeyGenerated bool     // a fresh keypair was created this pass
	Wrote        bool     // on-disk bytes changed
	PeersAdded   []string // names of child blocks appended (mother only)
	Restarted    bool     // restart was requested from the service controller
	SecretStored bool     // public key was published to the secret store
	// SecretWarning is set when publication failed after the config was
	// already written; the node is provisioned but the operator must
	// register the key out of band.
	SecretWarning string
}

// Action summarizes the pass for the journal.
func (r Result) Action() string {
	switch {
	case r.KeyGenerated:
		return "provisioned"
	case len(r.PeersAdded) > 0:
		return "peers-added"
	default:
		return "noop"
	}
}

// Detail is a short human-readable summary of the pass.
func (r Result) Detail() string {
	var parts []string
	if r.KeyGenerated {
		parts = append(parts, "generated keypair, wrote "+ConfigPath)
	}
	if len(r.PeersAdded) > 0 {
		parts = append(parts, "appended peers: "+strings.Join(r.PeersAdded, ", "))
	}
	if r.Restarted {
		parts = append(parts, "restarted "+ServiceName)
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, "; ")
}

// Reconciler holds the collaborators shared across passes. Secrets may be
// nil when no secret backend is configured; pass entries are then ignored.
type Reconciler struct {
	Keys    keys.Provider
	Secrets secrets.Store
}

// publishKey stores the node's public key, best effort. The config file is
// the durable artifact; a store failure is reported on the result, never
// propagated as a pass failure.
func (rc *Reconciler) publishKey(res *Result, entry, publicKey string) {
	if entry == "" || rc.Secrets == nil {
		return
	}
	changed, err := secrets.Publish(rc.Secrets, entry, publicKey)
	if err != nil {
		res.SecretWarning = fmt.Sprintf("public key not stored under %s: %v; register it manually", entry, err)
		return
	}
	res.SecretStored = changed
}

func requireField(node, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("node %s: %w: %s is required", node, ErrMalformedInput, field)
	}
	return nil
}
