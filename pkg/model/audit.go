package model

import "time"

// AuditEntry records one reconciliation outcome for a node.
type AuditEntry struct {
	Node      string    `json:"node"`
	Role      Role      `json:"role"`
	Action    string    `json:"action"` // provisioned | peers-added | noop
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
