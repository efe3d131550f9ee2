package model

// PeerDescriptor describes one remote WireGuard peer as declared by the
// operator. Name is a label only; it is embedded as a comment above the
// rendered block and serves as the block's identity during merge.
type PeerDescriptor struct {
	Name       string `json:"name"`
	PublicKey  string `json:"publicKey"`
	AllowedIPs string `json:"allowedIPs"` // comma separated CIDR list, passed through verbatim
	Endpoint   string `json:"endpoint,omitempty"`
}

// DialsOut reports whether this peer reaches out to a public endpoint and
// therefore needs a keepalive to hold NAT mappings open.
func (p PeerDescriptor) DialsOut() bool {
	return p.Endpoint != ""
}
