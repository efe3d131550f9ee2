package model

// Role tells which side of the star a node sits on.
type Role string

const (
	// RoleMother is the hub: it listens on a fixed port and accumulates
	// one peer block per onboarded child.
	RoleMother Role = "mother"
	// RoleChild is a spoke: it dials out to the mother and holds exactly
	// one peer entry for her.
	RoleChild Role = "child"
)

// MotherSpec is the operator-declared desired state for the hub node.
type MotherSpec struct {
	Name       string
	Address    string // wireguard-internal IP of the mother, CIDR notation
	ListenPort int
	Children   []PeerDescriptor // appended in declared order, never sorted
	PassEntry  string           // optional secret-store entry for the mother's public key
}

// ChildSpec is the operator-declared desired state for a spoke node.
type ChildSpec struct {
	Name      string
	Address   string         // wireguard-internal IP of the child, CIDR notation
	Mother    PeerDescriptor // the single peer the child dials out to
	PassEntry string         // optional secret-store entry for the child's public key
}
