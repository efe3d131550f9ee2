// Package inventory loads the operator's declared desired state: one
// mother, any number of children, and how to reach them.
package inventory

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Mother declares the hub node.
type Mother struct {
	Name       string `toml:"name"`
	Host       string `toml:"host"` // SSH host, or "local" for the operator machine
	SSHUser    string `toml:"ssh_user"`
	SSHPort    int    `toml:"ssh_port"`
	SSHKey     string `toml:"ssh_key"`
	Address    string `toml:"address"`     // wireguard-internal IP, CIDR
	ListenPort int    `toml:"listen_port"` // port children dial
	Endpoint   string `toml:"endpoint"`    // public host:port children dial
	AllowedIPs string `toml:"allowed_ips"` // ranges routed through the mother on children
	PublicKey  string `toml:"public_key"`  // known after first deploy; children need it
	PassEntry  string `toml:"pass_entry"`  // secret entry the mother's key is published to
}

// Child declares one spoke node.
type Child struct {
	Name       string `toml:"name"`
	Host       string `toml:"host"`
	SSHUser    string `toml:"ssh_user"`
	SSHPort    int    `toml:"ssh_port"`
	SSHKey     string `toml:"ssh_key"`
	Address    string `toml:"address"`     // wireguard-internal IP, CIDR
	AllowedIPs string `toml:"allowed_ips"` // defaults to Address
	PublicKey  string `toml:"public_key"`  // inline, or resolved from the secret store
	PassEntry  string `toml:"pass_entry"`
}

// Inventory is the whole declared network.
type Inventory struct {
	SecretBackend string  `toml:"secret_backend"` // pass | consul | none
	ConsulAddr    string  `toml:"consul_addr"`
	Mother        Mother  `toml:"mother"`
	Children      []Child `toml:"children"`
}

// Load reads and validates an inventory file.
func Load(path string) (Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Inventory{}, fmt.Errorf("inventory load failed (%s): %w", path, err)
	}
	var inv Inventory
	if err := toml.Unmarshal(data, &inv); err != nil {
		return Inventory{}, fmt.Errorf("inventory parse failed (%s): %w", path, err)
	}
	if inv.SecretBackend == "" {
		inv.SecretBackend = "none"
	}
	for i := range inv.Children {
		if inv.Children[i].AllowedIPs == "" {
			inv.Children[i].AllowedIPs = inv.Children[i].Address
		}
	}
	if err := inv.validate(); err != nil {
		return Inventory{}, fmt.Errorf("inventory %s: %w", path, err)
	}
	return inv, nil
}

func (inv Inventory) validate() error {
	switch inv.SecretBackend {
	case "pass", "consul", "none":
	default:
		return fmt.Errorf("unknown secret_backend %q", inv.SecretBackend)
	}
	m := inv.Mother
	if m.Name == "" || m.Host == "" || m.Address == "" {
		return fmt.Errorf("mother needs name, host, and address")
	}
	if m.ListenPort <= 0 {
		return fmt.Errorf("mother %s needs a listen_port", m.Name)
	}
	if m.Endpoint == "" {
		return fmt.Errorf("mother %s needs an endpoint for children to dial", m.Name)
	}
	if m.AllowedIPs == "" {
		return fmt.Errorf("mother %s needs allowed_ips for child configs", m.Name)
	}
	seen := map[string]bool{m.Name: true}
	for _, c := range inv.Children {
		if c.Name == "" || c.Host == "" || c.Address == "" {
			return fmt.Errorf("child %q needs name, host, and address", c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate node name %q", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// ChildByName returns the declared child with the given name.
func (inv Inventory) ChildByName(name string) (Child, bool) {
	for _, c := range inv.Children {
		if c.Name == name {
			return c, true
		}
	}
	return Child{}, false
}
