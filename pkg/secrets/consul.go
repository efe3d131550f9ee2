package secrets

import (
	"fmt"
	"strings"

	consulapi "github.com/hashicorp/consul/api"
)

const keyPrefix = "wgnest/keys/"

// Consul stores entries in Consul KV under a fixed prefix, for teams that
// keep shared state in Consul rather than a pass repo.
type Consul struct {
	cli *consulapi.Client
}

// NewConsul connects to the given Consul address ("" for the agent default).
func NewConsul(addr string) (*Consul, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return &Consul{cli: cli}, nil
}

func (c *Consul) Read(entry string) (string, error) {
	kv, _, err := c.cli.KV().Get(keyPrefix+entry, nil)
	if err != nil {
		return "", fmt.Errorf("consul get: %w: %v", ErrToolUnavailable, err)
	}
	if kv == nil {
		return "", nil
	}
	return strings.TrimSpace(string(kv.Value)), nil
}

func (c *Consul) Write(entry, value string) error {
	pair := &consulapi.KVPair{Key: keyPrefix + entry, Value: []byte(value)}
	if _, err := c.cli.KV().Put(pair, nil); err != nil {
		return fmt.Errorf("consul put: %w: %v", ErrToolUnavailable, err)
	}
	return nil
}
