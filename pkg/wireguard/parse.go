package wireguard

import (
	"bufio"
	"strconv"
	"strings"
)

// InterfaceSection is the parsed [Interface] section of a config file.
type InterfaceSection struct {
	PrivateKey string
	Address    string
	ListenPort int
}

// PeerBlock is one parsed [Peer] section. Name comes from the comment line
// directly above the section header; blocks written by hand without a
// comment parse with an empty Name and never match a declared peer.
type PeerBlock struct {
	Name       string
	PublicKey  string
	AllowedIPs string
	Endpoint   string
	Keepalive  int
}

// Config is the structured form of a wg-quick config file: one interface
// section followed by peers in file order.
type Config struct {
	Interface InterfaceSection
	Peers     []PeerBlock
}

// Provisioned reports whether the config already claims a private key.
// This is the marker that decides generate-and-write versus no-op.
func (c Config) Provisioned() bool {
	return c.Interface.PrivateKey != ""
}

// HasPeer reports whether a block for the named peer is present.
func (c Config) HasPeer(name string) bool {
	for _, p := range c.Peers {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Parse reads a wg-quick config into its structured form. It is tolerant:
// unknown keys and malformed lines are skipped, values are kept verbatim.
// Peer identity is decided here, on the parsed representation, never by
// substring scans over raw text.
func Parse(text string) Config {
	var cfg Config
	section := ""
	pendingName := ""
	var cur *PeerBlock

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			pendingName = strings.TrimSpace(strings.TrimPrefix(line, "#"))
			continue
		case strings.EqualFold(line, "[Interface]"):
			section = "interface"
			pendingName = ""
			continue
		case strings.EqualFold(line, "[Peer]"):
			section = "peer"
			cfg.Peers = append(cfg.Peers, PeerBlock{Name: pendingName})
			cur = &cfg.Peers[len(cfg.Peers)-1]
			pendingName = ""
			continue
		}

		key, value, ok := splitKV(line)
		if !ok {
			continue
		}
		switch section {
		case "interface":
			switch {
			case strings.EqualFold(key, "PrivateKey"):
				cfg.Interface.PrivateKey = value
			case strings.EqualFold(key, "Address"):
				cfg.Interface.Address = value
			case strings.EqualFold(key, "ListenPort"):
				if n, err := strconv.Atoi(value); err == nil {
					cfg.Interface.ListenPort = n
				}
			}
		case "peer":
			if cur == nil {
				continue
			}
			switch {
			case strings.EqualFold(key, "PublicKey"):
				cur.PublicKey = value
			case strings.EqualFold(key, "AllowedIPs"):
				cur.AllowedIPs = value
			case strings.EqualFold(key, "Endpoint"):
				cur.Endpoint = value
			case strings.EqualFold(key, "PersistentKeepalive"):
				if n, err := strconv.Atoi(value); err == nil {
					cur.Keepalive = n
				}
			}
		}
	}
	return cfg
}

func splitKV(line string) (key, value string, ok bool) {
	idx := strings.Index(line, "=")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}
