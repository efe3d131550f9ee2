package wireguard

import (
	"fmt"
	"strings"

	"wgnest/pkg/model"
)

// Keepalive interval emitted for dial-out peers, in seconds. 25 keeps NAT
// mappings alive without flooding the link.
const KeepaliveSeconds = 25

// RenderInterface produces the [Interface] section for a node.
// ListenPort is emitted only when port > 0 (children have none).
// Values are passed through verbatim; syntax checking is a caller concern.
func RenderInterface(privateKey, address string, listenPort int) string {
	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", privateKey)
	fmt.Fprintf(&b, "Address = %s\n", address)
	if listenPort > 0 {
		fmt.Fprintf(&b, "ListenPort = %d\n", listenPort)
	}
	return b.String()
}

// RenderPeer produces one [Peer] block, preceded by a blank line and a
// comment carrying the peer's name. The comment is the block's identity
// during merge, so the name must be stable across runs.
// Endpoint and PersistentKeepalive are emitted together or not at all:
// a peer without an endpoint only receives inbound connections and needs
// no keepalive.
func RenderPeer(p model.PeerDescriptor) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "# %s\n", p.Name)
	b.WriteString("[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", p.PublicKey)
	fmt.Fprintf(&b, "AllowedIPs = %s\n", p.AllowedIPs)
	if p.DialsOut() {
		fmt.Fprintf(&b, "Endpoint = %s\n", p.Endpoint)
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", KeepaliveSeconds)
	}
	return b.String()
}

// RenderFull concatenates the interface section with one block per peer,
// in the order given. Identical inputs yield byte-identical output, which
// the merge step relies on to detect already-present blocks.
func RenderFull(privateKey, address string, peers []model.PeerDescriptor, listenPort int) string {
	var b strings.Builder
	b.WriteString(RenderInterface(privateKey, address, listenPort))
	for _, p := range peers {
		b.WriteString(RenderPeer(p))
	}
	return b.String()
}
