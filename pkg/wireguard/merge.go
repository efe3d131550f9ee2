package wireguard

import (
	"strings"

	"wgnest/pkg/model"
)

// AppendPeerIfAbsent merges one peer block into an existing rendered config.
// Presence is decided against the parsed peer list by name, so re-running
// with the same peer never duplicates the block and never alters existing
// bytes. Returns the (possibly unchanged) config text and whether a block
// was appended.
func AppendPeerIfAbsent(existing string, peer model.PeerDescriptor) (string, bool) {
	if Parse(existing).HasPeer(peer.Name) {
		return existing, false
	}
	block := RenderPeer(peer)
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		existing += "\n"
	}
	return existing + block, true
}
