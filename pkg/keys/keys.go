package keys

import (
	"errors"
	"fmt"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// ErrToolUnavailable means the key-generation capability cannot be invoked
// at all (missing local wireguard-tools install). It is fatal to the
// reconciliation pass for the node that needed the key.
var ErrToolUnavailable = errors.New("wireguard key tool unavailable")

// KeyPair holds a freshly generated private key and the public key derived
// from it. The two are produced together and never edited independently.
type KeyPair struct {
	PrivateKey string
	PublicKey  string
}

// Provider generates WireGuard keypairs.
type Provider interface {
	Generate() (KeyPair, error)
}

// InProcess generates keys with the wgctrl key type, no external binary
// involved. This is the default provider.
type InProcess struct{}

func (InProcess) Generate() (KeyPair, error) {
	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate private key: %w", err)
	}
	return KeyPair{
		PrivateKey: priv.String(),
		PublicKey:  priv.PublicKey().String(),
	}, nil
}
