package keys

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// WgTool generates keys by piping `wg genkey` into `wg pubkey`, matching
// what an operator would do by hand. The public key is always computed from
// the private key generated in the same call, never from older material.
type WgTool struct{}

func (WgTool) Generate() (KeyPair, error) {
	privOut, err := exec.Command("wg", "genkey").Output()
	if err != nil {
		return KeyPair{}, wrapToolErr("wg genkey", err)
	}
	priv := strings.TrimSpace(string(privOut))

	cmd := exec.Command("wg", "pubkey")
	cmd.Stdin = bytes.NewReader([]byte(priv + "\n"))
	pubOut, err := cmd.Output()
	if err != nil {
		return KeyPair{}, wrapToolErr("wg pubkey", err)
	}
	return KeyPair{PrivateKey: priv, PublicKey: strings.TrimSpace(string(pubOut))}, nil
}

func wrapToolErr(what string, err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%s: %w (install wireguard-tools on the local machine)", what, ErrToolUnavailable)
	}
	return fmt.Errorf("%s: %w", what, err)
}
