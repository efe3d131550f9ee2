// Package remote executes reconciliation side effects on managed hosts.
// The core never edits files in place: every mutation goes through a
// whole-file compare-and-replace script, so a failed run leaves either the
// old complete file or the new complete file.
package remote

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Runner executes a shell script on a target host and returns its standard
// output. Host operations parse markers and file payloads out of stdout,
// so stderr stays separate and is folded into the error on failure.
type Runner interface {
	Run(script string) (string, error)
}

// LocalRunner executes scripts on the operator's own machine, useful when
// the mother is the machine running the deploy.
type LocalRunner struct{}

func (LocalRunner) Run(script string) (string, error) {
	cmd := exec.Command("sh", "-s")
	cmd.Stdin = strings.NewReader(script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("local script failed: %w stderr=%s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// SSHRunner executes scripts over SSH with public-key auth.
type SSHRunner struct {
	Host           string
	Port           int
	User           string
	KeyPath        string
	KnownHostsPath string
	Insecure       bool // skip host key verification (not recommended)
	Timeout        time.Duration
}

func (r SSHRunner) Run(script string) (string, error) {
	client, err := r.dial()
	if err != nil {
		return "", err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh session %s: %w", r.Host, err)
	}
	defer session.Close()

	session.Stdin = strings.NewReader(script)
	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if err := session.Run("sh -s"); err != nil {
		return "", fmt.Errorf("ssh %s script failed: %w stderr=%s", r.Host, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func (r SSHRunner) dial() (*ssh.Client, error) {
	keyPath := r.KeyPath
	if keyPath == "" {
		keyPath = filepath.Join(os.Getenv("HOME"), ".ssh", "id_ed25519")
	}
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", keyPath, err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec
	if !r.Insecure {
		knownPath := r.KnownHostsPath
		if knownPath == "" {
			knownPath = filepath.Join(os.Getenv("HOME"), ".ssh", "known_hosts")
		}
		cb, err := knownhosts.New(knownPath)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts %s: %w", knownPath, err)
		}
		hostKeyCallback = cb
	}

	user := r.User
	if user == "" {
		user = "root"
	}
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	port := r.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(r.Host, fmt.Sprintf("%d", port))
	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	return client, nil
}
