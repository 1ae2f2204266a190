package tunnel

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrNoAuth is returned when a tunnel has neither a password nor a key.
var ErrNoAuth = errors.New("ssh tunnel needs a password or a private key")

func newClientConfig(cfg core.TunnelConfig, logger *slog.Logger) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	switch {
	case cfg.PrivateKeyPath != "":
		signer, err := loadSigner(cfg.PrivateKeyPath, cfg.Passphrase)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case cfg.Password != "":
		auth = append(auth, ssh.Password(cfg.Password))
	default:
		return nil, ErrNoAuth
	}

	hostKeyCallback, err := newHostKeyCallback(cfg.KnownHostsPath, logger)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         handshakeTimeout,
	}, nil
}

func loadSigner(path, passphrase string) (ssh.Signer, error) {
	key, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
	}
	return signer, nil
}

// newHostKeyCallback verifies against a known_hosts file when one is given.
func newHostKeyCallback(path string, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	if path == "" {
		logger.Warn("ssh host key verification disabled; set known_hosts_path to enable it")
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // opt-in verification via known_hosts_path
	}
	cb, err := knownhosts.New(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %w", err)
	}
	return cb, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
