package gitcli

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/fossas/broker/internal/config"
)

// Credentials materializes an AuthDescriptor into the environment
// variables and/or extra git config arguments a git invocation needs.
// Materialize may write a short-lived file (e.g. an SSH key) under
// tmpDir; Cleanup removes it.
type Credentials struct {
	// ExtraArgs are appended immediately after "git" before the
	// subcommand, e.g. ["-c", "http.extraHeader=Authorization: ..."].
	ExtraArgs []string
	// Env holds extra environment variables to set on the subprocess
	// (e.g. GIT_SSH_COMMAND).
	Env []string

	keyFilePath string
}

// Materialize builds the Credentials for auth, writing any secret
// material needed (e.g. an SSH private key) into tmpDir with
// owner-read-only permissions (I5).
func Materialize(auth config.AuthDescriptor, tmpDir string) (*Credentials, error) {
	c := &Credentials{}
	switch auth.Kind {
	case config.AuthNone:
		return c, nil

	case config.AuthHTTPBasic:
		token := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password.Reveal()))
		c.ExtraArgs = []string{"-c", "http.extraHeader=Authorization: Basic " + token}
		return c, nil

	case config.AuthHTTPHeader:
		c.ExtraArgs = []string{"-c", "http.extraHeader=" + auth.Header.Reveal()}
		return c, nil

	case config.AuthSSHKey:
		f, err := os.CreateTemp(tmpDir, "broker-ssh-key-*")
		if err != nil {
			return nil, fmt.Errorf("creating ssh key file: %w", err)
		}
		keyPath := f.Name()
		if err := f.Chmod(0o600); err != nil {
			f.Close()
			os.Remove(keyPath)
			return nil, fmt.Errorf("setting ssh key file permissions: %w", err)
		}
		if _, err := f.WriteString(auth.Key.Reveal()); err != nil {
			f.Close()
			os.Remove(keyPath)
			return nil, fmt.Errorf("writing ssh key: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(keyPath)
			return nil, fmt.Errorf("writing ssh key: %w", err)
		}
		c.keyFilePath = keyPath
		c.Env = []string{"GIT_SSH_COMMAND=" + sshCommand(keyPath)}
		return c, nil

	case config.AuthSSHKeyFile:
		c.Env = []string{"GIT_SSH_COMMAND=" + sshCommand(auth.Path)}
		return c, nil

	default:
		return nil, fmt.Errorf("unsupported auth kind %q", auth.Kind)
	}
}

// Cleanup removes any credential file Materialize wrote. Called on
// every scan exit path (I5: secrets removed on scan completion).
func (c *Credentials) Cleanup() {
	if c == nil || c.keyFilePath == "" {
		return
	}
	os.Remove(c.keyFilePath)
	c.keyFilePath = ""
}

func sshCommand(keyPath string) string {
	return fmt.Sprintf("ssh -i %s -o IdentitiesOnly=yes -o StrictHostKeyChecking=accept-new -o BatchMode=yes", keyPath)
}
