package config

import (
	"fmt"

	"github.com/fossas/broker/internal/secret"
)

// Config is the root of config.yml.
type Config struct {
	Version             int             `yaml:"version"`
	FossaEndpoint       string          `yaml:"fossa_endpoint"`
	FossaIntegrationKey secret.String   `yaml:"fossa_integration_key"`
	Concurrency         int             `yaml:"concurrency"`
	Debugging           DebuggingConfig `yaml:"debugging"`
	Integrations        []Integration   `yaml:"integrations"`
}

// DebuggingConfig controls where debug bundles land and how long they
// are kept.
type DebuggingConfig struct {
	Location  string          `yaml:"location"`
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig bounds how long debug bundles are kept on disk.
type RetentionConfig struct {
	Days int `yaml:"days"`
}

// Integration describes one configured git remote and its access
// policy. ID is derived, not read from YAML.
type Integration struct {
	ID   string `yaml:"-"`
	Type string `yaml:"type"`

	PollInterval Duration       `yaml:"poll_interval"`
	Remote       string         `yaml:"remote"`
	Auth         AuthDescriptor `yaml:"auth"`

	Team  string `yaml:"team"`
	Title string `yaml:"title"`

	ImportBranches  *bool    `yaml:"import_branches"`
	ImportTags      *bool    `yaml:"import_tags"`
	WatchedBranches []string `yaml:"watched_branches"`
}

// ImportBranchesOrDefault returns the configured value, defaulting to
// true.
func (i Integration) ImportBranchesOrDefault() bool {
	if i.ImportBranches == nil {
		return true
	}
	return *i.ImportBranches
}

// ImportTagsOrDefault returns the configured value, defaulting to
// false.
func (i Integration) ImportTagsOrDefault() bool {
	if i.ImportTags == nil {
		return false
	}
	return *i.ImportTags
}

// AuthKind discriminates the AuthDescriptor variants.
type AuthKind string

const (
	AuthNone       AuthKind = "none"
	AuthHTTPBasic  AuthKind = "http_basic"
	AuthHTTPHeader AuthKind = "http_header"
	AuthSSHKey     AuthKind = "ssh_key"
	AuthSSHKeyFile AuthKind = "ssh_key_file"
)

// Transport discriminates the none-auth variant's protocol.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportSSH  Transport = "ssh"
)

// AuthDescriptor is the tagged union of authentication schemes a git
// remote may require. Exactly one set of fields is populated,
// depending on Kind.
type AuthDescriptor struct {
	Kind AuthKind

	// AuthNone
	Transport Transport

	// AuthHTTPBasic
	Username string
	Password secret.String

	// AuthHTTPHeader
	Header secret.String

	// AuthSSHKey
	Key secret.String

	// AuthSSHKeyFile
	Path string
}

func (a AuthDescriptor) validate() error {
	switch a.Kind {
	case AuthNone:
		if a.Transport != TransportHTTP && a.Transport != TransportSSH {
			return fmt.Errorf("auth: type none requires transport: http|ssh")
		}
	case AuthHTTPBasic:
		if a.Username == "" || a.Password.Empty() {
			return fmt.Errorf("auth: type http_basic requires username and password")
		}
	case AuthHTTPHeader:
		if a.Header.Empty() {
			return fmt.Errorf("auth: type http_header requires header")
		}
	case AuthSSHKey:
		if a.Key.Empty() {
			return fmt.Errorf("auth: type ssh_key requires key")
		}
	case AuthSSHKeyFile:
		if a.Path == "" {
			return fmt.Errorf("auth: type ssh_key_file requires path")
		}
	default:
		return fmt.Errorf("auth: unknown or missing type %q", a.Kind)
	}
	return nil
}

// httpVariant reports whether a is one of the variants permitted for
// an http(s):// remote.
func (a AuthDescriptor) httpVariant() bool {
	switch a.Kind {
	case AuthNone:
		return a.Transport == TransportHTTP
	case AuthHTTPBasic, AuthHTTPHeader:
		return true
	}
	return false
}

// sshVariant reports whether a is one of the variants permitted for
// an ssh:// (or scp-style) remote.
func (a AuthDescriptor) sshVariant() bool {
	switch a.Kind {
	case AuthSSHKey, AuthSSHKeyFile:
		return true
	case AuthNone:
		return a.Transport == TransportSSH
	}
	return false
}
