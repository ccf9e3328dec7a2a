package config

import (
	"fmt"

	"github.com/fossas/broker/internal/secret"
	"go.yaml.in/yaml/v3"
)

// allowedAuthKeys lists, per AuthKind, the YAML keys that variant
// accepts besides "type". Any other key present is a fatal
// configuration error, same as an unknown key anywhere else in the
// document.
var allowedAuthKeys = map[AuthKind]map[string]bool{
	AuthNone:       {"transport": true},
	AuthHTTPBasic:  {"username": true, "password": true},
	AuthHTTPHeader: {"header": true},
	AuthSSHKey:     {"key": true},
	AuthSSHKeyFile: {"path": true},
}

// UnmarshalYAML decodes the tagged-union AuthDescriptor, enforcing that
// only the keys valid for the discriminating "type" are present.
func (a *AuthDescriptor) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("auth: expected a mapping")
	}

	var typeVal string
	keys := make([]string, 0, len(node.Content)/2)
	values := map[string]*yaml.Node{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k := node.Content[i].Value
		v := node.Content[i+1]
		keys = append(keys, k)
		values[k] = v
		if k == "type" {
			if err := v.Decode(&typeVal); err != nil {
				return fmt.Errorf("auth.type: %w", err)
			}
		}
	}

	kind := AuthKind(typeVal)
	allowed, known := allowedAuthKeys[kind]
	if !known {
		return fmt.Errorf("auth: unknown type %q", typeVal)
	}
	for _, k := range keys {
		if k == "type" {
			continue
		}
		if !allowed[k] {
			return fmt.Errorf("auth: key %q is not valid for type %q", k, typeVal)
		}
	}

	a.Kind = kind
	if v, ok := values["transport"]; ok {
		var t string
		if err := v.Decode(&t); err != nil {
			return fmt.Errorf("auth.transport: %w", err)
		}
		a.Transport = Transport(t)
	}
	if v, ok := values["username"]; ok {
		if err := v.Decode(&a.Username); err != nil {
			return fmt.Errorf("auth.username: %w", err)
		}
	}
	if v, ok := values["password"]; ok {
		var raw string
		if err := v.Decode(&raw); err != nil {
			return fmt.Errorf("auth.password: %w", err)
		}
		a.Password = secret.New(raw)
	}
	if v, ok := values["header"]; ok {
		var raw string
		if err := v.Decode(&raw); err != nil {
			return fmt.Errorf("auth.header: %w", err)
		}
		a.Header = secret.New(raw)
	}
	if v, ok := values["key"]; ok {
		var raw string
		if err := v.Decode(&raw); err != nil {
			return fmt.Errorf("auth.key: %w", err)
		}
		a.Key = secret.New(raw)
	}
	if v, ok := values["path"]; ok {
		if err := v.Decode(&a.Path); err != nil {
			return fmt.Errorf("auth.path: %w", err)
		}
	}

	return a.validate()
}
