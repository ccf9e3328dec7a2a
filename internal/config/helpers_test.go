package config

import (
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"
)

// decodeYAML decodes src into out with the same strict unknown-key
// setting Load uses, so tests exercise the real decode path.
func decodeYAML(t *testing.T, src string, out any) error {
	t.Helper()
	dec := yaml.NewDecoder(strings.NewReader(src))
	dec.KnownFields(true)
	return dec.Decode(out)
}
