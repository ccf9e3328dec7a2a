// Package secret holds credential material (passwords, tokens, SSH
// keys) in a wrapper that refuses to render in logs and overwrites its
// backing memory once the value is no longer needed, per I5: secrets
// never reach durable state, and exist in memory only as long as a
// scan needs them.
package secret

import "go.yaml.in/yaml/v3"

// String wraps a secret value. Its String/GoString/MarshalJSON
// implementations always render "[redacted]" so it is safe to pass
// through slog, fmt, or an accidental struct dump.
type String struct {
	value []byte
}

// New wraps v. The caller's copy of v is not cleared; callers reading
// secrets out of config should prefer NewFromBytes and let the config
// loader drop its own copy.
func New(v string) String {
	return String{value: []byte(v)}
}

// NewFromBytes takes ownership of b; the caller must not use b again.
func NewFromBytes(b []byte) String {
	return String{value: b}
}

// Reveal returns the underlying value. Call sites must not log or
// persist the result; it exists only to cross into an auth header, a
// credential file, or an Authorization header.
func (s String) Reveal() string {
	return string(s.value)
}

// Empty reports whether no secret was set.
func (s String) Empty() bool { return len(s.value) == 0 }

// Zero overwrites the backing array so the secret does not linger in
// the process's memory after the caller is done with it.
func (s *String) Zero() {
	for i := range s.value {
		s.value[i] = 0
	}
	s.value = nil
}

const redacted = "[redacted]"

func (String) String() string                { return redacted }
func (String) GoString() string              { return redacted }
func (s String) MarshalJSON() ([]byte, error) { return []byte(`"` + redacted + `"`), nil }

// UnmarshalYAML lets String appear directly as a YAML scalar field
// (e.g. `password: hunter2`) while still being unprintable afterwards.
func (s *String) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	s.value = []byte(raw)
	return nil
}
