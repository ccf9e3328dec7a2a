package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// Duration wraps time.Duration with a YAML decoder that understands
// the broker duration grammar: a sequence of <int><unit> pairs summed
// together (e.g. "1h30m", "2d 12h"), or a bare integer meaning
// seconds. Units: ns, us, ms, s, m, h, d, w, M (month), y, plus the
// long-form aliases below.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML accepts either a bare integer (seconds) or a duration
// string built from concatenated <int><unit> terms, e.g. "1h30m".
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		// Bare integer node: treat as seconds.
		var n int64
		if err2 := node.Decode(&n); err2 != nil {
			return fmt.Errorf("duration: %w", err)
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

var unitAliases = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"µs": time.Microsecond,
	"ms": time.Millisecond,
	"s": time.Second, "sec": time.Second, "secs": time.Second,
	"second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute,
	"minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour,
	"hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
	"M": 30 * 24 * time.Hour, "month": 30 * 24 * time.Hour, "months": 30 * 24 * time.Hour,
	"y": 365 * 24 * time.Hour, "year": 365 * 24 * time.Hour, "years": 365 * 24 * time.Hour,
}

// ParseDuration parses the broker duration grammar: a sequence of
// <int><unit> pairs, summed. A bare integer (no unit) is seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty value")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}

	var total time.Duration
	i := 0
	for i < len(s) {
		if s[i] == ' ' {
			i++
			continue
		}
		start := i
		for i < len(s) && (s[i] >= '0' && s[i] <= '9') {
			i++
		}
		if i == start {
			return 0, fmt.Errorf("duration %q: expected a number at position %d", s, start)
		}
		numStr := s[start:i]

		unitStart := i
		// "M" (month) is case-sensitive against "m" (minute); every other
		// unit is case-insensitive on its ASCII letters, so only scan
		// contiguous letters/µ here and resolve case in the alias table.
		for i < len(s) {
			if isLetter(s[i]) {
				i++
			} else if strings.HasPrefix(s[i:], "µ") {
				i += len("µ")
			} else {
				break
			}
		}
		unit := s[unitStart:i]
		if unit == "" {
			return 0, fmt.Errorf("duration %q: missing unit after %q", s, numStr)
		}

		mult, ok := lookupUnit(unit)
		if !ok {
			return 0, fmt.Errorf("duration %q: unknown unit %q", s, unit)
		}

		n, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("duration %q: %w", s, err)
		}
		total += time.Duration(n) * mult
	}
	return total, nil
}

func lookupUnit(unit string) (time.Duration, bool) {
	if unit == "M" {
		return unitAliases["M"], true
	}
	if unit == "m" {
		return unitAliases["m"], true
	}
	if d, ok := unitAliases[strings.ToLower(unit)]; ok {
		return d, true
	}
	return 0, false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
