package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a byte count that supports human-readable YAML/JSON strings
// with k, M, and G suffixes (e.g. "256M"), the same syntax nginx
// accepts for client_max_body_size. A bare number is a count of
// bytes. Zero disables any limit that uses it.
type Size int64

// ParseSize parses a size string such as "256M", "512k", "1G", or "1024".
func ParseSize(s string) (Size, error) {
	orig := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		multiplier = 1 << 30
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", orig, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("size must not be negative: %q", orig)
	}

	return Size(n * multiplier), nil
}

// String renders the size using the largest unit that divides it evenly.
func (s Size) String() string {
	v := int64(s)
	switch {
	case v >= 1<<30 && v%(1<<30) == 0:
		return strconv.FormatInt(v>>30, 10) + "G"
	case v >= 1<<20 && v%(1<<20) == 0:
		return strconv.FormatInt(v>>20, 10) + "M"
	case v >= 1<<10 && v%(1<<10) == 0:
		return strconv.FormatInt(v>>10, 10) + "k"
	default:
		return strconv.FormatInt(v, 10)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler. Both quoted strings with
// suffixes and plain integers are accepted.
func (s *Size) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	if err := unmarshal(&str); err == nil {
		parsed, err := ParseSize(str)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}

	var n int64
	if err := unmarshal(&n); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("size must not be negative: %d", n)
	}
	*s = Size(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Size) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Size) UnmarshalJSON(b []byte) error {
	str := string(b)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	if str == "" || str == "null" {
		*s = 0
		return nil
	}
	parsed, err := ParseSize(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Size) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Int64 returns the size as a count of bytes.
func (s Size) Int64() int64 {
	return int64(s)
}
