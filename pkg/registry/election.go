package registry

import (
	"fmt"
	"strings"
)

// ElectionStrategy decides which of several peer registries becomes primary.
type ElectionStrategy int

const (
	// Highest elects the peer with the highest advertised identity (default).
	Highest ElectionStrategy = iota
	// Lowest elects the peer with the lowest advertised identity.
	Lowest
)

// ParseElectionStrategy converts a string to an ElectionStrategy.
func ParseElectionStrategy(s string) (ElectionStrategy, error) {
	switch strings.ToLower(s) {
	case "highest":
		return Highest, nil
	case "lowest":
		return Lowest, nil
	default:
		return Highest, fmt.Errorf("invalid election strategy: %s (must be 'highest' or 'lowest')", s)
	}
}

// String returns the value written to KARAPACE_MASTER_ELECTION_STRATEGY.
func (e ElectionStrategy) String() string {
	switch e {
	case Highest:
		return "highest"
	case Lowest:
		return "lowest"
	default:
		return "unknown"
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so strategies can be read
// from TOML and YAML files.
func (e *ElectionStrategy) UnmarshalText(text []byte) error {
	v, err := ParseElectionStrategy(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (e ElectionStrategy) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}
