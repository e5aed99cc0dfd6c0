package descriptor

import (
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Address is an entry point address rendered as 0x-prefixed lowercase hex.
// In YAML it is an untagged integer literal (pc_init: 0x102), so loaders
// that read the field as a number keep working.
type Address uint64

// String renders the address as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// MarshalYAML implements yaml.Marshaler.
func (a Address) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!int",
		Value: a.String(),
	}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
// Accepts hex (0x...), octal and decimal literals.
func (a *Address) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: address must be a scalar", value.Line)
	}
	n, err := strconv.ParseUint(value.Value, 0, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid address %q: %w", value.Line, value.Value, err)
	}
	*a = Address(n)
	return nil
}

// MarshalJSON renders the address as a hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a hex string or a plain number.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", s, err)
		}
		*a = Address(n)
		return nil
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid address %s: %w", data, err)
	}
	*a = Address(n)
	return nil
}
