package config

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a size in bytes that can be written as a plain number or with
// a unit ("400MB", "1.5 GiB"). It implements pflag.Value and yaml.Unmarshaler.
type ByteSize int64

// ParseByteSize parses s into a ByteSize.
func ParseByteSize(s string) (ByteSize, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, ErrInvalidSize
		}
		return ByteSize(n), nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return ByteSize(n), nil //nolint:gosec // sizes above MaxInt64 are not meaningful here
}

// String returns the size in human readable IEC units.
func (b ByteSize) String() string {
	if b <= 0 {
		return "0"
	}
	return humanize.IBytes(uint64(b))
}

// Set parses s into b.
func (b *ByteSize) Set(s string) error {
	v, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Type is used by pflag in help output.
func (b *ByteSize) Type() string {
	return "size"
}

// UnmarshalYAML accepts both integer and string scalars.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: expected a scalar at line %d", ErrInvalidSize, node.Line)
	}
	return b.Set(node.Value)
}
