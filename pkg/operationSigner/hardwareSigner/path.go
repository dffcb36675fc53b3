package hardwareSigner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tyler-smith/go-bip32"
)

// DefaultDerivationPath is the first Tezos account (SLIP-44 coin type 1729).
const DefaultDerivationPath = "m/44'/1729'/0'"

var ErrInvalidDerivationPath = errors.New("invalid derivation path")

// PathComponent is one level of a hierarchical key path.
type PathComponent struct {
	Index    uint32
	Hardened bool
}

// Value is the BIP32 child number, with the hardened offset applied.
func (c PathComponent) Value() uint32 {
	if c.Hardened {
		return c.Index + bip32.FirstHardenedChild
	}
	return c.Index
}

func (c PathComponent) String() string {
	if c.Hardened {
		return strconv.FormatUint(uint64(c.Index), 10) + "'"
	}
	return strconv.FormatUint(uint64(c.Index), 10)
}

type DerivationPath []PathComponent

// ParseDerivationPath parses paths like m/44'/1729'/0'. Both ' and h mark a
// hardened component; the leading m/ is optional.
func ParseDerivationPath(s string) (DerivationPath, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "m/")
	if trimmed == "" || trimmed == "m" {
		return nil, fmt.Errorf("%w: %q has no components", ErrInvalidDerivationPath, s)
	}

	parts := strings.Split(trimmed, "/")
	path := make(DerivationPath, 0, len(parts))
	for _, part := range parts {
		hardened := false
		if strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h") || strings.HasSuffix(part, "H") {
			hardened = true
			part = part[:len(part)-1]
		}
		index, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: component %q", ErrInvalidDerivationPath, s, part)
		}
		if index >= uint64(bip32.FirstHardenedChild) {
			return nil, fmt.Errorf("%w: %q: index %d out of range", ErrInvalidDerivationPath, s, index)
		}
		path = append(path, PathComponent{Index: uint32(index), Hardened: hardened})
	}
	return path, nil
}

func MustParseDerivationPath(s string) DerivationPath {
	p, err := ParseDerivationPath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// AddressN is the child number list devices expect.
func (p DerivationPath) AddressN() []uint32 {
	out := make([]uint32, len(p))
	for i, c := range p {
		out[i] = c.Value()
	}
	return out
}

func (p DerivationPath) String() string {
	parts := make([]string, len(p)+1)
	parts[0] = "m"
	for i, c := range p {
		parts[i+1] = c.String()
	}
	return strings.Join(parts, "/")
}
