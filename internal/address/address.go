// Package address derives the deterministic storage addresses used by the
// lottery ledger. Derivation follows the Solana program-derived address
// scheme so addresses match an on-chain deployment of the same program.
package address

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	"go.dedis.ch/kyber/v3/group/edwards25519"
)

const (
	// Size is the length in bytes of every address.
	Size = 32
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrInvalidAddress = errors.New("address: invalid address")
	ErrSeedTooLong    = errors.New("address: seed longer than 32 bytes")
	ErrTooManySeeds   = errors.New("address: too many seeds")
	ErrOnCurve        = errors.New("address: derived address is on the ed25519 curve")
	ErrNoViableBump   = errors.New("address: unable to find a viable bump seed")
)

var suite = edwards25519.NewBlakeSHA256Ed25519()

// Address is a 32-byte ledger address or account identity.
type Address [Size]byte

// Zero is the all-zero address.
var Zero Address

// Parse decodes a base58 address.
func Parse(s string) (Address, error) {
	b := base58.Decode(s)
	if len(b) != Size {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBytes copies a 32-byte slice into an Address.
func FromBytes(b []byte) (Address, error) {
	if len(b) != Size {
		return Zero, fmt.Errorf("%w: length %d", ErrInvalidAddress, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string { return base58.Encode(a[:]) }

func (a Address) Bytes() []byte { return a[:] }

func (a Address) IsZero() bool { return a == Zero }

func (a Address) Equal(o Address) bool { return bytes.Equal(a[:], o[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IsOnCurve reports whether a decodes to a valid ed25519 point. Derived
// addresses must never be on the curve, so no private key can sign for them.
func IsOnCurve(a Address) bool {
	return suite.Point().UnmarshalBinary(a[:]) == nil
}

// U64 encodes n as 8 little-endian bytes.
func U64(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

// CreateProgramAddress hashes seeds with the program id. The seeds must
// already contain the bump.
func CreateProgramAddress(seeds [][]byte, program Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Zero, ErrTooManySeeds
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLen {
			return Zero, ErrSeedTooLong
		}
		h.Write(s)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))

	var out Address
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out) {
		return Zero, ErrOnCurve
	}
	return out, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Zero, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}
