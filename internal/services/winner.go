package services

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"lottery-ledger/internal/address"

	"go.dedis.ch/kyber/v3/group/edwards25519"
)

const drawDomain = "lottery-ledger/draw/v1"

// DrawInput identifies the round a winner is drawn for.
type DrawInput struct {
	RoundNumber  uint64
	RoundAddress address.Address
	TotalSold    uint64
	Time         time.Time
}

// Drawer picks the winning index of a closed round.
type Drawer interface {
	Draw(in DrawInput) (uint64, error)
}

// DrawerFunc adapts a function to Drawer.
type DrawerFunc func(in DrawInput) (uint64, error)

func (f DrawerFunc) Draw(in DrawInput) (uint64, error) { return f(in) }

// XOFDrawer seeds a BLAKE2Xb XOF with the round identity, the close time and
// fresh entropy, then draws an index by rejection sampling. Including the
// round address keeps a draw from being replayed in another round.
type XOFDrawer struct {
	entropy io.Reader
	suite   *edwards25519.SuiteEd25519
}

// NewXOFDrawer returns a drawer reading 32 bytes of entropy per draw from
// entropy, or from crypto/rand when entropy is nil.
func NewXOFDrawer(entropy io.Reader) *XOFDrawer {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &XOFDrawer{entropy: entropy, suite: edwards25519.NewBlakeSHA256Ed25519()}
}

func (d *XOFDrawer) Draw(in DrawInput) (uint64, error) {
	if in.TotalSold == 0 {
		return 0, ErrNoTicketsSold
	}

	salt := make([]byte, 32)
	if _, err := io.ReadFull(d.entropy, salt); err != nil {
		return 0, fmt.Errorf("read draw entropy: %w", err)
	}

	seed := make([]byte, 0, len(drawDomain)+address.Size+3*8+len(salt))
	seed = append(seed, drawDomain...)
	seed = append(seed, in.RoundAddress[:]...)
	seed = binary.LittleEndian.AppendUint64(seed, in.RoundNumber)
	seed = binary.LittleEndian.AppendUint64(seed, in.TotalSold)
	seed = binary.LittleEndian.AppendUint64(seed, uint64(in.Time.UnixNano()))
	seed = append(seed, salt...)

	return uniformIndex(d.suite.XOF(seed), in.TotalSold)
}

// uniformIndex returns a uniform value in [0, n) read from r. Samples at or
// above the largest multiple of n are rejected so no index is favoured.
func uniformIndex(r io.Reader, n uint64) (uint64, error) {
	if n == 0 {
		return 0, ErrNoTicketsSold
	}
	limit := math.MaxUint64 - math.MaxUint64%n
	var buf [8]byte
	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, fmt.Errorf("read draw stream: %w", err)
		}
		v := binary.LittleEndian.Uint64(buf[:])
		if v < limit {
			return v % n, nil
		}
	}
}
