package auth

import (
	"errors"
	"sync"
	"time"

	"lottery-ledger/internal/address"

	"github.com/btcsuite/btcutil/base58"
)

// ErrReplayed is returned for a signature that was already accepted.
var ErrReplayed = errors.New("auth: signature already used")

// ReplayCache remembers accepted signatures for as long as their timestamp
// could still pass the skew check.
type ReplayCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

// NewReplayCache returns a cache for requests verified with the given skew.
// A timestamp accepted now can be up to skew ahead, so entries live 2*skew.
func NewReplayCache(skew time.Duration) *ReplayCache {
	return &ReplayCache{ttl: 2 * skew, seen: make(map[string]time.Time)}
}

// Mark records the signature of a verified request. It fails with
// ErrReplayed when the same signer already used the same signature nonce.
// Only the commitment half is keyed so a re-encoded response scalar does
// not slip through.
func (c *ReplayCache) Mark(signer address.Address, sigText string, now time.Time) error {
	sig := base58.Decode(sigText)
	if len(sig) < address.Size {
		return ErrBadSignature
	}
	key := string(signer.Bytes()) + string(sig[:address.Size])

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, exp := range c.seen {
		if !now.Before(exp) {
			delete(c.seen, k)
		}
	}
	if _, ok := c.seen[key]; ok {
		return ErrReplayed
	}
	c.seen[key] = now.Add(c.ttl)
	return nil
}

// Len reports how many signatures are currently remembered.
func (c *ReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
