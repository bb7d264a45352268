package ledger

import (
	"encoding/binary"
	"fmt"
	"math"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/models"

	bolt "go.etcd.io/bbolt"
)

// Tx is a ledger view bound to one bbolt transaction. Write methods fail
// when the transaction is read-only.
type Tx struct {
	btx *bolt.Tx
}

func be64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func (tx *Tx) bucket(name []byte) *bolt.Bucket {
	return tx.btx.Bucket(name)
}

// Round loads the round stored at addr.
func (tx *Tx) Round(addr address.Address) (*models.Round, error) {
	buf := tx.bucket(bucketRounds).Get(addr[:])
	if buf == nil {
		return nil, ErrNotFound
	}
	return decodeRound(buf)
}

// RoundByNumber loads round n through the round number index.
func (tx *Tx) RoundByNumber(n uint64) (*models.Round, error) {
	addr := tx.bucket(bucketRoundIndex).Get(be64(n))
	if addr == nil {
		return nil, ErrNotFound
	}
	a, err := address.FromBytes(addr)
	if err != nil {
		return nil, fmt.Errorf("round index %d: %w", n, err)
	}
	return tx.Round(a)
}

// InsertRound stores a new round. The round number and address are fixed
// from then on.
func (tx *Tx) InsertRound(r *models.Round) error {
	if tx.bucket(bucketRounds).Get(r.Address[:]) != nil {
		return ErrExists
	}
	if tx.bucket(bucketRoundIndex).Get(be64(r.Number)) != nil {
		return ErrExists
	}
	if err := tx.bucket(bucketRoundIndex).Put(be64(r.Number), r.Address.Bytes()); err != nil {
		return fmt.Errorf("index round %d: %w", r.Number, err)
	}
	return tx.putRound(r)
}

// UpdateRound overwrites an existing round.
func (tx *Tx) UpdateRound(r *models.Round) error {
	indexed := tx.bucket(bucketRoundIndex).Get(be64(r.Number))
	if indexed == nil {
		return ErrNotFound
	}
	if string(indexed) != string(r.Address[:]) {
		return fmt.Errorf("round %d: address %s does not match index", r.Number, r.Address)
	}
	return tx.putRound(r)
}

func (tx *Tx) putRound(r *models.Round) error {
	buf, err := encodeRound(r)
	if err != nil {
		return fmt.Errorf("encode round %d: %w", r.Number, err)
	}
	return tx.bucket(bucketRounds).Put(r.Address.Bytes(), buf)
}

// LatestRoundNumber returns the highest round number stored.
func (tx *Tx) LatestRoundNumber() (uint64, bool) {
	k, _ := tx.bucket(bucketRoundIndex).Cursor().Last()
	if k == nil {
		return 0, false
	}
	return binary.BigEndian.Uint64(k), true
}

// ActiveRounds walks the rounds from the highest number down and returns up
// to limit Active rounds, highest first. Claimed and Ended rounds are skipped,
// so a funded round below a settled successor is still found.
func (tx *Tx) ActiveRounds(limit int) ([]*models.Round, error) {
	var out []*models.Round
	c := tx.bucket(bucketRoundIndex).Cursor()
	for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
		addr, err := address.FromBytes(v)
		if err != nil {
			return nil, fmt.Errorf("round index %d: %w", binary.BigEndian.Uint64(k), err)
		}
		r, err := tx.Round(addr)
		if err != nil {
			return nil, err
		}
		if r.Status == models.RoundActive {
			out = append(out, r)
		}
	}
	return out, nil
}

// ActiveRound returns the highest-numbered Active round.
func (tx *Tx) ActiveRound() (*models.Round, error) {
	rounds, err := tx.ActiveRounds(1)
	if err != nil {
		return nil, err
	}
	if len(rounds) == 0 {
		return nil, ErrNotFound
	}
	return rounds[0], nil
}

// Position loads the ticket position stored at addr.
func (tx *Tx) Position(addr address.Address) (*models.TicketPosition, error) {
	buf := tx.bucket(bucketPositions).Get(addr[:])
	if buf == nil {
		return nil, ErrNotFound
	}
	return decodePosition(buf)
}

// InsertPosition appends a ticket position. Positions are never
// overwritten.
func (tx *Tx) InsertPosition(p *models.TicketPosition) error {
	b := tx.bucket(bucketPositions)
	if b.Get(p.Address[:]) != nil {
		return ErrExists
	}
	buf, err := encodePosition(p)
	if err != nil {
		return fmt.Errorf("encode ticket position %s: %w", p.Address, err)
	}
	return b.Put(p.Address.Bytes(), buf)
}

// ClaimPosition flips the claimed flag of the position at addr. It is the
// only mutation a stored position accepts.
func (tx *Tx) ClaimPosition(addr address.Address) (*models.TicketPosition, error) {
	p, err := tx.Position(addr)
	if err != nil {
		return nil, err
	}
	if p.Claimed {
		return nil, ErrAlreadyClaimed
	}
	p.Claimed = true
	buf, err := encodePosition(p)
	if err != nil {
		return nil, fmt.Errorf("encode ticket position %s: %w", p.Address, err)
	}
	if err := tx.bucket(bucketPositions).Put(addr.Bytes(), buf); err != nil {
		return nil, err
	}
	return p, nil
}

// Vault loads the vault stored at addr.
func (tx *Tx) Vault(addr address.Address) (*models.Vault, error) {
	buf := tx.bucket(bucketVaults).Get(addr[:])
	if buf == nil {
		return nil, ErrNotFound
	}
	return decodeVault(buf)
}

// PutVault creates or overwrites a vault.
func (tx *Tx) PutVault(v *models.Vault) error {
	buf, err := encodeVault(v)
	if err != nil {
		return fmt.Errorf("encode vault %d: %w", v.RoundNumber, err)
	}
	return tx.bucket(bucketVaults).Put(v.Address.Bytes(), buf)
}

// Profile loads the user profile stored at addr.
func (tx *Tx) Profile(addr address.Address) (*models.UserProfile, error) {
	buf := tx.bucket(bucketProfiles).Get(addr[:])
	if buf == nil {
		return nil, ErrNotFound
	}
	return decodeProfile(buf)
}

// PutProfile creates or overwrites a user profile.
func (tx *Tx) PutProfile(p *models.UserProfile) error {
	buf, err := encodeProfile(p)
	if err != nil {
		return fmt.Errorf("encode user profile %s: %w", p.User, err)
	}
	return tx.bucket(bucketProfiles).Put(p.Address.Bytes(), buf)
}

// FeeSink returns the running total owed to the admin wallet.
func (tx *Tx) FeeSink() uint64 {
	buf := tx.bucket(bucketMeta).Get(keyFeeSink)
	if len(buf) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(buf)
}

// PutFeeSink stores the fee sink total.
func (tx *Tx) PutFeeSink(total uint64) error {
	return tx.bucket(bucketMeta).Put(keyFeeSink, be64(total))
}

// AppendTransfer assigns the next journal sequence number to t and stores
// it.
func (tx *Tx) AppendTransfer(t *models.Transfer) error {
	b := tx.bucket(bucketTransfers)
	seq, err := b.NextSequence()
	if err != nil {
		return fmt.Errorf("next transfer sequence: %w", err)
	}
	t.Seq = seq
	buf, err := encodeTransfer(t)
	if err != nil {
		return fmt.Errorf("encode transfer %d: %w", seq, err)
	}
	return b.Put(be64(seq), buf)
}

// Transfers returns up to limit journal entries with a sequence number
// greater than after, in order.
func (tx *Tx) Transfers(after uint64, limit int) ([]models.Transfer, error) {
	var out []models.Transfer
	if after == math.MaxUint64 {
		return out, nil
	}
	c := tx.bucket(bucketTransfers).Cursor()
	for k, v := c.Seek(be64(after + 1)); k != nil && len(out) < limit; k, v = c.Next() {
		t, err := decodeTransfer(v)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}
