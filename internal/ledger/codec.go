package ledger

import (
	"fmt"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/models"

	"go.dedis.ch/protobuf"
)

// On-disk records. Fields are kept to protobuf-friendly kinds so the
// encoding stays stable if the models grow convenience fields.

type roundRecord struct {
	Number          uint64
	Address         []byte
	Start           int64
	End             int64
	TotalSold       uint64
	HasWinningIndex bool
	WinningIndex    uint64
	Winner          []byte
	Status          uint32
	Bump            uint32
}

type positionRecord struct {
	Address     []byte
	Round       []byte
	RoundNumber uint64
	Buyer       []byte
	StartIndex  uint64
	Count       uint32
	Claimed     bool
	PurchasedAt int64
	Bump        uint32
}

type vaultRecord struct {
	Address     []byte
	RoundNumber uint64
	Balance     uint64
	Bump        uint32
}

type profileRecord struct {
	Address     []byte
	User        []byte
	Activated   bool
	ActivatedAt int64
	Bump        uint32
}

type transferRecord struct {
	Seq         uint64
	Kind        string
	From        []byte
	To          []byte
	Amount      uint64
	RoundNumber uint64
	Timestamp   int64
}

func encodeRound(r *models.Round) ([]byte, error) {
	rec := roundRecord{
		Number:    r.Number,
		Address:   r.Address.Bytes(),
		Start:     r.StartTimestamp,
		End:       r.EndTimestamp,
		TotalSold: r.TotalSold,
		Status:    uint32(r.Status),
		Bump:      uint32(r.Bump),
	}
	if r.WinningIndex != nil {
		rec.HasWinningIndex = true
		rec.WinningIndex = *r.WinningIndex
	}
	if r.Winner != nil {
		rec.Winner = r.Winner.Bytes()
	}
	return protobuf.Encode(&rec)
}

func decodeRound(buf []byte) (*models.Round, error) {
	var rec roundRecord
	if err := protobuf.Decode(buf, &rec); err != nil {
		return nil, fmt.Errorf("decode round: %w", err)
	}
	addr, err := address.FromBytes(rec.Address)
	if err != nil {
		return nil, fmt.Errorf("decode round: %w", err)
	}
	r := &models.Round{
		Number:         rec.Number,
		Address:        addr,
		StartTimestamp: rec.Start,
		EndTimestamp:   rec.End,
		TotalSold:      rec.TotalSold,
		Status:         models.RoundStatus(rec.Status),
		Bump:           uint8(rec.Bump),
	}
	if rec.HasWinningIndex {
		idx := rec.WinningIndex
		r.WinningIndex = &idx
	}
	if len(rec.Winner) > 0 {
		w, err := address.FromBytes(rec.Winner)
		if err != nil {
			return nil, fmt.Errorf("decode round winner: %w", err)
		}
		r.Winner = &w
	}
	return r, nil
}

func encodePosition(p *models.TicketPosition) ([]byte, error) {
	return protobuf.Encode(&positionRecord{
		Address:     p.Address.Bytes(),
		Round:       p.Round.Bytes(),
		RoundNumber: p.RoundNumber,
		Buyer:       p.Buyer.Bytes(),
		StartIndex:  p.StartIndex,
		Count:       p.Count,
		Claimed:     p.Claimed,
		PurchasedAt: p.PurchasedAt,
		Bump:        uint32(p.Bump),
	})
}

func decodePosition(buf []byte) (*models.TicketPosition, error) {
	var rec positionRecord
	if err := protobuf.Decode(buf, &rec); err != nil {
		return nil, fmt.Errorf("decode ticket position: %w", err)
	}
	addrs, err := toAddresses(rec.Address, rec.Round, rec.Buyer)
	if err != nil {
		return nil, fmt.Errorf("decode ticket position: %w", err)
	}
	return &models.TicketPosition{
		Address:     addrs[0],
		Round:       addrs[1],
		RoundNumber: rec.RoundNumber,
		Buyer:       addrs[2],
		StartIndex:  rec.StartIndex,
		Count:       rec.Count,
		Claimed:     rec.Claimed,
		PurchasedAt: rec.PurchasedAt,
		Bump:        uint8(rec.Bump),
	}, nil
}

func encodeVault(v *models.Vault) ([]byte, error) {
	return protobuf.Encode(&vaultRecord{
		Address:     v.Address.Bytes(),
		RoundNumber: v.RoundNumber,
		Balance:     v.Balance,
		Bump:        uint32(v.Bump),
	})
}

func decodeVault(buf []byte) (*models.Vault, error) {
	var rec vaultRecord
	if err := protobuf.Decode(buf, &rec); err != nil {
		return nil, fmt.Errorf("decode vault: %w", err)
	}
	addr, err := address.FromBytes(rec.Address)
	if err != nil {
		return nil, fmt.Errorf("decode vault: %w", err)
	}
	return &models.Vault{
		Address:     addr,
		RoundNumber: rec.RoundNumber,
		Balance:     rec.Balance,
		Bump:        uint8(rec.Bump),
	}, nil
}

func encodeProfile(p *models.UserProfile) ([]byte, error) {
	return protobuf.Encode(&profileRecord{
		Address:     p.Address.Bytes(),
		User:        p.User.Bytes(),
		Activated:   p.Activated,
		ActivatedAt: p.ActivatedAt,
		Bump:        uint32(p.Bump),
	})
}

func decodeProfile(buf []byte) (*models.UserProfile, error) {
	var rec profileRecord
	if err := protobuf.Decode(buf, &rec); err != nil {
		return nil, fmt.Errorf("decode user profile: %w", err)
	}
	addrs, err := toAddresses(rec.Address, rec.User)
	if err != nil {
		return nil, fmt.Errorf("decode user profile: %w", err)
	}
	return &models.UserProfile{
		Address:     addrs[0],
		User:        addrs[1],
		Activated:   rec.Activated,
		ActivatedAt: rec.ActivatedAt,
		Bump:        uint8(rec.Bump),
	}, nil
}

func encodeTransfer(t *models.Transfer) ([]byte, error) {
	return protobuf.Encode(&transferRecord{
		Seq:         t.Seq,
		Kind:        string(t.Kind),
		From:        t.From.Bytes(),
		To:          t.To.Bytes(),
		Amount:      t.Amount,
		RoundNumber: t.RoundNumber,
		Timestamp:   t.Timestamp,
	})
}

func decodeTransfer(buf []byte) (*models.Transfer, error) {
	var rec transferRecord
	if err := protobuf.Decode(buf, &rec); err != nil {
		return nil, fmt.Errorf("decode transfer: %w", err)
	}
	addrs, err := toAddresses(rec.From, rec.To)
	if err != nil {
		return nil, fmt.Errorf("decode transfer: %w", err)
	}
	return &models.Transfer{
		Seq:         rec.Seq,
		Kind:        models.TransferKind(rec.Kind),
		From:        addrs[0],
		To:          addrs[1],
		Amount:      rec.Amount,
		RoundNumber: rec.RoundNumber,
		Timestamp:   rec.Timestamp,
	}, nil
}

func toAddresses(raw ...[]byte) ([]address.Address, error) {
	out := make([]address.Address, len(raw))
	for i, b := range raw {
		a, err := address.FromBytes(b)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}
