package models

import "lottery-ledger/internal/address"

// Receipt is returned to a buyer after a purchase. Keeping it is the
// buyer's responsibility: the ledger has no index of positions by buyer.
type Receipt struct {
	RoundNumber uint64          `json:"roundNumber"`
	Round       address.Address `json:"round"`
	Address     address.Address `json:"address"`
	Buyer       address.Address `json:"buyer"`
	StartIndex  uint64          `json:"startIndex"`
	Count       uint32          `json:"count"`
	Cost        uint64          `json:"cost"`
}

// Payout describes a successful claim and the round it opened.
type Payout struct {
	RoundNumber uint64          `json:"roundNumber"`
	Winner      address.Address `json:"winner"`
	Position    address.Address `json:"position"`
	Amount      uint64          `json:"amount"`
	NextRound   uint64          `json:"nextRound"`
}

// TransferKind names why a balance moved.
type TransferKind string

const (
	TransferTicketVault   TransferKind = "ticket_vault"
	TransferTicketFee     TransferKind = "ticket_fee"
	TransferActivationFee TransferKind = "activation_fee"
	TransferPrizePayout   TransferKind = "prize_payout"
)

// Transfer is one journal entry for the payment rail to settle.
type Transfer struct {
	Seq         uint64          `json:"seq"`
	Kind        TransferKind    `json:"kind"`
	From        address.Address `json:"from"`
	To          address.Address `json:"to"`
	Amount      uint64          `json:"amount"`
	RoundNumber uint64          `json:"roundNumber,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}
