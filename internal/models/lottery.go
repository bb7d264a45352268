package models

import (
	"fmt"

	"lottery-ledger/internal/address"
)

// RoundStatus is the lifecycle state of a round.
type RoundStatus uint8

const (
	RoundActive RoundStatus = iota
	RoundEnded
	RoundClaimed
)

var roundStatusNames = [...]string{"active", "ended", "claimed"}

func (s RoundStatus) String() string {
	if int(s) < len(roundStatusNames) {
		return roundStatusNames[s]
	}
	return fmt.Sprintf("RoundStatus(%d)", uint8(s))
}

func (s RoundStatus) MarshalText() ([]byte, error) {
	if int(s) >= len(roundStatusNames) {
		return nil, fmt.Errorf("unknown round status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *RoundStatus) UnmarshalText(text []byte) error {
	for i, name := range roundStatusNames {
		if name == string(text) {
			*s = RoundStatus(i)
			return nil
		}
	}
	return fmt.Errorf("unknown round status %q", string(text))
}

// Round is one cycle of the lottery. Timestamps are unix seconds.
type Round struct {
	Number         uint64           `json:"roundNumber"`
	Address        address.Address  `json:"address"`
	StartTimestamp int64            `json:"startTimestamp"`
	EndTimestamp   int64            `json:"endTimestamp"`
	TotalSold      uint64           `json:"totalSold"`
	WinningIndex   *uint64          `json:"winningIndex"`
	Winner         *address.Address `json:"winner,omitempty"`
	Status         RoundStatus      `json:"status"`
	Bump           uint8            `json:"bump"`
}

// NewRound returns an Active round starting at now.
func NewRound(number uint64, addr address.Address, bump uint8, now, duration int64) *Round {
	return &Round{
		Number:         number,
		Address:        addr,
		StartTimestamp: now,
		EndTimestamp:   now + duration,
		Status:         RoundActive,
		Bump:           bump,
	}
}

// Expired reports whether the round deadline has passed at now.
func (r *Round) Expired(now int64) bool { return now >= r.EndTimestamp }

// Extend restarts the round window at now. Only rounds without sales are
// extended.
func (r *Round) Extend(now, duration int64) {
	r.StartTimestamp = now
	r.EndTimestamp = now + duration
}

// End freezes the round with its winning index.
func (r *Round) End(winningIndex uint64) {
	idx := winningIndex
	r.WinningIndex = &idx
	r.Status = RoundEnded
}

// MarkClaimed closes the round in favour of winner.
func (r *Round) MarkClaimed(winner address.Address) {
	w := winner
	r.Winner = &w
	r.Status = RoundClaimed
}

// TicketPosition is the proof of purchase for one BuyTickets call. It owns
// the half-open index range [StartIndex, StartIndex+Count).
type TicketPosition struct {
	Address     address.Address `json:"address"`
	Round       address.Address `json:"round"`
	RoundNumber uint64          `json:"roundNumber"`
	Buyer       address.Address `json:"buyer"`
	StartIndex  uint64          `json:"startIndex"`
	Count       uint32          `json:"count"`
	Claimed     bool            `json:"claimed"`
	PurchasedAt int64           `json:"purchasedAt"`
	Bump        uint8           `json:"bump"`
}

// EndIndex returns the exclusive end of the position range.
func (p *TicketPosition) EndIndex() uint64 { return p.StartIndex + uint64(p.Count) }

// Contains reports whether index falls inside the position range.
func (p *TicketPosition) Contains(index uint64) bool {
	return index >= p.StartIndex && index < p.EndIndex()
}

// Vault holds the pooled prize balance of one round.
type Vault struct {
	Address     address.Address `json:"address"`
	RoundNumber uint64          `json:"roundNumber"`
	Balance     uint64          `json:"balance"`
	Bump        uint8           `json:"bump"`
}

// UserProfile gates purchases behind a one-time activation.
type UserProfile struct {
	Address     address.Address `json:"address"`
	User        address.Address `json:"user"`
	Activated   bool            `json:"activated"`
	ActivatedAt int64           `json:"activatedAt"`
	Bump        uint8           `json:"bump"`
}
