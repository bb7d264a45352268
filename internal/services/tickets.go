package services

import (
	"context"
	"errors"
	"fmt"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/ledger"
	"lottery-ledger/internal/models"

	"github.com/google/logger"
)

// BuyTickets allocates count tickets in round roundNumber to buyer. The
// round is created if it does not exist and its predecessor does, and it
// stops selling once its successor exists. The position starts at the
// round's totalSold read inside the same transaction that increments it, so
// concurrent buyers never share a range or an address.
func (s *LotteryService) BuyTickets(ctx context.Context, buyer address.Address, roundNumber uint64, count uint8) (*models.Receipt, error) {
	if count == 0 || count > s.params.MaxTicketsPerTx {
		return nil, ErrInvalidTicketCount
	}
	if roundNumber == 0 {
		return nil, ErrRoundNotActive
	}

	roundAddr, roundBump := s.resolver.Round(roundNumber)
	profileAddr, _ := s.resolver.UserProfile(buyer)
	now := s.now().Unix()

	var (
		receipt *models.Receipt
		opened  bool
	)
	err := s.store.Update(ctx, func(tx *ledger.Tx) error {
		profile, err := tx.Profile(profileAddr)
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			return ErrUserNotActivated
		case err != nil:
			return err
		case !profile.Activated:
			return ErrUserNotActivated
		}

		round, err := tx.Round(roundAddr)
		if errors.Is(err, ledger.ErrNotFound) {
			round, err = s.openRound(tx, roundNumber, roundAddr, roundBump, now)
			opened = err == nil
		}
		if err != nil {
			return err
		}

		if round.Status != models.RoundActive {
			return ErrRoundNotActive
		}
		// Once the successor is open this round only awaits settlement,
		// even if finalization extended its deadline.
		if _, err := tx.RoundByNumber(roundNumber + 1); err == nil {
			return ErrRoundNotActive
		} else if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		if round.Expired(now) {
			return ErrRoundExpired
		}
		total, err := addU64(round.TotalSold, uint64(count))
		if err != nil {
			return err
		}
		if total > s.params.PoolSize {
			return ErrMaxTicketsReached
		}

		startIndex := round.TotalSold
		posAddr, posBump := s.resolver.TicketPosition(round.Address, buyer, startIndex)
		position := &models.TicketPosition{
			Address:     posAddr,
			Round:       round.Address,
			RoundNumber: round.Number,
			Buyer:       buyer,
			StartIndex:  startIndex,
			Count:       uint32(count),
			PurchasedAt: now,
			Bump:        posBump,
		}
		if err := tx.InsertPosition(position); err != nil {
			return fmt.Errorf("insert ticket position %s: %w", posAddr, err)
		}

		cost, err := s.creditPurchase(tx, round, models.Transfer{
			From:        buyer,
			RoundNumber: round.Number,
			Timestamp:   now,
		}, uint64(count))
		if err != nil {
			return err
		}

		round.TotalSold = total
		if err := tx.UpdateRound(round); err != nil {
			return err
		}

		receipt = &models.Receipt{
			RoundNumber: round.Number,
			Round:       round.Address,
			Address:     posAddr,
			Buyer:       buyer,
			StartIndex:  startIndex,
			Count:       uint32(count),
			Cost:        cost,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opened {
		logger.Infof("Round %d opened by first purchase", roundNumber)
	}
	logger.Infof("Round %d: %s bought tickets [%d, %d)", roundNumber, buyer, receipt.StartIndex, receipt.StartIndex+uint64(receipt.Count))
	return receipt, nil
}

// openRound creates round n and its empty vault. Round 1 may always be
// opened; later rounds only once their predecessor exists and no longer
// sells tickets, so round numbers stay contiguous and at most one round is
// open for sale.
func (s *LotteryService) openRound(tx *ledger.Tx, n uint64, addr address.Address, bump uint8, now int64) (*models.Round, error) {
	if n > 1 {
		prev, err := tx.RoundByNumber(n - 1)
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrRoundNotActive
		}
		if err != nil {
			return nil, err
		}
		if prev.Status == models.RoundActive && !prev.Expired(now) {
			return nil, ErrRoundNotActive
		}
	}
	return s.createRound(tx, n, addr, bump, now)
}

// createRound inserts round n as Active starting at now, with an empty
// vault.
func (s *LotteryService) createRound(tx *ledger.Tx, n uint64, addr address.Address, bump uint8, now int64) (*models.Round, error) {
	round := models.NewRound(n, addr, bump, now, s.params.durationSeconds())
	if err := tx.InsertRound(round); err != nil {
		return nil, fmt.Errorf("insert round %d: %w", n, err)
	}
	vault, err := s.loadVault(tx, n)
	if err != nil {
		return nil, err
	}
	if err := tx.PutVault(vault); err != nil {
		return nil, err
	}
	return round, nil
}
