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

// maxFinalizeScan bounds how many Active rounds one FinalizeExpired pass
// looks at.
const maxFinalizeScan = 16

// FinalizeRound closes round roundNumber once its deadline has passed. A
// round without sales is extended by one duration instead of ending. It is
// permissionless and idempotent: a round that already ended or was claimed
// is returned unchanged with no error.
func (s *LotteryService) FinalizeRound(ctx context.Context, roundNumber uint64) (*models.Round, error) {
	roundAddr, _ := s.resolver.Round(roundNumber)
	now := s.now()

	var (
		round      *models.Round
		transition string
	)
	err := s.store.Update(ctx, func(tx *ledger.Tx) error {
		r, err := tx.Round(roundAddr)
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrRoundNotActive
		}
		if err != nil {
			return err
		}
		round = r

		if r.Status != models.RoundActive {
			return nil
		}
		if !r.Expired(now.Unix()) {
			return ErrRoundNotExpired
		}

		if r.TotalSold == 0 {
			r.Extend(now.Unix(), s.params.durationSeconds())
			transition = "extended"
			return tx.UpdateRound(r)
		}

		idx, err := s.drawer.Draw(DrawInput{
			RoundNumber:  r.Number,
			RoundAddress: r.Address,
			TotalSold:    r.TotalSold,
			Time:         now,
		})
		if err != nil {
			return err
		}
		if idx >= r.TotalSold {
			return fmt.Errorf("draw returned index %d outside [0, %d)", idx, r.TotalSold)
		}
		r.End(idx)
		transition = "ended"
		return tx.UpdateRound(r)
	})
	if err != nil {
		return nil, err
	}

	switch transition {
	case "extended":
		logger.Infof("Round %d had no sales, extended until %d", round.Number, round.EndTimestamp)
	case "ended":
		logger.Infof("Round %d ended with %d tickets, winning index %d", round.Number, round.TotalSold, *round.WinningIndex)
	}
	return round, nil
}

// FinalizeExpired finalizes every Active round whose deadline has passed and
// returns the rounds it touched.
func (s *LotteryService) FinalizeExpired(ctx context.Context) ([]*models.Round, error) {
	var candidates []*models.Round
	err := s.store.View(ctx, func(tx *ledger.Tx) error {
		var err error
		candidates, err = tx.ActiveRounds(maxFinalizeScan)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	var done []*models.Round
	var errs []error
	for _, c := range candidates {
		if !c.Expired(now) {
			continue
		}
		r, err := s.FinalizeRound(ctx, c.Number)
		if err != nil {
			// Another trigger may have run first; only report real failures.
			if !errors.Is(err, ErrRoundNotExpired) {
				errs = append(errs, fmt.Errorf("finalize round %d: %w", c.Number, err))
			}
			continue
		}
		done = append(done, r)
	}
	return done, errors.Join(errs...)
}

// ClaimPrize pays the vault of an ended round to the holder of the winning
// position and opens the next round in the same transaction.
func (s *LotteryService) ClaimPrize(ctx context.Context, claimant address.Address, roundNumber uint64, positionAddr address.Address) (*models.Payout, error) {
	roundAddr, _ := s.resolver.Round(roundNumber)
	nextAddr, nextBump := s.resolver.Round(roundNumber + 1)
	now := s.now().Unix()

	var (
		payout *models.Payout
		opened bool
	)
	err := s.store.Update(ctx, func(tx *ledger.Tx) error {
		round, err := tx.Round(roundAddr)
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrRoundNotEnded
		}
		if err != nil {
			return err
		}
		switch round.Status {
		case models.RoundActive:
			return ErrRoundNotEnded
		case models.RoundClaimed:
			return ErrNoPrize
		}
		if round.WinningIndex == nil {
			return ErrNoWinningNumber
		}

		position, err := tx.Position(positionAddr)
		if errors.Is(err, ledger.ErrNotFound) {
			return ErrNotWinner
		}
		if err != nil {
			return err
		}
		if position.Round != round.Address {
			return ErrNotWinner
		}
		if position.Buyer != claimant {
			return ErrInvalidWinner
		}
		if position.Claimed {
			return ErrNoPrize
		}
		if !position.Contains(*round.WinningIndex) {
			return ErrNotWinner
		}

		amount, err := s.drainVault(tx, round, models.Transfer{
			To:          position.Buyer,
			RoundNumber: round.Number,
			Timestamp:   now,
		})
		if err != nil {
			return err
		}
		if _, err := tx.ClaimPosition(position.Address); err != nil {
			return err
		}
		round.MarkClaimed(position.Buyer)
		if err := tx.UpdateRound(round); err != nil {
			return err
		}

		// The successor may already exist when buyers moved on after the
		// deadline; it is never reset.
		if _, err := tx.Round(nextAddr); errors.Is(err, ledger.ErrNotFound) {
			if _, err := s.createRound(tx, roundNumber+1, nextAddr, nextBump, now); err != nil {
				return err
			}
			opened = true
		} else if err != nil {
			return err
		}

		payout = &models.Payout{
			RoundNumber: round.Number,
			Winner:      position.Buyer,
			Position:    position.Address,
			Amount:      amount,
			NextRound:   roundNumber + 1,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("Round %d claimed by %s for %d", roundNumber, payout.Winner, payout.Amount)
	if opened {
		logger.Infof("Round %d opened by claim of round %d", roundNumber+1, roundNumber)
	}
	return payout, nil
}
