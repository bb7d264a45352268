package services

import (
	"context"
	"errors"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/models"

	"github.com/google/logger"
)

// TicketBuyer is anything that can submit a purchase: the service itself or
// a remote client.
type TicketBuyer interface {
	BuyTickets(ctx context.Context, buyer address.Address, roundNumber uint64, count uint8) (*models.Receipt, error)
}

// RetryPolicy decides how a purchase that lost the race against a round
// deadline is resubmitted. Each retry targets the next round number; the
// failed attempt left no state behind, so nothing is charged twice.
type RetryPolicy struct {
	MaxRetries int
}

// DefaultRetryPolicy retries once against roundNumber+1.
func DefaultRetryPolicy() RetryPolicy { return RetryPolicy{MaxRetries: 1} }

// ShouldRetry reports whether attempt (zero based) failing with err may be
// retried.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	return attempt < p.MaxRetries && errors.Is(err, ErrRoundExpired)
}

// Buy submits the purchase through b and applies the policy on expiry.
func (p RetryPolicy) Buy(ctx context.Context, b TicketBuyer, buyer address.Address, roundNumber uint64, count uint8) (*models.Receipt, error) {
	for attempt := 0; ; attempt++ {
		receipt, err := b.BuyTickets(ctx, buyer, roundNumber, count)
		if err == nil {
			return receipt, nil
		}
		if !p.ShouldRetry(attempt, err) {
			return nil, err
		}
		logger.Infof("Round %d expired before purchase, retrying with round %d", roundNumber, roundNumber+1)
		roundNumber++
	}
}
