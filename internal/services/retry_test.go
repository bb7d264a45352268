package services

import (
	"context"
	"errors"
	"testing"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedBuyer struct {
	errs   []error
	rounds []uint64
}

func (b *scriptedBuyer) BuyTickets(_ context.Context, buyer address.Address, roundNumber uint64, count uint8) (*models.Receipt, error) {
	b.rounds = append(b.rounds, roundNumber)
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.Receipt{RoundNumber: roundNumber, Buyer: buyer, Count: uint32(count)}, nil
}

func TestRetryPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("retries once on the next round", func(t *testing.T) {
		b := &scriptedBuyer{errs: []error{ErrRoundExpired}}
		r, err := DefaultRetryPolicy().Buy(ctx, b, buyerA, 5, 2)
		require.NoError(t, err)
		assert.Equal(t, uint64(6), r.RoundNumber)
		assert.Equal(t, []uint64{5, 6}, b.rounds)
	})

	t.Run("gives up after the budget", func(t *testing.T) {
		b := &scriptedBuyer{errs: []error{ErrRoundExpired, ErrRoundExpired}}
		_, err := DefaultRetryPolicy().Buy(ctx, b, buyerA, 5, 2)
		assert.ErrorIs(t, err, ErrRoundExpired)
		assert.Equal(t, []uint64{5, 6}, b.rounds)
	})

	t.Run("other errors are final", func(t *testing.T) {
		b := &scriptedBuyer{errs: []error{ErrMaxTicketsReached}}
		_, err := DefaultRetryPolicy().Buy(ctx, b, buyerA, 5, 2)
		assert.ErrorIs(t, err, ErrMaxTicketsReached)
		assert.Equal(t, []uint64{5}, b.rounds)
	})

	t.Run("wrapped expiry still retries", func(t *testing.T) {
		p := RetryPolicy{MaxRetries: 3}
		assert.True(t, p.ShouldRetry(2, errors.Join(errors.New("remote"), ErrRoundExpired)))
		assert.False(t, p.ShouldRetry(3, ErrRoundExpired))
		assert.False(t, RetryPolicy{}.ShouldRetry(0, ErrRoundExpired))
	})
}
