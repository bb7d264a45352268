package ledger

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoundRecords(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := models.NewRound(1, address.Address{1}, 255, 100, 60)

	require.NoError(t, s.Update(ctx, func(tx *Tx) error { return tx.InsertRound(r) }))

	t.Run("insert is not repeatable", func(t *testing.T) {
		err := s.Update(ctx, func(tx *Tx) error { return tx.InsertRound(r) })
		assert.ErrorIs(t, err, ErrExists)
	})

	t.Run("lookup by address and number", func(t *testing.T) {
		require.NoError(t, s.View(ctx, func(tx *Tx) error {
			got, err := tx.Round(r.Address)
			require.NoError(t, err)
			assert.Equal(t, r, got)

			byNum, err := tx.RoundByNumber(1)
			require.NoError(t, err)
			assert.Equal(t, r, byNum)

			_, err = tx.RoundByNumber(2)
			assert.ErrorIs(t, err, ErrNotFound)
			return nil
		}))
	})

	t.Run("winning index and winner survive encoding", func(t *testing.T) {
		r.TotalSold = 5
		r.End(0)
		r.MarkClaimed(address.Address{9})
		require.NoError(t, s.Update(ctx, func(tx *Tx) error { return tx.UpdateRound(r) }))
		require.NoError(t, s.View(ctx, func(tx *Tx) error {
			got, err := tx.Round(r.Address)
			require.NoError(t, err)
			require.NotNil(t, got.WinningIndex)
			assert.Equal(t, uint64(0), *got.WinningIndex)
			assert.Equal(t, address.Address{9}, *got.Winner)
			assert.Equal(t, models.RoundClaimed, got.Status)
			return nil
		}))
	})

	t.Run("update requires an indexed round", func(t *testing.T) {
		ghost := models.NewRound(7, address.Address{7}, 250, 0, 60)
		err := s.Update(ctx, func(tx *Tx) error { return tx.UpdateRound(ghost) })
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestActiveRoundIsDerived(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		_, err := tx.ActiveRound()
		assert.ErrorIs(t, err, ErrNotFound)
		_, ok := tx.LatestRoundNumber()
		assert.False(t, ok)
		return nil
	}))

	r1 := models.NewRound(1, address.Address{1}, 255, 0, 60)
	r1.TotalSold = 1
	r1.End(0)
	r1.MarkClaimed(address.Address{5})
	r2 := models.NewRound(2, address.Address{2}, 255, 60, 60)
	r3 := models.NewRound(3, address.Address{3}, 255, 120, 60)
	r3.TotalSold = 2
	r3.End(1)

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		for _, r := range []*models.Round{r1, r2, r3} {
			if err := tx.InsertRound(r); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		latest, ok := tx.LatestRoundNumber()
		assert.True(t, ok)
		assert.Equal(t, uint64(3), latest)

		active, err := tx.ActiveRound()
		require.NoError(t, err)
		assert.Equal(t, uint64(2), active.Number)

		all, err := tx.ActiveRounds(10)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		return nil
	}))
}

func TestActiveRoundsSkipsClaimed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r1 := models.NewRound(1, address.Address{1}, 255, 0, 60)
	r1.TotalSold = 3
	r2 := models.NewRound(2, address.Address{2}, 255, 60, 60)
	r2.TotalSold = 1
	r2.End(0)
	r2.MarkClaimed(address.Address{5})
	r3 := models.NewRound(3, address.Address{3}, 255, 120, 60)

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		for _, r := range []*models.Round{r1, r2, r3} {
			if err := tx.InsertRound(r); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		all, err := tx.ActiveRounds(10)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, uint64(3), all[0].Number)
		assert.Equal(t, uint64(1), all[1].Number)

		one, err := tx.ActiveRounds(1)
		require.NoError(t, err)
		require.Len(t, one, 1)
		assert.Equal(t, uint64(3), one[0].Number)
		return nil
	}))
}

func TestPositionsAreAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := &models.TicketPosition{
		Address:    address.Address{4},
		Round:      address.Address{1},
		Buyer:      address.Address{2},
		StartIndex: 3,
		Count:      2,
	}

	require.NoError(t, s.Update(ctx, func(tx *Tx) error { return tx.InsertPosition(p) }))

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.InsertPosition(&models.TicketPosition{Address: p.Address, Count: 9})
	})
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		claimed, err := tx.ClaimPosition(p.Address)
		require.NoError(t, err)
		assert.True(t, claimed.Claimed)
		return nil
	}))

	err = s.Update(ctx, func(tx *Tx) error {
		_, err := tx.ClaimPosition(p.Address)
		return err
	})
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		got, err := tx.Position(p.Address)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), got.StartIndex)
		assert.Equal(t, uint32(2), got.Count)
		assert.True(t, got.Claimed)
		return nil
	}))
}

func TestFailedUpdateRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	v := &models.Vault{Address: address.Address{8}, RoundNumber: 1, Balance: 10}

	err := s.Update(ctx, func(tx *Tx) error {
		require.NoError(t, tx.PutVault(v))
		require.NoError(t, tx.PutFeeSink(99))
		return ErrExists
	})
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		_, err := tx.Vault(v.Address)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Zero(t, tx.FeeSink())
		return nil
	}))
}

func TestTransferJournal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *Tx) error {
		for i := 0; i < 5; i++ {
			err := tx.AppendTransfer(&models.Transfer{
				Kind:   models.TransferTicketVault,
				From:   address.Address{1},
				To:     address.Address{2},
				Amount: uint64(i + 1),
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(tx *Tx) error {
		first, err := tx.Transfers(0, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)
		assert.Equal(t, uint64(1), first[0].Seq)
		assert.Equal(t, uint64(2), first[1].Seq)

		rest, err := tx.Transfers(2, 10)
		require.NoError(t, err)
		require.Len(t, rest, 3)
		assert.Equal(t, uint64(5), rest[2].Amount)
		assert.Equal(t, models.TransferTicketVault, rest[2].Kind)
		return nil
	}))
}

func TestCancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Update(ctx, func(tx *Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteSnapshot(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Update(context.Background(), func(tx *Tx) error {
		return tx.PutFeeSink(42)
	}))

	var buf bytes.Buffer
	n, err := s.WriteSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Positive(t, n)
}
