package workers

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"lottery-ledger/internal/backup"
	"lottery-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFinalizer struct {
	calls  atomic.Int32
	rounds []*models.Round
	err    error
}

func (f *countingFinalizer) FinalizeExpired(context.Context) ([]*models.Round, error) {
	f.calls.Add(1)
	return f.rounds, f.err
}

type countingUploader struct{ calls atomic.Int32 }

func (u *countingUploader) Upload(context.Context, backup.Snapshotter, time.Time) (string, error) {
	u.calls.Add(1)
	return "key", nil
}

type nopSnapshot struct{}

func (nopSnapshot) WriteSnapshot(io.Writer) (int64, error) { return 0, nil }

func TestFinalizeOnce(t *testing.T) {
	f := &countingFinalizer{rounds: []*models.Round{{Number: 1, Status: models.RoundEnded}}}
	assert.Equal(t, 1, FinalizeOnce(context.Background(), f))

	f.err = errors.New("disk full")
	f.rounds = nil
	assert.Zero(t, FinalizeOnce(context.Background(), f))
	assert.Equal(t, int32(2), f.calls.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Zero(t, FinalizeOnce(ctx, f))
	assert.Equal(t, int32(2), f.calls.Load(), "cancelled context skips the pass")
}

func TestSchedulerRunsJobs(t *testing.T) {
	s, err := NewScheduler()
	require.NoError(t, err)

	f := &countingFinalizer{}
	u := &countingUploader{}
	ctx := context.Background()
	require.NoError(t, s.AddFinalizer(ctx, f, 20*time.Millisecond))
	require.NoError(t, s.AddSnapshots(ctx, u, nopSnapshot{}, 20*time.Millisecond))

	s.Start()
	assert.Eventually(t, func() bool {
		return f.calls.Load() >= 2 && u.calls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())
}
