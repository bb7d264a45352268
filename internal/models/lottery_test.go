package models

import (
	"encoding/json"
	"testing"

	"lottery-ledger/internal/address"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundLifecycle(t *testing.T) {
	r := NewRound(3, address.Zero, 254, 1000, 60)
	assert.Equal(t, RoundActive, r.Status)
	assert.Equal(t, int64(1060), r.EndTimestamp)
	assert.False(t, r.Expired(1059))
	assert.True(t, r.Expired(1060))

	r.Extend(2000, 60)
	assert.Equal(t, int64(2000), r.StartTimestamp)
	assert.Equal(t, int64(2060), r.EndTimestamp)
	assert.Nil(t, r.WinningIndex)

	r.End(4)
	require.NotNil(t, r.WinningIndex)
	assert.Equal(t, uint64(4), *r.WinningIndex)
	assert.Equal(t, RoundEnded, r.Status)

	winner := address.Address{1}
	r.MarkClaimed(winner)
	assert.Equal(t, RoundClaimed, r.Status)
	assert.Equal(t, winner, *r.Winner)
}

func TestTicketPositionContains(t *testing.T) {
	p := &TicketPosition{StartIndex: 3, Count: 2}
	assert.Equal(t, uint64(5), p.EndIndex())
	assert.False(t, p.Contains(2))
	assert.True(t, p.Contains(3))
	assert.True(t, p.Contains(4))
	assert.False(t, p.Contains(5))
}

func TestRoundStatusText(t *testing.T) {
	buf, err := json.Marshal(map[string]RoundStatus{"s": RoundEnded})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"ended"}`, string(buf))

	var s RoundStatus
	require.NoError(t, s.UnmarshalText([]byte("claimed")))
	assert.Equal(t, RoundClaimed, s)
	assert.Error(t, s.UnmarshalText([]byte("open")))
	assert.Equal(t, "RoundStatus(9)", RoundStatus(9).String())
}
