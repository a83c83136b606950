package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/SlashRelay/internal/storage"
)

func record(room string, i int) storage.Record {
	ts := time.Date(2024, 5, 1, 12, 0, i, 0, time.UTC)
	return storage.NewRecord(room, "alice", fmt.Sprintf("m%d", i), ts)
}

func texts(records []storage.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Text)
	}
	return out
}

func TestHistoryKeepsLatestCapacity(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	h := NewHistory(log, 3)

	for i := 1; i <= 5; i++ {
		require.NoError(t, h.Append(ctx, record("general", i)))
	}

	recent, err := h.Recent(ctx, "general", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m4", "m5"}, texts(recent))

	recent, err = h.Recent(ctx, "general", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m5"}, texts(recent))

	assert.Equal(t, 5, log.count("general"))
}

func TestHistoryRecentZero(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(newMemLog(), 3)
	require.NoError(t, h.Append(ctx, record("general", 1)))

	recent, err := h.Recent(ctx, "general", 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestHistorySeedsFromLogOnce(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	for i := 1; i <= 4; i++ {
		require.NoError(t, log.Append(ctx, record("general", i)))
	}

	h := NewHistory(log, 2)
	recent, err := h.Recent(ctx, "general", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m4"}, texts(recent))

	require.NoError(t, h.Append(ctx, record("general", 5)))
	recent, err = h.Recent(ctx, "general", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m5"}, texts(recent))
	assert.Equal(t, 1, log.tails)
}

func TestHistorySeedsBeforeFirstAppend(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	require.NoError(t, log.Append(ctx, record("general", 1)))

	h := NewHistory(log, 5)
	require.NoError(t, h.Append(ctx, record("general", 2)))

	recent, err := h.Recent(ctx, "general", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, texts(recent))
}

func TestHistoryAppendFailureLeavesCache(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	h := NewHistory(log, 5)
	require.NoError(t, h.Append(ctx, record("general", 1)))

	log.failAppend = true
	err := h.Append(ctx, record("general", 2))
	require.ErrorIs(t, err, errDiskFull)

	recent, err := h.Recent(ctx, "general", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, texts(recent))
}

func TestHistorySeedFailureRetries(t *testing.T) {
	ctx := context.Background()
	log := newMemLog()
	require.NoError(t, log.Append(ctx, record("general", 1)))
	log.failTail = true

	h := NewHistory(log, 5)
	require.NoError(t, h.Append(ctx, record("general", 2)))
	recent, err := h.Recent(ctx, "general", 5)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Empty(t, recent)

	log.failTail = false
	recent, err = h.Recent(ctx, "general", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, texts(recent))
}

func TestHistoryRoomsAreIndependent(t *testing.T) {
	ctx := context.Background()
	h := NewHistory(newMemLog(), 2)
	require.NoError(t, h.Append(ctx, record("a", 1)))
	require.NoError(t, h.Append(ctx, record("b", 2)))

	recent, err := h.Recent(ctx, "a", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, texts(recent))
}
