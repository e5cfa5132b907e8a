package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchStore struct {
	remaining int64
	cutoffs   []time.Time
	failAt    int
}

func (b *batchStore) DeleteExpiredQuests(ctx context.Context, before time.Time, limit int) (int64, error) {
	b.cutoffs = append(b.cutoffs, before)
	if b.failAt > 0 && len(b.cutoffs) == b.failAt {
		return 0, errors.New("db gone")
	}
	n := int64(limit)
	if b.remaining < n {
		n = b.remaining
	}
	b.remaining -= n
	return n, nil
}

func fixedSweeper(store QuestStore, batch int, retention time.Duration) *QuestSweeper {
	s := NewQuestSweeper(store, batch, retention)
	s.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSweepExpiredQuests_DrainsInBatches(t *testing.T) {
	store := &batchStore{remaining: 25}
	s := fixedSweeper(store, 10, time.Hour)

	n, err := s.SweepExpiredQuests(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(25), n)
	assert.Len(t, store.cutoffs, 3)
	assert.Equal(t, time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC), store.cutoffs[0])
}

func TestSweepExpiredQuests_ExactMultipleNeedsOneEmptyBatch(t *testing.T) {
	store := &batchStore{remaining: 20}
	s := fixedSweeper(store, 10, 0)

	n, err := s.SweepExpiredQuests(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(20), n)
	assert.Len(t, store.cutoffs, 3)
}

func TestSweepExpiredQuests_StopsOnError(t *testing.T) {
	store := &batchStore{remaining: 100, failAt: 2}
	s := fixedSweeper(store, 10, 0)

	n, err := s.SweepExpiredQuests(context.Background())

	require.Error(t, err)
	assert.Equal(t, int64(10), n)
}

func TestSweepExpiredQuests_SkipsWhenAlreadyRunning(t *testing.T) {
	store := &batchStore{remaining: 5}
	s := fixedSweeper(store, 10, 0)
	s.running = true

	n, err := s.SweepExpiredQuests(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.cutoffs)
}
