package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efreitasn/cogexchange/internal/domain"
)

func newTestAggregator(cooldown time.Duration) (*Aggregator, *time.Time) {
	a := New([]string{"STMP", "GEAR"}, cooldown, 0.5)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return clock }
	return a, &clock
}

func TestRecord_CooldownPerUser(t *testing.T) {
	a, clock := newTestAggregator(30 * time.Second)

	ok, err := a.Record("u1", "STMP")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = a.Record("u1", "STMP")
	assert.False(t, ok, "second message inside cooldown must not count")

	ok, _ = a.Record("u2", "STMP")
	assert.True(t, ok, "cooldown is per user")

	*clock = clock.Add(31 * time.Second)
	ok, _ = a.Record("u1", "GEAR")
	assert.True(t, ok)

	assert.Equal(t, map[string]int64{"STMP": 2, "GEAR": 1}, a.Scores())
}

func TestRecord_UnknownSymbol(t *testing.T) {
	a, _ := newTestAggregator(0)
	_, err := a.Record("u1", "NOPE")
	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)
}

func TestRecord_ZeroCooldownCountsEveryMessage(t *testing.T) {
	a, _ := newTestAggregator(0)
	for i := 0; i < 5; i++ {
		ok, err := a.Record("u1", "STMP")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, int64(5), a.Scores()["STMP"])
}

func TestScore_DecaysOnRead(t *testing.T) {
	a, _ := newTestAggregator(0)
	for i := 0; i < 9; i++ {
		_, _ = a.Record("u1", "STMP")
	}

	ctx := context.Background()
	got, err := a.Score(ctx, "STMP", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got)

	got, _ = a.Score(ctx, "STMP", time.Minute)
	assert.Equal(t, int64(4), got) // 4.5 floors to 4

	got, _ = a.Score(ctx, "GEAR", time.Minute)
	assert.Zero(t, got, "zero activity stays zero")

	_, err = a.Score(ctx, "NOPE", time.Minute)
	assert.ErrorIs(t, err, domain.ErrInstrumentNotFound)
}

func TestScore_CancelledContext(t *testing.T) {
	a, _ := newTestAggregator(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Score(ctx, "STMP", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScore_PrunesIdleUsers(t *testing.T) {
	a, clock := newTestAggregator(time.Second)
	_, _ = a.Record("u1", "STMP")
	require.Len(t, a.users, 1)

	*clock = clock.Add(time.Minute)
	_, _ = a.Score(context.Background(), "STMP", time.Minute)
	assert.Empty(t, a.users)
}

func TestReset(t *testing.T) {
	a, _ := newTestAggregator(0)
	_, _ = a.Record("u1", "STMP")
	a.Reset()
	assert.Zero(t, a.Scores()["STMP"])
}

func TestTags(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{"go [steam] go", []string{"STEAM"}},
		{"[gear] and [ stmp ]", []string{"GEAR", "STMP"}},
		{"[[L]] wins", []string{"L"}},
		{"no tags here", nil},
		{"[]", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tags(tt.content), tt.content)
	}
}
