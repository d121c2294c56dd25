package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakePruner) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

func TestRetentionJob_PruneUsesWindow(t *testing.T) {
	p := &fakePruner{n: 3}
	j, err := NewRetentionJob(p, 48*time.Hour, "@daily")
	require.NoError(t, err)
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }

	assert.Equal(t, int64(3), j.Prune(context.Background()))
	assert.Equal(t, now.Add(-48*time.Hour), p.cutoff)
}

func TestRetentionJob_PruneErrorIsSwallowed(t *testing.T) {
	j, err := NewRetentionJob(&fakePruner{err: errors.New("db down")}, time.Hour, "0 3 * * *")
	require.NoError(t, err)
	assert.Equal(t, int64(0), j.Prune(context.Background()))
}

func TestNewRetentionJob_Validation(t *testing.T) {
	_, err := NewRetentionJob(&fakePruner{}, 0, "@daily")
	assert.Error(t, err)
	_, err = NewRetentionJob(&fakePruner{}, time.Hour, "not a cron")
	assert.ErrorContains(t, err, "invalid retention schedule")
}

func TestRetentionJob_StartStop(t *testing.T) {
	j, err := NewRetentionJob(&fakePruner{}, time.Hour, "@hourly")
	require.NoError(t, err)
	j.Run()
	j.Stop()
}
