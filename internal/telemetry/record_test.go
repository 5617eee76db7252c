package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecutionRecordStampsCurrentTime(t *testing.T) {
	before := time.Now().UTC()
	rec := NewExecutionRecord(42)
	after := time.Now().UTC()

	assert.EqualValues(t, 42, rec.PID)
	ts, err := time.Parse(time.RFC3339, rec.Timestamp)
	require.NoError(t, err)
	assert.False(t, ts.Before(before.Add(-time.Second)))
	assert.False(t, ts.After(after.Add(time.Second)))
}

func TestWithHelpersChainAndDoNotMutateOriginal(t *testing.T) {
	base := NewExecutionRecord(1)
	decorated := base.WithCPUPercent(5).WithMemRSSKB(2048).WithDurationMs(12).WithExitCode(1)

	assert.Nil(t, base.CPUPercent, "With* methods must return a copy, not mutate the receiver")
	require.NotNil(t, decorated.CPUPercent)
	assert.Equal(t, float32(5), *decorated.CPUPercent)
	assert.Equal(t, uint64(2048), *decorated.MemRSSKB)
	assert.Equal(t, uint64(12), *decorated.DurationMs)
	assert.Equal(t, int32(1), *decorated.ExitCode)
}

func TestUnixTimestampRejectsMalformedTimestamp(t *testing.T) {
	rec := ExecutionRecord{Timestamp: "not-a-timestamp", PID: 1}
	_, ok := rec.UnixTimestamp()
	assert.False(t, ok)
}

func TestUnixTimestampRoundTrips(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	rec := ExecutionRecord{Timestamp: now.Format(time.RFC3339), PID: 1}
	ts, ok := rec.UnixTimestamp()
	require.True(t, ok)
	assert.Equal(t, now.Unix(), ts)
}
