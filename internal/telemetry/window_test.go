package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float32) *float32 { return &f }
func uintPtr(u uint64) *uint64    { return &u }

func TestWindowStatsAddRecordTracksAveragesAndPeaks(t *testing.T) {
	var w WindowStats
	w.AddRecord(ExecutionRecord{CPUPercent: floatPtr(10), MemRSSKB: uintPtr(1000), DurationMs: uintPtr(100)})
	w.AddRecord(ExecutionRecord{CPUPercent: floatPtr(20), MemRSSKB: uintPtr(3000), DurationMs: uintPtr(300)})

	assert.True(t, w.HasSamples())
	assert.EqualValues(t, 2, w.ExecCount)

	avgCPU, ok := w.AvgCPUPercent()
	require.True(t, ok)
	assert.InDelta(t, 15.0, avgCPU, 0.01)

	peakCPU, ok := w.PeakCPUPercent()
	require.True(t, ok)
	assert.Equal(t, float32(20), peakCPU)

	avgRSS, ok := w.AvgRSSKB()
	require.True(t, ok)
	assert.EqualValues(t, 2000, avgRSS)

	peakDur, ok := w.PeakDurationMs()
	require.True(t, ok)
	assert.EqualValues(t, 300, peakDur)
}

func TestWindowStatsEmptyHasNoSamples(t *testing.T) {
	var w WindowStats
	assert.False(t, w.HasSamples())
	_, ok := w.AvgCPUPercent()
	assert.False(t, ok)
}

func TestWindowStatsAddRecordSkipsMissingFields(t *testing.T) {
	var w WindowStats
	w.AddRecord(ExecutionRecord{}) // no optional fields at all

	assert.EqualValues(t, 1, w.ExecCount)
	_, ok := w.AvgCPUPercent()
	assert.False(t, ok, "a record with no cpu data must not be folded into the cpu average")
}

func TestFormatLineOmitsMetricsWithNoSamples(t *testing.T) {
	var w WindowStats
	w.AddRecord(ExecutionRecord{DurationMs: uintPtr(50)})

	line := w.FormatLine()
	assert.Contains(t, line, "1 execs")
	assert.Contains(t, line, "avg dur")
	assert.NotContains(t, line, "cpu")
	assert.NotContains(t, line, "ram")
}
