package telemetry

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRecordAppendsJSONLine(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	rec := NewExecutionRecord(1234).WithCPUPercent(5.2).WithExitCode(0)
	require.NoError(t, w.Record("pacman", rec))

	ts, ok := rec.UnixTimestamp()
	require.True(t, ok)
	date := time.Unix(ts, 0).UTC()
	path := logPath(dir, "pacman", date)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pid":1234`)
	assert.Contains(t, string(data), `"cpu_percent":5.2`)
	assert.Contains(t, string(data), `"exit_code":0`)
}

func TestWriterOmitsUnsetOptionalFields(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	rec := NewExecutionRecord(1)
	require.NoError(t, w.Record("bash", rec))

	ts, _ := rec.UnixTimestamp()
	data, err := os.ReadFile(logPath(dir, "bash", time.Unix(ts, 0).UTC()))
	require.NoError(t, err)

	assert.NotContains(t, string(data), "cpu_percent")
	assert.NotContains(t, string(data), "mem_rss_kb")
	assert.NotContains(t, string(data), "duration_ms")
	assert.NotContains(t, string(data), "exit_code")
}

func TestWriterAppendsMultipleRecordsAsSeparateLines(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Record("systemd", NewExecutionRecord(uint32(i))))
	}

	now := time.Now().UTC()
	f, err := os.Open(logPath(dir, "systemd", now))
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 3, lines)
}

func TestSanitizeObjectNameReplacesUnsafeRunes(t *testing.T) {
	assert.Equal(t, "systemd-networkd.service", sanitizeObjectName("systemd-networkd.service"))
	assert.Equal(t, "foo_bar", sanitizeObjectName("foo/bar"))
	assert.Equal(t, "a_b_c", sanitizeObjectName("a b\tc"))
}

func TestLogPathIsDayPartitioned(t *testing.T) {
	date := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	got := logPath("/var/lib/anna/telemetry", "pacman", date)
	want := filepath.Join("/var/lib/anna/telemetry", "pacman", "2026", "03", "05", "exec.jsonl")
	assert.Equal(t, want, got)
}
