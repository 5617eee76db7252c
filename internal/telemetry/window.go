package telemetry

import "github.com/dustin/go-humanize"

// WindowStats accumulates raw execution records into running sums/peaks
// for one time window. Averages and peaks are computed only over the
// fields that were actually present on each record — a domain with no CPU
// samples yields no CPU average, never a zero-imputed one.
type WindowStats struct {
	ExecCount int64

	cpuSum   float64
	cpuCount int64
	cpuPeak  float32

	rssSum   uint64
	rssCount int64
	rssPeak  uint64

	durationSum   uint64
	durationCount int64
	durationPeak  uint64
}

// HasSamples reports whether any record has been added to this window.
func (w *WindowStats) HasSamples() bool {
	return w.ExecCount > 0
}

// AvgCPUPercent returns the mean observed CPU percentage, or false if no
// record in the window carried CPU data.
func (w *WindowStats) AvgCPUPercent() (float32, bool) {
	if w.cpuCount == 0 {
		return 0, false
	}
	return float32(w.cpuSum / float64(w.cpuCount)), true
}

// PeakCPUPercent returns the highest observed CPU percentage.
func (w *WindowStats) PeakCPUPercent() (float32, bool) {
	if w.cpuCount == 0 {
		return 0, false
	}
	return w.cpuPeak, true
}

// AvgRSSKB returns the mean observed resident set size in KiB.
func (w *WindowStats) AvgRSSKB() (uint64, bool) {
	if w.rssCount == 0 {
		return 0, false
	}
	return w.rssSum / uint64(w.rssCount), true
}

// PeakRSSKB returns the highest observed resident set size in KiB.
func (w *WindowStats) PeakRSSKB() (uint64, bool) {
	if w.rssCount == 0 {
		return 0, false
	}
	return w.rssPeak, true
}

// AvgDurationMs returns the mean observed execution duration.
func (w *WindowStats) AvgDurationMs() (uint64, bool) {
	if w.durationCount == 0 {
		return 0, false
	}
	return w.durationSum / uint64(w.durationCount), true
}

// PeakDurationMs returns the longest observed execution duration.
func (w *WindowStats) PeakDurationMs() (uint64, bool) {
	if w.durationCount == 0 {
		return 0, false
	}
	return w.durationPeak, true
}

// AddRecord folds rec into the window's running stats.
func (w *WindowStats) AddRecord(rec ExecutionRecord) {
	w.ExecCount++

	if rec.CPUPercent != nil {
		w.cpuSum += float64(*rec.CPUPercent)
		w.cpuCount++
		if *rec.CPUPercent > w.cpuPeak {
			w.cpuPeak = *rec.CPUPercent
		}
	}
	if rec.MemRSSKB != nil {
		w.rssSum += *rec.MemRSSKB
		w.rssCount++
		if *rec.MemRSSKB > w.rssPeak {
			w.rssPeak = *rec.MemRSSKB
		}
	}
	if rec.DurationMs != nil {
		w.durationSum += *rec.DurationMs
		w.durationCount++
		if *rec.DurationMs > w.durationPeak {
			w.durationPeak = *rec.DurationMs
		}
	}
}

// FormatLine renders a single human-readable summary line, omitting any
// metric with no samples. Byte counts use humanize.IBytes so RSS reads as
// "4.2 MiB" rather than a raw KiB integer.
func (w *WindowStats) FormatLine() string {
	var parts []string
	parts = append(parts, humanize.Comma(w.ExecCount)+" execs")

	if avg, ok := w.AvgCPUPercent(); ok {
		parts = append(parts, humanizeFloat("avg cpu", avg, "%"))
	}
	if peak, ok := w.PeakCPUPercent(); ok {
		parts = append(parts, humanizeFloat("peak cpu", peak, "%"))
	}
	if avg, ok := w.AvgRSSKB(); ok {
		parts = append(parts, "avg ram "+humanize.IBytes(avg*1024))
	}
	if peak, ok := w.PeakRSSKB(); ok {
		parts = append(parts, "peak ram "+humanize.IBytes(peak*1024))
	}
	if avg, ok := w.AvgDurationMs(); ok {
		parts = append(parts, "avg dur "+humanizeMillis(avg))
	}
	if peak, ok := w.PeakDurationMs(); ok {
		parts = append(parts, "peak dur "+humanizeMillis(peak))
	}

	line := parts[0]
	for _, p := range parts[1:] {
		line += " | " + p
	}
	return line
}

func humanizeFloat(label string, v float32, unit string) string {
	return label + " " + humanize.CommafWithDigits(float64(v), 1) + unit
}

func humanizeMillis(ms uint64) string {
	return humanize.Comma(int64(ms)) + "ms"
}
