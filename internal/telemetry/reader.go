package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Reader serves window-aggregated queries over a Writer's on-disk log
// tree. It never caches: every call walks the date directories fresh,
// since telemetry volume is small enough (one line per execution) that a
// 30-day scan is cheap relative to the cost of a stale cache.
type Reader struct {
	baseDir string
}

// NewReader returns a Reader rooted at baseDir.
func NewReader(baseDir string) *Reader {
	return &Reader{baseDir: baseDir}
}

func (r *Reader) objectDir(object string) string {
	return filepath.Join(r.baseDir, sanitizeObjectName(object))
}

// HasHistory reports whether object has ever had a telemetry record
// written for it.
func (r *Reader) HasHistory(object string) bool {
	entries, err := os.ReadDir(r.objectDir(object))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			return true
		}
	}
	return false
}

// datesInRange walks the object's YYYY/MM/DD tree and returns every date
// within [start, end] that has an exec.jsonl file.
func (r *Reader) datesInRange(object string, start, end time.Time) []time.Time {
	var dates []time.Time
	objDir := r.objectDir(object)

	years, err := os.ReadDir(objDir)
	if err != nil {
		return nil
	}
	for _, yEnt := range years {
		if !yEnt.IsDir() {
			continue
		}
		year, err := strconv.Atoi(yEnt.Name())
		if err != nil {
			continue
		}
		months, err := os.ReadDir(filepath.Join(objDir, yEnt.Name()))
		if err != nil {
			continue
		}
		for _, mEnt := range months {
			if !mEnt.IsDir() {
				continue
			}
			month, err := strconv.Atoi(mEnt.Name())
			if err != nil {
				continue
			}
			days, err := os.ReadDir(filepath.Join(objDir, yEnt.Name(), mEnt.Name()))
			if err != nil {
				continue
			}
			for _, dEnt := range days {
				if !dEnt.IsDir() {
					continue
				}
				day, err := strconv.Atoi(dEnt.Name())
				if err != nil {
					continue
				}
				date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
				if date.Before(start.Truncate(24*time.Hour)) || date.After(end) {
					continue
				}
				logFile := filepath.Join(objDir, yEnt.Name(), mEnt.Name(), dEnt.Name(), "exec.jsonl")
				if _, err := os.Stat(logFile); err == nil {
					dates = append(dates, date)
				}
			}
		}
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func (r *Reader) readDateRecords(object string, date time.Time) []ExecutionRecord {
	path := logPath(r.baseDir, object, date)
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var records []ExecutionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec ExecutionRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// RecordsInRange returns every record for object whose timestamp falls in
// [sinceUnix, untilUnix], inclusive.
func (r *Reader) RecordsInRange(object string, sinceUnix, untilUnix int64) []ExecutionRecord {
	start := time.Unix(sinceUnix, 0).UTC()
	end := time.Unix(untilUnix, 0).UTC()

	var out []ExecutionRecord
	for _, date := range r.datesInRange(object, start, end) {
		for _, rec := range r.readDateRecords(object, date) {
			ts, ok := rec.UnixTimestamp()
			if !ok {
				continue
			}
			if ts >= sinceUnix && ts <= untilUnix {
				out = append(out, rec)
			}
		}
	}
	return out
}

// ObjectTelemetry is the aggregated result of windowing an object's
// history across the four standard lookback periods.
type ObjectTelemetry struct {
	HasAnyHistory bool
	W1h           WindowStats
	W24h          WindowStats
	W7d           WindowStats
	W30d          WindowStats
}

// GetObjectTelemetry aggregates object's last 30 days of records into the
// four standard windows in a single pass.
func (r *Reader) GetObjectTelemetry(object string) ObjectTelemetry {
	if !r.HasHistory(object) {
		return ObjectTelemetry{}
	}

	now := time.Now().UTC()
	nowUnix := now.Unix()
	h1Ago := nowUnix - 3600
	h24Ago := nowUnix - 86400
	d7Ago := nowUnix - 7*86400
	d30Ago := nowUnix - 30*86400

	result := ObjectTelemetry{HasAnyHistory: true}

	for _, rec := range r.RecordsInRange(object, d30Ago, nowUnix) {
		ts, ok := rec.UnixTimestamp()
		if !ok {
			continue
		}
		result.W30d.AddRecord(rec)
		if ts >= d7Ago {
			result.W7d.AddRecord(rec)
		}
		if ts >= h24Ago {
			result.W24h.AddRecord(rec)
		}
		if ts >= h1Ago {
			result.W1h.AddRecord(rec)
		}
	}

	return result
}

// ListObjects returns every object that has a telemetry directory,
// sorted. Hidden entries and non-directories are skipped.
func (r *Reader) ListObjects() []string {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil
	}
	var objects []string
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) == 0 || e.Name()[0] == '.' {
			continue
		}
		objects = append(objects, e.Name())
	}
	sort.Strings(objects)
	return objects
}

// ObjectCount pairs an object name with an execution count, used for
// top-N ranking queries.
type ObjectCount struct {
	Object string
	Count  int64
}

// TopByExecs ranks every known object by execution count since sinceUnix,
// descending, truncated to limit.
func (r *Reader) TopByExecs(sinceUnix int64, limit int) []ObjectCount {
	now := time.Now().UTC().Unix()
	var counts []ObjectCount
	for _, obj := range r.ListObjects() {
		n := int64(len(r.RecordsInRange(obj, sinceUnix, now)))
		if n > 0 {
			counts = append(counts, ObjectCount{Object: obj, Count: n})
		}
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

// ObjectCPUTotal pairs an object name with a summed CPU percentage,
// used for top-N CPU-consumer ranking queries.
type ObjectCPUTotal struct {
	Object string
	CPUSum float64
}

// TopByCPU ranks every known object by summed CPU percentage since
// sinceUnix, descending, truncated to limit.
func (r *Reader) TopByCPU(sinceUnix int64, limit int) []ObjectCPUTotal {
	now := time.Now().UTC().Unix()
	var totals []ObjectCPUTotal
	for _, obj := range r.ListObjects() {
		var sum float64
		for _, rec := range r.RecordsInRange(obj, sinceUnix, now) {
			if rec.CPUPercent != nil {
				sum += float64(*rec.CPUPercent)
			}
		}
		if sum > 0 {
			totals = append(totals, ObjectCPUTotal{Object: obj, CPUSum: sum})
		}
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].CPUSum > totals[j].CPUSum })
	if len(totals) > limit {
		totals = totals[:limit]
	}
	return totals
}
