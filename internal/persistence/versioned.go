package persistence

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// Versioned is implemented by any persisted record that carries a breaking-
// change counter. LoadVersioned uses it to decide whether a file on disk
// can be trusted or must be quarantined.
type Versioned interface {
	SchemaVersion() uint32
}

// ErrNotFound is returned by LoadVersioned when the file does not exist.
// Callers treat this as "never refreshed" / "no prior state", never as a
// fatal error.
var ErrNotFound = fmt.Errorf("persisted record not found")

// LoadVersioned reads a JSON record from path into dst and checks its
// schema_version against wantVersion. On a version mismatch the file is
// renamed to "<path>.broken-<unix-timestamp>.json" and ErrSchemaMismatch
// is returned — callers must treat the domain/record as fresh and never
// attempt a lossy decode of the old shape.
func LoadVersioned(path string, wantVersion uint32, dst Versioned) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}

	if err := json.Unmarshal(data, dst); err != nil {
		quarantine(path)
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	if dst.SchemaVersion() != wantVersion {
		quarantine(path)
		return ErrSchemaMismatch
	}

	return nil
}

// ErrSchemaMismatch signals that a persisted record's schema_version did
// not match what the reader expected (or the record could not be parsed
// at all). The file has already been quarantined by the time this is
// returned; the caller's only correct move is to treat the domain as
// never-refreshed and rebuild state from scratch.
var ErrSchemaMismatch = fmt.Errorf("schema version mismatch")

func quarantine(path string) {
	broken := fmt.Sprintf("%s.broken-%d.json", path, time.Now().Unix())
	if err := os.Rename(path, broken); err != nil {
		log.Printf("[persistence] failed to quarantine %s: %v", path, err)
	}
}

// SaveVersioned marshals v as indented JSON and atomically writes it to
// path.
func SaveVersioned(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return AtomicWriteFile(path, data, 0644)
}
