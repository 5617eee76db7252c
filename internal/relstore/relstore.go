// Package relstore persists ground-truth relationships between software
// packages, services, processes, devices, drivers, and firmware — built
// exclusively from evidence the probe layer actually observed, never
// guessed. It is backed by SQLite (modernc.org/sqlite, a pure-Go driver
// with no cgo dependency) at <state dir>/links.db.
package relstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// LinkType names the kind of directed edge between two entities.
type LinkType string

const (
	PackageToService LinkType = "pkg_to_svc"
	ServiceToProcess LinkType = "svc_to_proc"
	ProcessToDevice  LinkType = "proc_to_dev"
	DeviceToDriver   LinkType = "dev_to_drv"
	DriverToFirmware LinkType = "drv_to_fw"
	PackageToPackage LinkType = "pkg_to_pkg"
)

var validLinkTypes = map[LinkType]bool{
	PackageToService: true,
	ServiceToProcess: true,
	ProcessToDevice:  true,
	DeviceToDriver:   true,
	DriverToFirmware: true,
	PackageToPackage: true,
}

// Link is a single directed, evidenced edge between two entities, each
// named with a "kind:name" prefix (e.g. "package:nginx", "service:sshd").
type Link struct {
	Type      LinkType
	Source    string
	Target    string
	Evidence  string // how Anna knows this link exists, e.g. "pacman -Ql"
	UpdatedAt time.Time
}

// Store is a SQLite-backed directed-edge store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the store at dbPath, creating its parent directory
// and schema as needed.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("relstore: create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("relstore: open %s: %w", dbPath, err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// OpenMemory opens an in-memory store, used by tests.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			link_type TEXT NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			evidence TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE(link_type, source, target)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_links_source ON links(source)`,
		`CREATE INDEX IF NOT EXISTS idx_links_target ON links(target)`,
		`CREATE INDEX IF NOT EXISTS idx_links_type ON links(link_type)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("relstore: init schema: %w", err)
		}
	}
	return nil
}

// Upsert inserts link, or replaces the existing row with the same
// (type, source, target), refreshing its evidence and updated_at.
func (s *Store) Upsert(link Link) error {
	if !validLinkTypes[link.Type] {
		return fmt.Errorf("relstore: unknown link type %q", link.Type)
	}
	now := time.Now().UTC().Unix()
	_, err := s.db.Exec(
		`INSERT INTO links (link_type, source, target, evidence, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(link_type, source, target) DO UPDATE SET
		   evidence = excluded.evidence, updated_at = excluded.updated_at`,
		string(link.Type), link.Source, link.Target, link.Evidence, now,
	)
	if err != nil {
		return fmt.Errorf("relstore: upsert link: %w", err)
	}
	return nil
}

// From returns every link whose source matches source, of any type.
func (s *Store) From(source string) ([]Link, error) {
	return s.query(`SELECT link_type, source, target, evidence, updated_at FROM links WHERE source = ?`, source)
}

// To returns every link whose target matches target, of any type.
func (s *Store) To(target string) ([]Link, error) {
	return s.query(`SELECT link_type, source, target, evidence, updated_at FROM links WHERE target = ?`, target)
}

// FromOfType returns links from source restricted to one LinkType.
func (s *Store) FromOfType(source string, t LinkType) ([]Link, error) {
	return s.query(
		`SELECT link_type, source, target, evidence, updated_at FROM links WHERE source = ? AND link_type = ?`,
		source, string(t),
	)
}

// ToOfType returns links to target restricted to one LinkType.
func (s *Store) ToOfType(target string, t LinkType) ([]Link, error) {
	return s.query(
		`SELECT link_type, source, target, evidence, updated_at FROM links WHERE target = ? AND link_type = ?`,
		target, string(t),
	)
}

func (s *Store) query(q string, args ...any) ([]Link, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("relstore: query: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var typeStr string
		var link Link
		var updatedUnix int64
		if err := rows.Scan(&typeStr, &link.Source, &link.Target, &link.Evidence, &updatedUnix); err != nil {
			return nil, fmt.Errorf("relstore: scan row: %w", err)
		}
		link.Type = LinkType(typeStr)
		link.UpdatedAt = time.Unix(updatedUnix, 0).UTC()
		links = append(links, link)
	}
	return links, rows.Err()
}

// ClearOlderThan deletes every link whose updated_at predates the given
// age, returning how many rows were removed.
func (s *Store) ClearOlderThan(age time.Duration) (int64, error) {
	threshold := time.Now().UTC().Add(-age).Unix()
	result, err := s.db.Exec(`DELETE FROM links WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("relstore: clear old links: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the total number of links stored.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM links`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("relstore: count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
