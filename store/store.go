// Package store caches compiled programs in SQLite, keyed by a hash of the
// source tree and the built-in tables it was compiled against.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/subpy/compiler"
	"github.com/chazu/subpy/pkg/bytecode"
)

var log = commonlog.GetLogger("subpy.store")

// Store handles SQLite storage for compiled programs.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open opens or creates the cache database at dbPath. ":memory:" gives a
// private in-memory cache.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Create table if needed
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		key         TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		program     BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened program cache %s", dbPath)
	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Key derives the cache key for compiling input under cfg.
func Key(input []byte, cfg compiler.Config) uint64 {
	h := xxhash.New()
	_, _ = h.Write(input)
	writeTable(h, "instructions", cfg.BuiltinInstructions)
	writeTable(h, "functions", cfg.BuiltinFunctions)
	return h.Sum64()
}

func writeTable(h *xxhash.Digest, label string, table map[string]int) {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = h.WriteString("\x00" + label)
	for _, name := range names {
		_, _ = h.WriteString("\x00" + name + "/" + strconv.Itoa(table[name]))
	}
}

func keyText(key uint64) string { return strconv.FormatUint(key, 16) }

// Get returns the program cached under key. A stored blob that fails to
// decode, or whose fingerprint does not match, is an error.
func (s *Store) Get(key uint64) (*bytecode.Program, bool, error) {
	var (
		fingerprint string
		blob        []byte
	)
	err := s.db.QueryRow("SELECT fingerprint, program FROM programs WHERE key = ?", keyText(key)).
		Scan(&fingerprint, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying program: %w", err)
	}

	p, err := bytecode.Unmarshal(blob)
	if err != nil {
		return nil, false, fmt.Errorf("cached program %s: %w", keyText(key), err)
	}
	fp, err := bytecode.Fingerprint(p)
	if err != nil {
		return nil, false, err
	}
	if keyText(fp) != fingerprint {
		return nil, false, fmt.Errorf("cached program %s: fingerprint %x does not match stored %s", keyText(key), fp, fingerprint)
	}
	log.Debugf("cache hit %s", keyText(key))
	return p, true, nil
}

// Put stores p under key, replacing any previous entry.
func (s *Store) Put(key uint64, p *bytecode.Program) error {
	blob, err := bytecode.Marshal(p)
	if err != nil {
		return err
	}
	fp, err := bytecode.Fingerprint(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO programs (key, fingerprint, program) VALUES (?, ?, ?)",
		keyText(key), keyText(fp), blob,
	)
	if err != nil {
		return fmt.Errorf("saving program: %w", err)
	}
	return nil
}

// Len returns the number of cached programs.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM programs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting programs: %w", err)
	}
	return n, nil
}
