package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/secmon-lab/citadel/pkg/domain/interfaces"
	"github.com/secmon-lab/citadel/pkg/repository/sqlite/migrations"
)

// timeLayout is fixed width so that lexical order of stored timestamps is chronological
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite is a single-file repository backed by modernc.org/sqlite
type SQLite struct {
	db          *sql.DB
	path        string
	generation  *generationRepository
	searchIndex *searchIndexRepository
	note        *noteRepository
}

var _ interfaces.Repository = &SQLite{}

// New opens (creating if needed) the database file at path and applies pending migrations
func New(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, goerr.Wrap(err, "failed to create data directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}
	// A single connection serializes writers and keeps transactions free of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to run migrations", goerr.V("path", path))
	}

	s.generation = &generationRepository{db: db}
	s.searchIndex = &searchIndexRepository{db: db}
	s.note = &noteRepository{db: db}
	return s, nil
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Generation() interfaces.GenerationRepository {
	return s.generation
}

func (s *SQLite) SearchIndex() interfaces.SearchIndexRepository {
	return s.searchIndex
}

func (s *SQLite) Note() interfaces.NoteRepository {
	return s.note
}

func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close database", goerr.V("path", s.path))
	}
	return nil
}

func (s *SQLite) migrate(ctx context.Context, fsys embed.FS) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return goerr.Wrap(err, "failed to create schema_migrations table")
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return goerr.Wrap(err, "failed to get current schema version")
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return goerr.Wrap(err, "failed to read migrations directory")
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return goerr.Wrap(err, "failed to read migration", goerr.V("name", name))
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return goerr.Wrap(err, "failed to execute migration", goerr.V("name", name))
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, formatTime(time.Now())); err != nil {
			return goerr.Wrap(err, "failed to record migration", goerr.V("name", name))
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "failed to parse timestamp", goerr.V("value", s))
	}
	return t, nil
}

func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
