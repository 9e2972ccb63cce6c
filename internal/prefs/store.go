// Package prefs persists the reader's mode flags and position per book.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	gap "github.com/muesli/go-app-paths"
	_ "modernc.org/sqlite"

	"github.com/dgnsrekt/readalong/internal/audio"
)

// Modes are the reading modes a user can toggle at any time.
type Modes struct {
	EasyRead       bool
	DescribeImages bool
	Autoplay       bool
	Language       string
	Speed          float64
}

// DefaultModes returns the modes used before anything is saved.
func DefaultModes() Modes {
	return Modes{Speed: 1}
}

// Position is where the reader left off in a book.
type Position struct {
	Book  string
	Page  string
	Index int
}

// Store keeps modes and positions in SQLite. A store opened with an
// empty path keeps everything in memory.
type Store struct {
	db      *sql.DB
	session string
	clock   func() time.Time

	mu        sync.Mutex
	modes     map[string]Modes
	positions map[string]Position
}

// DefaultPath returns the per-user preferences database path.
func DefaultPath() (string, error) {
	scope := gap.NewScope(gap.User, "readalong")
	path, err := scope.DataPath("prefs.db")
	if err != nil {
		return "", fmt.Errorf("unable to resolve data directory: %w", err)
	}
	return path, nil
}

// Open opens the store at path, creating it if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	s := &Store{
		session:   uuid.NewString(),
		clock:     time.Now,
		modes:     map[string]Modes{},
		positions: map[string]Position{},
	}
	if path == "" {
		return s, nil
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s.db = db

	if err := s.initSchema(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS modes (
    book TEXT PRIMARY KEY,
    easy_read INTEGER NOT NULL,
    describe_images INTEGER NOT NULL,
    autoplay INTEGER NOT NULL,
    language TEXT NOT NULL,
    speed REAL NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS positions (
    book TEXT PRIMARY KEY,
    page TEXT NOT NULL,
    unit_index INTEGER NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    book TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Session returns the identifier of this reading session.
func (s *Store) Session() string { return s.session }

// BeginSession records that book was opened in this session.
func (s *Store) BeginSession(ctx context.Context, book string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, book, started_at) VALUES(?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET book=excluded.book`,
		s.session, book, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// Modes returns the saved modes for book, or DefaultModes.
func (s *Store) Modes(ctx context.Context, book string) (Modes, error) {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if m, ok := s.modes[book]; ok {
			return m, nil
		}
		return DefaultModes(), nil
	}

	var m Modes
	err := s.db.QueryRowContext(ctx,
		`SELECT easy_read, describe_images, autoplay, language, speed FROM modes WHERE book = ?`,
		book).Scan(&m.EasyRead, &m.DescribeImages, &m.Autoplay, &m.Language, &m.Speed)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultModes(), nil
	}
	if err != nil {
		return Modes{}, fmt.Errorf("load modes: %w", err)
	}
	if err := audio.ValidateSpeed(m.Speed); err != nil {
		log.Warn("ignoring saved speed", "book", book, "error", err)
		m.Speed = 1
	}
	return m, nil
}

// SaveModes stores m for book.
func (s *Store) SaveModes(ctx context.Context, book string, m Modes) error {
	if err := audio.ValidateSpeed(m.Speed); err != nil {
		return err
	}
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.modes[book] = m
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO modes(book, easy_read, describe_images, autoplay, language, speed, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(book) DO UPDATE SET
		   easy_read=excluded.easy_read,
		   describe_images=excluded.describe_images,
		   autoplay=excluded.autoplay,
		   language=excluded.language,
		   speed=excluded.speed,
		   updated_at=excluded.updated_at`,
		book, m.EasyRead, m.DescribeImages, m.Autoplay, m.Language, m.Speed, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("save modes: %w", err)
	}
	return nil
}

// Position returns where the reader left book, if recorded.
func (s *Store) Position(ctx context.Context, book string) (Position, bool, error) {
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		p, ok := s.positions[book]
		return p, ok, nil
	}

	p := Position{Book: book}
	err := s.db.QueryRowContext(ctx,
		`SELECT page, unit_index FROM positions WHERE book = ?`, book).Scan(&p.Page, &p.Index)
	if errors.Is(err, sql.ErrNoRows) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, fmt.Errorf("load position: %w", err)
	}
	return p, true, nil
}

// SavePosition records p.
func (s *Store) SavePosition(ctx context.Context, p Position) error {
	if p.Index < 0 {
		p.Index = 0
	}
	if s.db == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.positions[p.Book] = p
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO positions(book, page, unit_index, updated_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(book) DO UPDATE SET page=excluded.page, unit_index=excluded.unit_index, updated_at=excluded.updated_at`,
		p.Book, p.Page, p.Index, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

// Sessions returns how many sessions opened book.
func (s *Store) Sessions(ctx context.Context, book string) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE book = ?`, book).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
