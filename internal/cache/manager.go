package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
)

// Manager layers a memory cache over a disk cache. Reads fall through
// from memory to disk and promote disk hits back into memory.
type Manager struct {
	mem  *MemoryCache
	disk *DiskCache

	mu     sync.Mutex
	counts struct {
		memHits  int64
		diskHits int64
		misses   int64
	}
}

// Summary is a combined view over both tiers.
type Summary struct {
	Memory   Stats
	Disk     Stats
	MemHits  int64
	DiskHits int64
	Misses   int64
	Dir      string
}

// DefaultDir returns the per-user cache directory.
func DefaultDir() (string, error) {
	scope := gap.NewScope(gap.User, "readalong")
	dir, err := scope.CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to resolve cache directory: %w", err)
	}
	return filepath.Join(dir, "resources"), nil
}

// NewManager opens both tiers. An empty DiskPath uses DefaultDir.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.DiskPath == "" {
		dir, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		cfg.DiskPath = dir
	}

	disk, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("unable to open disk cache: %w", err)
	}
	if cfg.MaxAge > 0 {
		if n := disk.RemoveOlderThan(time.Now().Add(-cfg.MaxAge)); n > 0 {
			log.Debug("pruned stale cache entries", "count", n)
		}
	}

	return &Manager{
		mem:  NewMemoryCache(cfg.MemoryCapacity),
		disk: disk,
	}, nil
}

// Get looks key up in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.mem.Get(key); ok {
		m.count(LevelMemory, true)
		return data, true
	}
	if data, ok := m.disk.Get(key); ok {
		m.count(LevelDisk, true)
		if err := m.mem.Put(key, data); err != nil && err != ErrItemTooLarge {
			log.Debug("unable to promote cache entry", "key", key, "error", err)
		}
		return data, true
	}
	m.count(LevelDisk, false)
	return nil, false
}

// Put stores value in both tiers. A value too large for memory is still
// written to disk.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.mem.Put(key, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("memory cache: %w", err)
	}
	if err := m.disk.Put(key, value); err != nil {
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Delete removes key from both tiers.
func (m *Manager) Delete(key string) error {
	_ = m.mem.Delete(key)
	return m.disk.Delete(key)
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	_ = m.mem.Clear()
	if err := m.disk.Clear(); err != nil {
		return fmt.Errorf("unable to clear disk cache: %w", err)
	}
	return nil
}

// Contains reports whether either tier holds key.
func (m *Manager) Contains(key string) bool {
	return m.mem.Contains(key) || m.disk.Contains(key)
}

// Summary returns counters for both tiers.
func (m *Manager) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Summary{
		Memory:   m.mem.Stats(),
		Disk:     m.disk.Stats(),
		MemHits:  m.counts.memHits,
		DiskHits: m.counts.diskHits,
		Misses:   m.counts.misses,
		Dir:      m.disk.dir,
	}
}

// Close flushes the disk index.
func (m *Manager) Close() error {
	return m.disk.Close()
}

func (m *Manager) count(l Level, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case !hit:
		m.counts.misses++
	case l == LevelMemory:
		m.counts.memHits++
	default:
		m.counts.diskHits++
	}
}
