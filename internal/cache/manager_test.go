package cache

import (
	"bytes"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DiskPath = t.TempDir()
	cfg.MemoryCapacity = 4096
	cfg.DiskCapacity = 1 << 20
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_PutGet(t *testing.T) {
	m := newTestManager(t)
	key := Key("book", "i18n/en/translations.json")

	if _, ok := m.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := m.Put(key, []byte(`{"p1":"Hello"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok := m.Get(key)
	if !ok || string(got) != `{"p1":"Hello"}` {
		t.Fatalf("Get = %q, %v", got, ok)
	}

	s := m.Summary()
	if s.MemHits != 1 || s.Misses != 1 {
		t.Errorf("MemHits/Misses = %d/%d, want 1/1", s.MemHits, s.Misses)
	}
}

func TestManager_PromotesDiskHits(t *testing.T) {
	m := newTestManager(t)
	key := Key("book", "audio/en/p1.mp3")
	_ = m.Put(key, []byte("clip"))
	_ = m.mem.Clear()

	if _, ok := m.Get(key); !ok {
		t.Fatal("expected disk hit")
	}
	if !m.mem.Contains(key) {
		t.Error("disk hit was not promoted to memory")
	}
	if s := m.Summary(); s.DiskHits != 1 {
		t.Errorf("DiskHits = %d, want 1", s.DiskHits)
	}
}

func TestManager_LargeValuesGoToDisk(t *testing.T) {
	m := newTestManager(t)
	key := Key("book", "audio/en/long.mp3")
	big := bytes.Repeat([]byte("a"), 8192)

	if err := m.Put(key, big); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if m.mem.Contains(key) {
		t.Error("value larger than memory capacity should not be in memory")
	}
	got, ok := m.Get(key)
	if !ok || !bytes.Equal(got, big) {
		t.Error("expected value from disk")
	}
}

func TestManager_Clear(t *testing.T) {
	m := newTestManager(t)
	key := Key("book", "x")
	_ = m.Put(key, []byte("x"))
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if m.Contains(key) {
		t.Error("entry survived Clear")
	}
}

func TestDiskCache_PersistsIndex(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte("word "), 1000)

	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	if err := dc.Put("k", payload); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if dc.Size() >= int64(len(payload)) {
		t.Errorf("expected compressed size below %d, got %d", len(payload), dc.Size())
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close() //nolint:errcheck
	got, ok := reopened.Get("k")
	if !ok || !bytes.Equal(got, payload) {
		t.Error("expected payload after reopen")
	}
}

func TestDiskCache_Eviction(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 100, 0)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	defer dc.Close() //nolint:errcheck

	_ = dc.Put("aaaaaaaa", make([]byte, 60))
	_ = dc.Put("bbbbbbbb", make([]byte, 60))

	if dc.Contains("aaaaaaaa") {
		t.Error("oldest entry should have been evicted")
	}
	if !dc.Contains("bbbbbbbb") {
		t.Error("newest entry missing")
	}
	if err := dc.Put("cccccccc", make([]byte, 101)); err != ErrItemTooLarge {
		t.Errorf("expected ErrItemTooLarge, got %v", err)
	}
}

func TestKeyIsStable(t *testing.T) {
	if Key("a", "b") != Key("a", "b") {
		t.Error("Key is not deterministic")
	}
	if Key("a", "b") == Key("a", "c") {
		t.Error("distinct names share a key")
	}
}
