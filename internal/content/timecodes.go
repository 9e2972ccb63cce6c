package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// WordTimestamp is one spoken word and its position in the clip, in
// seconds.
type WordTimestamp struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Timecodes looks up the word timestamps of a unit.
type Timecodes interface {
	Words(ctx context.Context, id string) ([]WordTimestamp, bool)
}

// timecodeEntry is the on-disk shape of one unit:
//
//	{"timecodes": {"0": {"word_timestamps": [...]}, "1": {...}}}
type timecodeEntry struct {
	Timecodes map[string]struct {
		WordTimestamps []WordTimestamp `json:"word_timestamps"`
	} `json:"timecodes"`
}

// words flattens the segments in ascending numeric key order.
// Non-numeric keys sort after numeric ones, lexically.
func (e timecodeEntry) words() []WordTimestamp {
	keys := make([]string, 0, len(e.Timecodes))
	for k := range e.Timecodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return keys[i] < keys[j]
	})

	var out []WordTimestamp
	for _, k := range keys {
		out = append(out, e.Timecodes[k].WordTimestamps...)
	}
	return out
}

// BulkTimecodes holds every unit of a language in memory.
type BulkTimecodes map[string][]WordTimestamp

// ParseBulkTimecodes decodes an id → entry map.
func ParseBulkTimecodes(data []byte) (BulkTimecodes, error) {
	var raw map[string]timecodeEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse timecodes: %w", err)
	}
	out := make(BulkTimecodes, len(raw))
	for id, e := range raw {
		out[id] = e.words()
	}
	return out, nil
}

// Words implements Timecodes.
func (b BulkTimecodes) Words(_ context.Context, id string) ([]WordTimestamp, bool) {
	w, ok := b[id]
	return w, ok && len(w) > 0
}

// LazyTimecodes fetches one file per unit on first use and remembers the
// result. Units without a file are remembered as misses; other failures
// are retried on the next lookup.
type LazyTimecodes struct {
	src Source
	dir string

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string][]WordTimestamp
}

// NewLazyTimecodes reads <dir>/<id>.json files from src.
func NewLazyTimecodes(src Source, dir string) *LazyTimecodes {
	return &LazyTimecodes{src: src, dir: dir, entries: make(map[string][]WordTimestamp)}
}

// Words implements Timecodes. Concurrent lookups of one id share a
// single fetch.
func (l *LazyTimecodes) Words(ctx context.Context, id string) ([]WordTimestamp, bool) {
	l.mu.RLock()
	w, ok := l.entries[id]
	l.mu.RUnlock()
	if ok {
		return w, len(w) > 0
	}

	v, err, _ := l.group.Do(id, func() (any, error) {
		w, err := l.fetch(ctx, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		l.mu.Lock()
		l.entries[id] = w
		l.mu.Unlock()
		return w, nil
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("unable to load timecodes", "id", id, "error", err)
		}
		return nil, false
	}
	w, _ = v.([]WordTimestamp)
	return w, len(w) > 0
}

func (l *LazyTimecodes) fetch(ctx context.Context, id string) ([]WordTimestamp, error) {
	data, err := l.src.Read(ctx, path.Join(l.dir, id+".json"))
	if err != nil {
		return nil, err
	}
	var e timecodeEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unable to parse timecodes for %s: %w", id, err)
	}
	return e.words(), nil
}
