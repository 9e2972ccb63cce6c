package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operations are attempted on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// Priority orders fetch requests.
type Priority int

const (
	// PriorityNormal is used for lookahead of upcoming units.
	PriorityNormal Priority = iota
	// PriorityHigh is used for clips the user jumped to.
	PriorityHigh
)

// Fetcher loads the bytes of a clip.
type Fetcher func(ctx context.Context, src string) ([]byte, error)

// Config holds queue settings.
type Config struct {
	MaxSize     int   // Maximum pending requests
	Lookahead   int   // Upcoming clips to prefetch
	MemoryLimit int64 // Maximum bytes held ready
	Workers     int   // Concurrent fetches
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:     32,
		Lookahead:   3,
		MemoryLimit: 32 * 1024 * 1024,
		Workers:     2,
	}
}

// Stats tracks queue performance metrics.
type Stats struct {
	TotalEnqueued int64
	TotalFetched  int64
	TotalDropped  int64
	TotalFailed   int64
	Hits          int64 // Loads served from prefetched data
	Misses        int64 // Loads fetched on demand
	CurrentSize   int
	PeakSize      int
	ReadyBytes    int64
	LastFetch     time.Time
}

// AudioQueue prefetches clip data ahead of playback. Loads of a
// prefetched clip are served from memory; everything else is fetched on
// demand.
type AudioQueue struct {
	fetch Fetcher
	cfg   Config

	mu       sync.Mutex
	notEmpty *sync.Cond
	pending  priorityQueue
	inflight map[string]bool
	queued   map[string]bool
	ready    map[string][]byte
	order    []string // ready keys, oldest first
	memory   int64
	seq      int64
	closed   bool
	stats    Stats

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAudioQueue creates a queue and starts its fetch workers.
func NewAudioQueue(fetch Fetcher, cfg Config) *AudioQueue {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &AudioQueue{
		fetch:    fetch,
		cfg:      cfg,
		inflight: map[string]bool{},
		queued:   map[string]bool{},
		ready:    map[string][]byte{},
		ctx:      ctx,
		cancel:   cancel,
	}
	heap.Init(&q.pending)
	q.notEmpty = sync.NewCond(&q.mu)

	for range cfg.Workers {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue requests src to be prefetched. Clips already ready, queued or
// being fetched are ignored. A full queue drops the request.
func (q *AudioQueue) Enqueue(src string, p Priority) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if src == "" || q.queued[src] || q.inflight[src] {
		return nil
	}
	if _, ok := q.ready[src]; ok {
		return nil
	}
	if q.pending.Len() >= q.cfg.MaxSize {
		q.stats.TotalDropped++
		return ErrQueueFull
	}

	q.seq++
	heap.Push(&q.pending, &queueItem{src: src, priority: p, seq: q.seq})
	q.queued[src] = true
	q.stats.TotalEnqueued++
	q.stats.CurrentSize = q.pending.Len()
	q.stats.PeakSize = max(q.stats.PeakSize, q.stats.CurrentSize)
	q.notEmpty.Signal()
	return nil
}

// Prefetch enqueues up to Lookahead sources in order.
func (q *AudioQueue) Prefetch(srcs []string) {
	n := 0
	for _, src := range srcs {
		if n >= q.cfg.Lookahead {
			return
		}
		if err := q.Enqueue(src, PriorityNormal); err != nil {
			return
		}
		n++
	}
}

// Load returns the data for src, from the prefetched set when present.
// It has the signature of audio.Loader.
func (q *AudioQueue) Load(ctx context.Context, src string) ([]byte, error) {
	q.mu.Lock()
	if data, ok := q.ready[src]; ok {
		q.dropLocked(src)
		q.stats.Hits++
		q.mu.Unlock()
		return data, nil
	}
	q.stats.Misses++
	q.mu.Unlock()

	return q.fetch(ctx, src)
}

// Ready reports whether src has been prefetched.
func (q *AudioQueue) Ready(src string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.ready[src]
	return ok
}

// Size returns the number of pending requests.
func (q *AudioQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Clear drops pending requests and prefetched data, e.g. on a page or
// language change.
func (q *AudioQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = priorityQueue{}
	heap.Init(&q.pending)
	q.queued = map[string]bool{}
	q.ready = map[string][]byte{}
	q.order = nil
	q.memory = 0
	q.stats.CurrentSize = 0
}

// GetStats returns current queue statistics.
func (q *AudioQueue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := q.stats
	stats.CurrentSize = q.pending.Len()
	stats.ReadyBytes = q.memory
	return stats
}

// Close stops the workers and waits for in-flight fetches.
func (q *AudioQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	return nil
}

func (q *AudioQueue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for q.pending.Len() == 0 && !q.closed {
			q.notEmpty.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		item := heap.Pop(&q.pending).(*queueItem)
		delete(q.queued, item.src)
		q.inflight[item.src] = true
		q.stats.CurrentSize = q.pending.Len()
		q.mu.Unlock()

		data, err := q.fetch(q.ctx, item.src)

		q.mu.Lock()
		delete(q.inflight, item.src)
		q.stats.LastFetch = time.Now()
		switch {
		case err != nil:
			q.stats.TotalFailed++
			log.Debug("prefetch failed", "src", item.src, "error", err)
		default:
			q.stats.TotalFetched++
			q.storeLocked(item.src, data)
		}
		q.mu.Unlock()
	}
}

// storeLocked keeps data ready, evicting the oldest entries to stay
// within the memory limit.
func (q *AudioQueue) storeLocked(src string, data []byte) {
	size := int64(len(data))
	if q.cfg.MemoryLimit > 0 && size > q.cfg.MemoryLimit {
		q.stats.TotalDropped++
		return
	}
	for q.cfg.MemoryLimit > 0 && q.memory+size > q.cfg.MemoryLimit && len(q.order) > 0 {
		q.dropLocked(q.order[0])
	}
	if _, ok := q.ready[src]; ok {
		q.dropLocked(src)
	}
	q.ready[src] = data
	q.order = append(q.order, src)
	q.memory += size
}

func (q *AudioQueue) dropLocked(src string) {
	data, ok := q.ready[src]
	if !ok {
		return
	}
	delete(q.ready, src)
	q.memory -= int64(len(data))
	for i, k := range q.order {
		if k == src {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Priority queue implementation using a heap.
type queueItem struct {
	src      string
	priority Priority
	seq      int64
}

type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	// Higher priority first, then first in.
	if pq[i].priority != pq[j].priority {
		return pq[i].priority > pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(*queueItem))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}
