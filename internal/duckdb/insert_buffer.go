package duckdb

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rustacademy/academy/internal/model"
)

const (
	// DefaultBatchSize is the pending row count that forces a flush.
	DefaultBatchSize = 500
	// DefaultFlushInterval is how often pending rows are written.
	DefaultFlushInterval = 250 * time.Millisecond
	// DefaultFlushQueueSize is how many batches worth of rows may wait
	// before new rows are dropped.
	DefaultFlushQueueSize = 64

	dropLogEvery = 10 * time.Second
)

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
}

// InsertBufferStats reports buffer counters.
type InsertBufferStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// row is one pending insert: either a transition or a key press.
type row struct {
	transition *model.Transition
	key        *model.KeyEvent
}

// InsertBuffer is a runtime sink that batches rows for a TransitionWriter.
// A single goroutine owns the batch and performs every write, so
// RecordTransition and RecordKey only hand a row over and never wait on
// DuckDB. When the queue is full rows are dropped and counted.
type InsertBuffer struct {
	writer   model.TransitionWriter
	in       chan row
	batch    int
	interval time.Duration

	closeMu sync.RWMutex
	closed  bool
	done    chan struct{}
	exited  chan struct{}

	written  atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64
	lastDrop atomic.Int64
}

// NewInsertBuffer starts a buffer flushing to writer.
func NewInsertBuffer(writer model.TransitionWriter, conf ...InsertBufferConfig) *InsertBuffer {
	c := InsertBufferConfig{
		BatchSize:      DefaultBatchSize,
		FlushInterval:  DefaultFlushInterval,
		FlushQueueSize: DefaultFlushQueueSize,
	}
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			c.BatchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			c.FlushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			c.FlushQueueSize = conf[0].FlushQueueSize
		}
	}

	b := &InsertBuffer{
		writer:   writer,
		in:       make(chan row, c.BatchSize*c.FlushQueueSize),
		batch:    c.BatchSize,
		interval: c.FlushInterval,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go b.run()
	return b
}

// RecordTransition queues a transition row.
func (b *InsertBuffer) RecordTransition(t model.Transition) {
	b.offer(row{transition: &t})
}

// RecordKey queues a key press row.
func (b *InsertBuffer) RecordKey(k model.KeyEvent) {
	b.offer(row{key: &k})
}

func (b *InsertBuffer) offer(r row) {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.in <- r:
	default:
		n := b.dropped.Add(1)
		now := time.Now().UnixNano()
		last := b.lastDrop.Load()
		if now-last >= int64(dropLogEvery) && b.lastDrop.CompareAndSwap(last, now) {
			log.Printf("duckdb: insert queue full, %d rows dropped so far", n)
		}
	}
}

// Stop writes every queued row and waits for the writer goroutine to exit.
// Rows recorded after Stop are ignored.
func (b *InsertBuffer) Stop() {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		<-b.exited
		return
	}
	b.closed = true
	close(b.done)
	b.closeMu.Unlock()
	<-b.exited
}

// Stats returns the buffer counters.
func (b *InsertBuffer) Stats() InsertBufferStats {
	return InsertBufferStats{
		Written: b.written.Load(),
		Dropped: b.dropped.Load(),
		Failed:  b.failed.Load(),
	}
}

func (b *InsertBuffer) run() {
	defer close(b.exited)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	pending := make([]row, 0, b.batch)
	for {
		select {
		case r := <-b.in:
			pending = append(pending, r)
			if len(pending) >= b.batch {
				pending = b.flush(pending)
			}
		case <-ticker.C:
			pending = b.flush(pending)
		case <-b.done:
			for {
				select {
				case r := <-b.in:
					pending = append(pending, r)
					if len(pending) >= b.batch {
						pending = b.flush(pending)
					}
				default:
					b.flush(pending)
					return
				}
			}
		}
	}
}

// flush writes pending and returns it emptied for reuse.
func (b *InsertBuffer) flush(pending []row) []row {
	if len(pending) == 0 {
		return pending
	}
	var transitions []*model.Transition
	var keys []*model.KeyEvent
	for _, r := range pending {
		if r.transition != nil {
			transitions = append(transitions, r.transition)
		} else if r.key != nil {
			keys = append(keys, r.key)
		}
	}

	if err := b.writer.InsertTransitionBatch(transitions); err != nil {
		b.failed.Add(uint64(len(transitions)))
		log.Printf("duckdb: write %d transitions: %v", len(transitions), err)
	} else {
		b.written.Add(uint64(len(transitions)))
	}
	if err := b.writer.InsertKeyBatch(keys); err != nil {
		b.failed.Add(uint64(len(keys)))
		log.Printf("duckdb: write %d key presses: %v", len(keys), err)
	} else {
		b.written.Add(uint64(len(keys)))
	}
	return pending[:0]
}
