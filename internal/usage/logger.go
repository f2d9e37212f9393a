// Package usage persists one audit record per completed request. Recording
// never blocks the response path: records flow through a bounded queue into
// a background worker, and overload drops the oldest unlogged record.
package usage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Record is the durable audit entry for one request/response cycle. It is
// owned by the logger once handed off and never read back by dispatch.
type Record struct {
	Endpoint          string
	SessionID         string
	UserMessage       string
	AssistantResponse string
	ModelName         string
	Temperature       float64
	MaxTokens         int
	Status            string
	ErrorMessage      string
	PromptTokens      int
	CompletionTokens  int
	ResponseTime      time.Duration
	CreatedAt         time.Time
}

// Sink persists records. Implementations must be safe for use from one
// worker goroutine.
type Sink interface {
	InsertUsageRecord(ctx context.Context, rec Record) error
	InsertConversationTurn(ctx context.Context, rec Record) error
}

// Logger drains a bounded queue of records into a Sink.
type Logger struct {
	queue   chan Record
	sink    Sink
	log     zerolog.Logger
	dropped atomic.Uint64

	retryAttempts int
	retryBase     time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

const (
	defaultQueueCap      = 256
	defaultRetryAttempts = 3
	defaultRetryBase     = 100 * time.Millisecond
)

// New constructs a Logger and starts its worker.
func New(queueCap int, sink Sink, log zerolog.Logger) *Logger {
	if queueCap <= 0 {
		queueCap = defaultQueueCap
	}
	l := &Logger{
		queue:         make(chan Record, queueCap),
		sink:          sink,
		log:           log.With().Str("component", "usage").Logger(),
		retryAttempts: defaultRetryAttempts,
		retryBase:     defaultRetryBase,
	}
	l.wg.Add(1)
	go l.drain()
	return l
}

// RecordAsync enqueues rec without blocking. When the queue is full the
// oldest unlogged record is dropped and counted so the newest one fits.
func (l *Logger) RecordAsync(rec Record) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		l.countDrop()
		return
	}
	select {
	case l.queue <- rec:
		return
	default:
	}
	// Full: evict the oldest and retry once. If a concurrent writer raced us
	// into the freed slot, the new record is the one dropped.
	select {
	case <-l.queue:
		l.countDrop()
	default:
	}
	select {
	case l.queue <- rec:
	default:
		l.countDrop()
	}
}

// Dropped returns the number of records lost to overload or persistence
// failure.
func (l *Logger) Dropped() uint64 {
	return l.dropped.Load()
}

// QueueLen returns the number of records waiting to be persisted.
func (l *Logger) QueueLen() int {
	return len(l.queue)
}

// Close stops accepting records and drains the queue.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Logger) countDrop() {
	l.dropped.Add(1)
	droppedTotal.Inc()
}

func (l *Logger) drain() {
	defer l.wg.Done()
	for rec := range l.queue {
		l.persist(rec)
	}
}

// persist writes one record with bounded retries; a record that still fails
// is dropped and counted, never surfaced to the request path. Each insert is
// retried independently so a failure after the usage row landed never writes
// that row a second time.
func (l *Logger) persist(rec Record) {
	ctx := context.Background()
	backoff := l.retryBase
	usageDone := false
	for attempt := 1; ; attempt++ {
		err := l.writeOnce(ctx, rec, &usageDone)
		if err == nil {
			return
		}
		if attempt >= l.retryAttempts {
			l.countDrop()
			l.log.Error().Err(err).Str("endpoint", rec.Endpoint).Str("session_id", rec.SessionID).
				Int("attempts", attempt).Msg("usage record lost after retries")
			return
		}
		l.log.Warn().Err(err).Int("attempt", attempt).Msg("usage persist failed, retrying")
		time.Sleep(backoff)
		backoff *= 2
	}
}

func (l *Logger) writeOnce(ctx context.Context, rec Record, usageDone *bool) error {
	if !*usageDone {
		if err := l.sink.InsertUsageRecord(ctx, rec); err != nil {
			return err
		}
		*usageDone = true
	}
	// Conversation rows only exist for successful generations.
	if rec.Status == "ok" {
		return l.sink.InsertConversationTurn(ctx, rec)
	}
	return nil
}
