package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeSink records inserts and can be scripted to fail.
type fakeSink struct {
	mu          sync.Mutex
	records     []Record
	turns       []Record
	failFor     int // fail the next N usage inserts
	failTurnFor int // fail the next N conversation inserts
	block       chan struct{}
}

func (f *fakeSink) InsertUsageRecord(ctx context.Context, rec Record) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor > 0 {
		f.failFor--
		return errors.New("db unavailable")
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeSink) InsertConversationTurn(ctx context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTurnFor > 0 {
		f.failTurnFor--
		return errors.New("db unavailable")
	}
	f.turns = append(f.turns, rec)
	return nil
}

func (f *fakeSink) usageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeSink) turnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turns)
}

func TestRecordAsyncPersists(t *testing.T) {
	sink := &fakeSink{}
	l := New(8, sink, zerolog.Nop())
	l.RecordAsync(Record{Endpoint: "/v1/completions", Status: "ok", UserMessage: "hi", AssistantResponse: "hello"})
	l.Close()
	if sink.usageCount() != 1 {
		t.Fatalf("expected 1 usage record, got %d", sink.usageCount())
	}
	if sink.turnCount() != 1 {
		t.Fatalf("expected 1 conversation turn for ok status, got %d", sink.turnCount())
	}
}

func TestFailedRequestSkipsConversationTurn(t *testing.T) {
	sink := &fakeSink{}
	l := New(8, sink, zerolog.Nop())
	l.RecordAsync(Record{Endpoint: "/v1/completions", Status: "timeout"})
	l.Close()
	if sink.usageCount() != 1 {
		t.Fatalf("expected 1 usage record, got %d", sink.usageCount())
	}
	if sink.turnCount() != 0 {
		t.Fatalf("expected no conversation turn for failed request, got %d", sink.turnCount())
	}
}

func TestOverloadDropsOldest(t *testing.T) {
	// Worker blocked so the queue actually fills.
	sink := &fakeSink{block: make(chan struct{})}
	l := New(2, sink, zerolog.Nop())

	for i := 0; i < 5; i++ {
		l.RecordAsync(Record{Endpoint: "e", SessionID: string(rune('a' + i)), Status: "ok"})
	}
	if d := l.Dropped(); d == 0 {
		t.Fatalf("expected drops under overload, got %d", d)
	}
	close(sink.block)
	l.Close()
	// Never more than capacity+1 records persisted (one may be in flight).
	if n := sink.usageCount(); n > 3 {
		t.Fatalf("persisted %d records with queue cap 2", n)
	}
}

func TestPersistRetriesThenSucceeds(t *testing.T) {
	sink := &fakeSink{failFor: 2}
	l := New(8, sink, zerolog.Nop())
	l.retryBase = time.Millisecond
	l.RecordAsync(Record{Endpoint: "e", Status: "ok"})
	l.Close()
	if sink.usageCount() != 1 {
		t.Fatalf("expected record persisted after retries, got %d", sink.usageCount())
	}
	if d := l.Dropped(); d != 0 {
		t.Fatalf("expected no drops, got %d", d)
	}
}

func TestPersistGivesUpAfterBoundedAttempts(t *testing.T) {
	sink := &fakeSink{failFor: 100}
	l := New(8, sink, zerolog.Nop())
	l.retryBase = time.Millisecond
	l.RecordAsync(Record{Endpoint: "e", Status: "ok"})
	l.Close()
	if sink.usageCount() != 0 {
		t.Fatalf("expected no persisted records, got %d", sink.usageCount())
	}
	if d := l.Dropped(); d != 1 {
		t.Fatalf("expected 1 dropped record, got %d", d)
	}
}

func TestRecordAfterCloseCounted(t *testing.T) {
	sink := &fakeSink{}
	l := New(8, sink, zerolog.Nop())
	l.Close()
	l.RecordAsync(Record{Endpoint: "e"})
	if d := l.Dropped(); d != 1 {
		t.Fatalf("expected post-close record counted as dropped, got %d", d)
	}
}

func TestPartialFailureWritesUsageRowOnce(t *testing.T) {
	sink := &fakeSink{failTurnFor: 1}
	l := New(8, sink, zerolog.Nop())
	l.retryBase = time.Millisecond
	l.RecordAsync(Record{Endpoint: "/v1/chat/completions", Status: "ok", UserMessage: "hi", AssistantResponse: "hello"})
	l.Close()
	if got := sink.usageCount(); got != 1 {
		t.Fatalf("usage row written %d times, want exactly 1", got)
	}
	if got := sink.turnCount(); got != 1 {
		t.Fatalf("conversation row written %d times, want 1 after retry", got)
	}
	if l.Dropped() != 0 {
		t.Fatalf("record should not be counted dropped, got %d", l.Dropped())
	}
}

func TestPartialFailureExhaustedKeepsSingleUsageRow(t *testing.T) {
	sink := &fakeSink{failTurnFor: 10}
	l := New(8, sink, zerolog.Nop())
	l.retryBase = time.Millisecond
	l.RecordAsync(Record{Endpoint: "/v1/chat/completions", Status: "ok", UserMessage: "hi", AssistantResponse: "hello"})
	l.Close()
	if got := sink.usageCount(); got != 1 {
		t.Fatalf("usage row written %d times, want exactly 1", got)
	}
	if got := sink.turnCount(); got != 0 {
		t.Fatalf("conversation row should not land, got %d", got)
	}
	if l.Dropped() != 1 {
		t.Fatalf("exhausted retries should count one drop, got %d", l.Dropped())
	}
}
