package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(turnCap, contextTurns int) *Store {
	return NewStore(30*time.Minute, turnCap, contextTurns, zerolog.Nop())
}

func TestResolveCreatesAndReuses(t *testing.T) {
	s := newTestStore(10, 8)
	defer s.Close()

	id, created := s.Resolve("")
	if !created || id == "" {
		t.Fatalf("expected fresh session, got id=%q created=%v", id, created)
	}
	if s.Exists(id) {
		t.Fatalf("resolve alone must not materialize session %q", id)
	}
	s.Seed(id, nil)
	id2, created2 := s.Resolve(id)
	if created2 || id2 != id {
		t.Fatalf("expected reuse of %q, got id=%q created=%v", id, id2, created2)
	}
	// Caller-supplied unknown id is adopted rather than replaced.
	id3, created3 := s.Resolve("ext-42")
	if !created3 || id3 != "ext-42" {
		t.Fatalf("expected adopted id ext-42, got id=%q created=%v", id3, created3)
	}
}

func TestSeedKeepsExistingTurns(t *testing.T) {
	s := newTestStore(10, 8)
	defer s.Close()

	s.Seed("s1", []Turn{{Role: RoleSystem, Content: "be terse"}, {Role: RoleUser, Content: "hi"}})
	if got := len(s.Turns("s1")); got != 2 {
		t.Fatalf("expected 2 seeded turns, got %d", got)
	}
	// A second seed for a live session is a no-op.
	s.Seed("s1", []Turn{{Role: RoleUser, Content: "other"}})
	turns := s.Turns("s1")
	if len(turns) != 2 || turns[1].Content != "hi" {
		t.Fatalf("reseed must not touch existing turns, got %+v", turns)
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	s := newTestStore(10, 8)
	defer s.Close()

	id, _ := s.Resolve("")
	for i := 0; i < 5; i++ {
		s.Append(id, Turn{Role: RoleUser, Content: fmt.Sprintf("u%d", i)})
		s.Append(id, Turn{Role: RoleAssistant, Content: fmt.Sprintf("a%d", i)})
	}
	turns := s.Turns(id)
	if len(turns) != 10 {
		t.Fatalf("expected 10 turns, got %d", len(turns))
	}
	for i := 0; i < 5; i++ {
		if turns[2*i].Content != fmt.Sprintf("u%d", i) || turns[2*i+1].Content != fmt.Sprintf("a%d", i) {
			t.Fatalf("turns out of order at pair %d: %+v", i, turns[2*i:2*i+2])
		}
	}
}

func TestTurnCapPrunesOldestNonSystem(t *testing.T) {
	s := newTestStore(10, 8)
	defer s.Close()

	id, _ := s.Resolve("")
	s.Append(id, Turn{Role: RoleSystem, Content: "be terse"})
	for i := 0; i < 10; i++ {
		s.Append(id, Turn{Role: RoleUser, Content: fmt.Sprintf("u%d", i)})
	}
	turns := s.Turns(id)
	if len(turns) != 10 {
		t.Fatalf("expected 10 turns after pruning, got %d", len(turns))
	}
	if turns[0].Role != RoleSystem {
		t.Fatalf("system turn was pruned: %+v", turns[0])
	}
	// u0 is the oldest non-system turn, so it is the one dropped.
	if turns[1].Content != "u1" {
		t.Fatalf("expected oldest non-system turn dropped, second turn is %q", turns[1].Content)
	}
}

func TestBuildPromptFormat(t *testing.T) {
	s := newTestStore(10, 8)
	defer s.Close()

	id, _ := s.Resolve("")
	s.Append(id, Turn{Role: RoleUser, Content: "hi"})
	s.Append(id, Turn{Role: RoleAssistant, Content: "hello"})

	got := s.BuildPrompt(id, "how are you?")
	want := "User: hi\nAssistant: hello\nUser: how are you?\nAssistant:"
	if got != want {
		t.Fatalf("prompt mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestBuildPromptTruncationDeterministic(t *testing.T) {
	s := newTestStore(64, 4)
	defer s.Close()

	id, _ := s.Resolve("")
	s.Append(id, Turn{Role: RoleSystem, Content: "sys"})
	for i := 0; i < 20; i++ {
		s.Append(id, Turn{Role: RoleUser, Content: fmt.Sprintf("u%d", i)})
	}
	first := s.BuildPrompt(id, "final")
	second := s.BuildPrompt(id, "final")
	if first != second {
		t.Fatalf("truncation not deterministic:\n%q\n%q", first, second)
	}
	// System turn survives truncation; oldest user turns do not.
	if want := "sys\nUser: u16\nUser: u17\nUser: u18\nUser: u19\nUser: final\nAssistant:"; first != want {
		t.Fatalf("truncated prompt mismatch:\n got %q\nwant %q", first, want)
	}
}

func TestTruncationIdempotent(t *testing.T) {
	turns := []Turn{{Role: RoleSystem, Content: "sys"}}
	for i := 0; i < 12; i++ {
		turns = append(turns, Turn{Role: RoleUser, Content: fmt.Sprintf("u%d", i)})
	}
	once := selectContext(turns, 6)
	twice := selectContext(once, 6)
	if len(once) != len(twice) {
		t.Fatalf("length changed on second pass: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("turn %d changed on second pass: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestSweepExpired(t *testing.T) {
	s := newTestStore(10, 8)
	defer s.Close()

	id, _ := s.Resolve("")
	s.Append(id, Turn{Role: RoleUser, Content: "hi"})
	if n := s.sweepExpired(time.Now()); n != 0 {
		t.Fatalf("expected 0 evictions, got %d", n)
	}
	if n := s.sweepExpired(time.Now().Add(31 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if s.Exists(id) {
		t.Fatalf("session still present after sweep")
	}
}
