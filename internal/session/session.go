package session

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Turn roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged message within a session. Immutable once appended.
type Turn struct {
	Role    string
	Content string
	At      time.Time
}

// session holds the ordered turns for one conversation. Turns are strictly
// append-ordered; the dispatcher serializes writers per session.
type session struct {
	id         string
	turns      []Turn
	createdAt  time.Time
	lastActive time.Time
}

// Store is an in-memory session map with idle-TTL eviction and a per-session
// turn cap. A background sweeper evicts idle sessions until Close is called.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	ttl          time.Duration
	turnCap      int
	contextTurns int

	log  zerolog.Logger
	done chan struct{}
	wg   sync.WaitGroup
}

const sweepInterval = time.Minute

// NewStore constructs a Store and starts its eviction sweeper.
func NewStore(ttl time.Duration, turnCap, contextTurns int, log zerolog.Logger) *Store {
	s := &Store{
		sessions:     make(map[string]*session),
		ttl:          ttl,
		turnCap:      turnCap,
		contextTurns: contextTurns,
		log:          log,
		done:         make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// Close stops the sweeper.
func (s *Store) Close() {
	close(s.done)
	s.wg.Wait()
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.sweepExpired(time.Now())
		case <-s.done:
			return
		}
	}
}

// sweepExpired evicts sessions idle for at least the TTL.
func (s *Store) sweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActive) >= s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.log.Debug().Int("evicted", evicted).Int("remaining", len(s.sessions)).Msg("session sweep")
	}
	return evicted
}

// Resolve maps a request's session id onto the id to use. A known id is
// touched and returned as-is; an empty or unknown id yields a fresh id that
// is not materialized until the request is admitted and seeded, so rejected
// requests leave no session behind.
func (s *Store) Resolve(id string) (sid string, created bool) {
	if id != "" {
		s.mu.Lock()
		if sess, ok := s.sessions[id]; ok {
			sess.lastActive = time.Now()
			s.mu.Unlock()
			return id, false
		}
		s.mu.Unlock()
		return id, true
	}
	return ulid.Make().String(), true
}

// Seed creates the session with the given history unless it already exists.
// A concurrent request that won the race keeps its turns untouched.
func (s *Store) Seed(id string, turns []Turn) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return
	}
	sess := &session{id: id, createdAt: now, lastActive: now}
	for _, t := range turns {
		if t.At.IsZero() {
			t.At = now
		}
		sess.turns = append(sess.turns, t)
	}
	s.sessions[id] = sess
}

// Exists reports whether a session id is currently live.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Turns returns a copy of the session's turns in append order.
func (s *Store) Turns(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// Append adds a turn to the session, creating it if needed. When the turn cap
// is exceeded the oldest non-system turn is pruned, so a leading system turn
// survives indefinitely.
func (s *Store) Append(id string, t Turn) {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		now := time.Now()
		sess = &session{id: id, createdAt: now}
		s.sessions[id] = sess
	}
	sess.turns = append(sess.turns, t)
	sess.lastActive = t.At
	if len(sess.turns) > s.turnCap {
		drop := 0
		if sess.turns[0].Role == RoleSystem && len(sess.turns) > 1 {
			drop = 1
		}
		// remove the oldest prunable turn
		sess.turns = append(sess.turns[:drop], sess.turns[drop+1:]...)
	}
}

// BuildPrompt composes the inference prompt for a session: the system turn
// (if any) first, then at most contextTurns of the most recent history
// rendered oldest-first, ending with the new user message. The same inputs
// always produce the same prompt.
func (s *Store) BuildPrompt(id, userMsg string) string {
	turns := s.Turns(id)
	return renderPrompt(selectContext(turns, s.contextTurns), userMsg)
}

// selectContext applies the truncation policy: keep the leading system turn
// when present and the newest budget-many other turns, preserving order.
func selectContext(turns []Turn, budget int) []Turn {
	var sys *Turn
	rest := turns
	if len(turns) > 0 && turns[0].Role == RoleSystem {
		sys = &turns[0]
		rest = turns[1:]
	}
	if budget >= 0 && len(rest) > budget {
		rest = rest[len(rest)-budget:]
	}
	out := make([]Turn, 0, len(rest)+1)
	if sys != nil {
		out = append(out, *sys)
	}
	return append(out, rest...)
}

func renderPrompt(turns []Turn, userMsg string) string {
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			b.WriteString(t.Content)
			b.WriteString("\n")
		case RoleUser:
			b.WriteString("User: ")
			b.WriteString(t.Content)
			b.WriteString("\n")
		case RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(t.Content)
			b.WriteString("\n")
		}
	}
	b.WriteString("User: ")
	b.WriteString(userMsg)
	b.WriteString("\nAssistant:")
	return b.String()
}
