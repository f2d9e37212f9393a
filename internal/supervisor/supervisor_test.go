package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeProc satisfies process without an OS process.
type fakeProc struct {
	pid        int
	exited     atomic.Bool
	terminated atomic.Int32
}

func (p *fakeProc) PID() int           { return p.pid }
func (p *fakeProc) Exited() bool       { return p.exited.Load() }
func (p *fakeProc) StderrTail() string { return "" }
func (p *fakeProc) Terminate(time.Duration) {
	p.terminated.Add(1)
	p.exited.Store(true)
}

// fakeProber flips between healthy and unhealthy under a lock.
type fakeProber struct {
	mu      sync.Mutex
	healthy bool
	probes  int
}

func (f *fakeProber) Probe(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.healthy
}

func (f *fakeProber) set(h bool) {
	f.mu.Lock()
	f.healthy = h
	f.mu.Unlock()
}

func newTestSupervisor(cfg Config, prober Prober) (*Supervisor, *[]*fakeProc) {
	s := New(cfg, prober, zerolog.Nop())
	procs := &[]*fakeProc{}
	var mu sync.Mutex
	var nextPID atomic.Int32
	s.spawn = func() (process, error) {
		p := &fakeProc{pid: int(nextPID.Add(1))}
		mu.Lock()
		*procs = append(*procs, p)
		mu.Unlock()
		return p, nil
	}
	return s, procs
}

func waitForHealth(t *testing.T, s *Supervisor, want Health, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if s.Health() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("health never reached %s, is %s", want, s.Health())
}

func TestStartBecomesReady(t *testing.T) {
	prober := &fakeProber{healthy: true}
	s, _ := newTestSupervisor(Config{ProbeInterval: time.Hour}, prober)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown(context.Background())
	if h := s.Health(); h != HealthReady {
		t.Fatalf("expected ready, got %s", h)
	}
}

func TestStartupTimeout(t *testing.T) {
	prober := &fakeProber{healthy: false}
	s, procs := newTestSupervisor(Config{StartupTimeout: 100 * time.Millisecond}, prober)
	err := s.Start(context.Background())
	if err == nil || !IsStartupTimeout(err) {
		t.Fatalf("expected startup timeout, got %v", err)
	}
	if h := s.Health(); h != HealthCrashed {
		t.Fatalf("expected crashed after startup timeout, got %s", h)
	}
	if len(*procs) != 1 || (*procs)[0].terminated.Load() == 0 {
		t.Fatalf("spawned process was not terminated")
	}
}

func TestStartupEarlyExit(t *testing.T) {
	prober := &fakeProber{healthy: false}
	s, _ := newTestSupervisor(Config{}, prober)
	orig := s.spawn
	s.spawn = func() (process, error) {
		p, err := orig()
		if err == nil {
			p.(*fakeProc).exited.Store(true)
		}
		return p, err
	}
	err := s.Start(context.Background())
	if err == nil || !IsStartupFailed(err) {
		t.Fatalf("expected startup failure, got %v", err)
	}
}

func TestProbeFailuresDegradeThenCrashThenRestart(t *testing.T) {
	prober := &fakeProber{healthy: true}
	cfg := Config{
		ProbeInterval:     10 * time.Millisecond,
		DegradedThreshold: 1,
		CrashThreshold:    2,
		MaxRestarts:       3,
		BackoffBase:       time.Millisecond,
		BackoffCap:        time.Millisecond,
	}
	s, procs := newTestSupervisor(cfg, prober)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown(context.Background())

	prober.set(false)
	// wait until the crash was detected and a restart attempt began
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && s.Snapshot().Restarts == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	snap := s.Snapshot()
	if snap.Restarts < 1 {
		t.Fatalf("expected at least one restart attempt, got %d", snap.Restarts)
	}
	// let the replacement come back healthy
	prober.set(true)
	waitForHealth(t, s, HealthReady, 5*time.Second)
	if len(*procs) < 2 {
		t.Fatalf("expected a replacement process, got %d spawns", len(*procs))
	}
}

func TestUnrecoverableAfterRestartBudget(t *testing.T) {
	prober := &fakeProber{healthy: true}
	cfg := Config{
		ProbeInterval:     10 * time.Millisecond,
		DegradedThreshold: 1,
		CrashThreshold:    1,
		MaxRestarts:       1,
		StartupTimeout:    50 * time.Millisecond,
		BackoffBase:       time.Millisecond,
		BackoffCap:        time.Millisecond,
	}
	s, _ := newTestSupervisor(cfg, prober)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown(context.Background())

	prober.set(false)
	waitForHealth(t, s, HealthUnrecoverable, 5*time.Second)
	// it stays there
	time.Sleep(50 * time.Millisecond)
	if h := s.Health(); h != HealthUnrecoverable {
		t.Fatalf("expected unrecoverable to be sticky, got %s", h)
	}
}

func TestMarkUnhealthyDegrades(t *testing.T) {
	prober := &fakeProber{healthy: true}
	s, _ := newTestSupervisor(Config{ProbeInterval: time.Hour, DegradedThreshold: 2, CrashThreshold: 10}, prober)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Shutdown(context.Background())

	s.MarkUnhealthy("inference error")
	if h := s.Health(); h != HealthReady {
		t.Fatalf("one signal should not degrade, got %s", h)
	}
	s.MarkUnhealthy("inference error")
	if h := s.Health(); h != HealthDegraded {
		t.Fatalf("expected degraded after threshold, got %s", h)
	}
}

func TestShutdownTerminatesProcess(t *testing.T) {
	prober := &fakeProber{healthy: true}
	s, procs := newTestSupervisor(Config{ProbeInterval: time.Hour}, prober)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if h := s.Health(); h != HealthShuttingDown {
		t.Fatalf("expected shutting_down, got %s", h)
	}
	if (*procs)[0].terminated.Load() == 0 {
		t.Fatalf("process not terminated on shutdown")
	}
	// idempotent
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}

func TestLlamaArgs(t *testing.T) {
	cfg := Config{
		ModelPath: "/models/m.gguf",
		Host:      "127.0.0.1",
		Port:      8081,
		CtxSize:   4096,
		Threads:   8,
		BatchSize: 512,
		GPULayers: 20,
		ExtraArgs: []string{"--no-warmup"},
	}
	args := llamaArgs(cfg)
	want := []string{
		"-m", "/models/m.gguf",
		"--host", "127.0.0.1",
		"--port", "8081",
		"--ctx-size", "4096",
		"--threads", "8",
		"--batch-size", "512",
		"--n-gpu-layers", "20",
		"--parallel", "1",
		"--cont-batching",
		"--no-warmup",
	}
	if len(args) != len(want) {
		t.Fatalf("args length %d != %d: %v", len(args), len(want), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: got %q want %q", i, args[i], want[i])
		}
	}
}

func TestHealthTransitionsPublishEvents(t *testing.T) {
	prober := &fakeProber{healthy: true}
	s, _ := newTestSupervisor(Config{ProbeInterval: time.Hour}, prober)
	pub := NewMemoryPublisher()
	s.SetEventPublisher(pub)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForHealth(t, s, HealthReady, time.Second)
	_ = s.Shutdown(context.Background())

	seen := map[string]bool{}
	for _, e := range pub.Events() {
		seen[e.Name] = true
	}
	for _, want := range []string{"health_transition", "process_stop"} {
		if !seen[want] {
			t.Fatalf("missing event %q, got %v", want, pub.Events())
		}
	}
}

func TestShutdownInterruptsRestartStartupPoll(t *testing.T) {
	prober := &fakeProber{healthy: true}
	cfg := Config{
		ProbeInterval:     10 * time.Millisecond,
		DegradedThreshold: 1,
		CrashThreshold:    1,
		MaxRestarts:       5,
		StartupTimeout:    30 * time.Second,
		BackoffBase:       time.Millisecond,
		BackoffCap:        time.Millisecond,
	}
	s, _ := newTestSupervisor(cfg, prober)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	// drive it into a restart whose replacement never comes up
	prober.set(false)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && s.Snapshot().Restarts == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Snapshot().Restarts == 0 {
		t.Fatal("restart attempt never began")
	}

	begun := time.Now()
	s.Shutdown(context.Background())
	if took := time.Since(begun); took > 2*time.Second {
		t.Fatalf("shutdown waited %v on the restart startup poll", took)
	}
	if h := s.Health(); h != HealthShuttingDown {
		t.Fatalf("expected shutting_down, got %s", h)
	}
}
