// Package supervisor owns the lifecycle of the single local llama-server
// process: start, periodic health probing, restart on crash with bounded
// backoff, and graceful shutdown. All other components only read its health.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Health is the supervisor's view of the model process.
type Health string

const (
	HealthStarting      Health = "starting"
	HealthReady         Health = "ready"
	HealthDegraded      Health = "degraded"
	HealthCrashed       Health = "crashed"
	HealthRestarting    Health = "restarting"
	HealthUnrecoverable Health = "unrecoverable"
	HealthShuttingDown  Health = "shutting_down"
)

// Prober checks whether the model process answers its health endpoint.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Config holds supervisor tunables. Zero durations/counts get defaults.
type Config struct {
	Bin       string
	ModelPath string
	Host      string
	Port      int
	CtxSize   int
	Threads   int
	BatchSize int
	GPULayers int
	ExtraArgs []string

	StartupTimeout    time.Duration
	ProbeInterval     time.Duration
	DegradedThreshold int
	CrashThreshold    int
	MaxRestarts       int
	ShutdownGrace     time.Duration
	BackoffBase       time.Duration
	BackoffCap        time.Duration
}

const (
	defaultStartupTimeout    = 30 * time.Second
	defaultProbeInterval     = 5 * time.Second
	defaultDegradedThreshold = 3
	defaultCrashThreshold    = 5
	defaultMaxRestarts       = 5
	defaultShutdownGrace     = 5 * time.Second
	defaultBackoffBase       = time.Second
	defaultBackoffCap        = 30 * time.Second

	startupPollInterval = 500 * time.Millisecond
	probeTimeout        = 2 * time.Second
)

func (c *Config) applyDefaults() {
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = defaultStartupTimeout
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = defaultProbeInterval
	}
	if c.DegradedThreshold <= 0 {
		c.DegradedThreshold = defaultDegradedThreshold
	}
	if c.CrashThreshold <= 0 {
		c.CrashThreshold = defaultCrashThreshold
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = defaultMaxRestarts
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = defaultShutdownGrace
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = defaultBackoffCap
	}
}

// Supervisor guarantees at most one live model process and exposes its
// health state to readers without blocking.
type Supervisor struct {
	cfg    Config
	prober Prober
	log    zerolog.Logger
	events EventPublisher

	// spawn is swappable for tests; defaults to launching llama-server.
	spawn func() (process, error)

	mu       sync.RWMutex
	health   Health
	lastErr  string
	failures int
	restarts int
	proc     process

	done     chan struct{}
	stopCtx  context.Context
	stopFn   context.CancelFunc
	loopWG   sync.WaitGroup
	shutOnce sync.Once
}

// Snapshot is a read-only projection of supervisor state.
type Snapshot struct {
	Health   Health
	PID      int
	Restarts int
	Failures int
	Err      string
}

// New constructs a Supervisor. Call Start to launch the process.
func New(cfg Config, prober Prober, log zerolog.Logger) *Supervisor {
	cfg.applyDefaults()
	s := &Supervisor{
		cfg:    cfg,
		prober: prober,
		log:    log.With().Str("component", "supervisor").Logger(),
		events: noopPublisher{},
		health: HealthStarting,
		done:   make(chan struct{}),
	}
	// stopCtx bounds restart-path startup polling so Shutdown never waits
	// out a full startup timeout.
	s.stopCtx, s.stopFn = context.WithCancel(context.Background())
	s.spawn = func() (process, error) { return startLlamaProcess(s.cfg) }
	return s
}

// SetEventPublisher installs a publisher for state-transition events.
func (s *Supervisor) SetEventPublisher(p EventPublisher) {
	if p == nil {
		s.events = noopPublisher{}
		return
	}
	s.events = p
}

// Health returns the current health state without blocking on process work.
func (s *Supervisor) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// Snapshot returns the current state for /status reporting.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid := 0
	if s.proc != nil {
		pid = s.proc.PID()
	}
	return Snapshot{Health: s.health, PID: pid, Restarts: s.restarts, Failures: s.failures, Err: s.lastErr}
}

// Start launches the model process and blocks until the first successful
// health probe or the startup timeout. On success the probe loop runs until
// Shutdown.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.startProcess(ctx); err != nil {
		return err
	}
	s.loopWG.Add(1)
	go s.probeLoop()
	return nil
}

// startProcess spawns the binary and waits for readiness.
func (s *Supervisor) startProcess(ctx context.Context) error {
	s.setHealth(HealthStarting, "")
	proc, err := s.spawn()
	if err != nil {
		s.setHealth(HealthCrashed, err.Error())
		return err
	}
	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()
	s.log.Info().Int("pid", proc.PID()).Str("bin", s.cfg.Bin).Str("model", s.cfg.ModelPath).Msg("model process started")
	s.events.Publish(Event{Name: "process_start", Fields: map[string]any{"pid": proc.PID()}})

	deadline := time.Now().Add(s.cfg.StartupTimeout)
	for {
		if proc.Exited() {
			tail := proc.StderrTail()
			s.stopProcessLocked()
			err := startupFailedError{msg: "model process exited before ready", stderr: tail}
			s.setHealth(HealthCrashed, err.Error())
			return err
		}
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		ok := s.prober.Probe(pctx)
		cancel()
		if ok {
			s.mu.Lock()
			s.failures = 0
			s.mu.Unlock()
			s.setHealth(HealthReady, "")
			s.log.Info().Int("pid", proc.PID()).Msg("model process ready")
			return nil
		}
		if ctx.Err() != nil {
			s.stopProcessLocked()
			s.setHealth(HealthCrashed, ctx.Err().Error())
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			s.stopProcessLocked()
			err := startupTimeoutError{after: s.cfg.StartupTimeout}
			s.setHealth(HealthCrashed, err.Error())
			return err
		}
		select {
		case <-time.After(startupPollInterval):
		case <-ctx.Done():
		}
	}
}

// Shutdown transitions to ShuttingDown, stops the probe loop and terminates
// the process: SIGTERM, then kill after the grace period. Safe to call
// concurrently with a restart; the process is never left orphaned.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.shutOnce.Do(func() {
		s.setHealth(HealthShuttingDown, "")
		s.stopFn()
		close(s.done)
	})
	s.loopWG.Wait()
	s.stopProcessLocked()
	return ctx.Err()
}

// stopProcessLocked detaches the current process under the lock and then
// terminates it. Idempotent.
func (s *Supervisor) stopProcessLocked() {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	s.mu.Unlock()
	if proc == nil {
		return
	}
	s.log.Info().Int("pid", proc.PID()).Msg("stopping model process")
	proc.Terminate(s.cfg.ShutdownGrace)
	s.events.Publish(Event{Name: "process_stop", Fields: map[string]any{"pid": proc.PID()}})
}

func (s *Supervisor) shuttingDown() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// setHealth records a state transition with logging, metrics and events.
func (s *Supervisor) setHealth(h Health, reason string) {
	s.mu.Lock()
	prev := s.health
	if prev == HealthShuttingDown && h != HealthShuttingDown {
		// ShuttingDown is terminal
		s.mu.Unlock()
		return
	}
	s.health = h
	s.lastErr = reason
	s.mu.Unlock()
	if prev == h {
		return
	}
	setHealthMetric(h)
	ev := s.log.Info()
	if h == HealthCrashed || h == HealthUnrecoverable {
		ev = s.log.Error()
	}
	ev.Str("from", string(prev)).Str("to", string(h)).Str("reason", reason).Msg("health transition")
	s.events.Publish(Event{Name: "health_transition", Fields: map[string]any{"from": string(prev), "to": string(h), "reason": reason}})
}
