package supervisor

import (
	"context"
	"fmt"
	"time"
)

// probeLoop runs until Shutdown. Each tick probes the process; consecutive
// failures walk the state machine Ready -> Degraded -> Crashed, and Crashed
// triggers a restart with exponential backoff up to MaxRestarts, after which
// the supervisor reports Unrecoverable and stops retrying.
func (s *Supervisor) probeLoop() {
	defer s.loopWG.Done()
	t := time.NewTicker(s.cfg.ProbeInterval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
		}
		if h := s.Health(); h == HealthUnrecoverable || h == HealthShuttingDown {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		ok := s.prober.Probe(ctx)
		cancel()
		if ok {
			s.mu.Lock()
			s.failures = 0
			s.mu.Unlock()
			s.setHealth(HealthReady, "")
			continue
		}
		if s.recordFailure("health probe failed") {
			if !s.restartWithBackoff() {
				return
			}
		}
	}
}

// recordFailure bumps the consecutive-failure counter and applies the
// degraded/crash thresholds. It returns true when the crash threshold was
// reached and a restart should be attempted.
func (s *Supervisor) recordFailure(reason string) bool {
	s.mu.Lock()
	s.failures++
	n := s.failures
	s.mu.Unlock()
	probeFailures.Inc()
	switch {
	case n >= s.cfg.CrashThreshold:
		s.setHealth(HealthCrashed, fmt.Sprintf("%s (%d consecutive)", reason, n))
		return true
	case n >= s.cfg.DegradedThreshold:
		s.setHealth(HealthDegraded, fmt.Sprintf("%s (%d consecutive)", reason, n))
	}
	return false
}

// MarkUnhealthy is the dispatcher's early signal: a process-level inference
// error counts like a failed probe, so repeated errors degrade health before
// the next probe tick.
func (s *Supervisor) MarkUnhealthy(reason string) {
	if h := s.Health(); h == HealthUnrecoverable || h == HealthShuttingDown {
		return
	}
	s.recordFailure(reason)
}

// restartWithBackoff replaces the crashed process. Returns false when the
// restart budget is exhausted (Unrecoverable) or shutdown began.
func (s *Supervisor) restartWithBackoff() bool {
	for {
		if s.shuttingDown() {
			return false
		}
		s.mu.Lock()
		attempt := s.restarts
		s.mu.Unlock()
		if attempt >= s.cfg.MaxRestarts {
			s.setHealth(HealthUnrecoverable, fmt.Sprintf("restart budget exhausted after %d attempts", attempt))
			s.log.Error().Int("restarts", attempt).Msg("model process unrecoverable, operator intervention required")
			return false
		}

		s.stopProcessLocked()
		s.setHealth(HealthRestarting, "")

		backoff := s.cfg.BackoffBase << uint(attempt)
		if backoff > s.cfg.BackoffCap {
			backoff = s.cfg.BackoffCap
		}
		s.log.Warn().Int("attempt", attempt+1).Dur("backoff", backoff).Msg("restarting model process")
		select {
		case <-time.After(backoff):
		case <-s.done:
			return false
		}

		s.mu.Lock()
		s.restarts++
		s.failures = 0
		s.mu.Unlock()
		restartsTotal.Inc()

		if err := s.startProcess(s.stopCtx); err != nil {
			s.log.Error().Err(err).Msg("restart attempt failed")
			continue
		}
		return true
	}
}
