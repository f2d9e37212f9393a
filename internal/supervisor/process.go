package supervisor

import (
	"bytes"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// process abstracts the managed OS process so tests can substitute fakes.
type process interface {
	PID() int
	Exited() bool
	StderrTail() string
	// Terminate sends SIGTERM, waits up to grace, then kills.
	Terminate(grace time.Duration)
}

// execProcess wraps a running exec.Cmd and keeps a bounded stderr tail for
// diagnostics.
type execProcess struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer

	mu     sync.Mutex
	exited bool
	waitCh chan struct{}
}

const stderrTailBytes = 4096

// llamaArgs builds the llama-server argument list from config.
func llamaArgs(cfg Config) []string {
	args := []string{
		"-m", cfg.ModelPath,
		"--host", cfg.Host,
		"--port", fmt.Sprint(cfg.Port),
	}
	if cfg.CtxSize > 0 {
		args = append(args, "--ctx-size", fmt.Sprint(cfg.CtxSize))
	}
	if cfg.Threads > 0 {
		args = append(args, "--threads", fmt.Sprint(cfg.Threads))
	}
	if cfg.BatchSize > 0 {
		args = append(args, "--batch-size", fmt.Sprint(cfg.BatchSize))
	}
	if cfg.GPULayers > 0 {
		args = append(args, "--n-gpu-layers", fmt.Sprint(cfg.GPULayers))
	}
	args = append(args, "--parallel", "1", "--cont-batching")
	if len(cfg.ExtraArgs) > 0 {
		args = append(args, cfg.ExtraArgs...)
	}
	return args
}

// startLlamaProcess spawns llama-server and begins reaping it in the
// background so Exited() reflects early deaths.
func startLlamaProcess(cfg Config) (process, error) {
	cmd := exec.Command(cfg.Bin, llamaArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Bin, err)
	}
	p := &execProcess{cmd: cmd, stderr: &stderr, waitCh: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		p.mu.Lock()
		p.exited = true
		p.mu.Unlock()
		close(p.waitCh)
	}()
	return p, nil
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

func (p *execProcess) StderrTail() string {
	s := p.stderr.String()
	if len(s) > stderrTailBytes {
		s = s[len(s)-stderrTailBytes:]
	}
	return s
}

func (p *execProcess) Terminate(grace time.Duration) {
	if p.cmd.Process == nil {
		return
	}
	if p.Exited() {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.waitCh:
	case <-time.After(grace):
		_ = p.cmd.Process.Kill()
		<-p.waitCh
	}
}
