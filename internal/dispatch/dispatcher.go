// Package dispatch is the admission and orchestration layer: it gates
// requests on process health, maps them onto session state, bounds
// concurrency with a fixed slot pool, and guarantees exactly one usage
// record per admitted request on every exit path.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/llamaclient"
	"inferd/internal/session"
	"inferd/internal/supervisor"
	"inferd/internal/usage"
	"inferd/pkg/types"
)

// Backend performs one blocking generation. Satisfied by llamaclient.Client.
type Backend interface {
	Generate(ctx context.Context, prompt string, p llamaclient.Params) (llamaclient.Result, error)
}

// HealthSource exposes the supervisor's view of the model process.
// Satisfied by supervisor.Supervisor.
type HealthSource interface {
	Health() supervisor.Health
	MarkUnhealthy(reason string)
}

// Recorder accepts usage records without blocking. Satisfied by usage.Logger.
type Recorder interface {
	RecordAsync(usage.Record)
}

// Config holds dispatcher tunables.
type Config struct {
	Slots          int
	SlotWait       time.Duration
	RequestTimeout time.Duration

	ModelName          string
	DefaultTemperature float64
	DefaultMaxTokens   int
	MaxTokensCap       int
}

// Result is a completed generation plus its accounting.
type Result struct {
	Content          string
	SessionID        string
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Dispatcher coordinates sessions, the slot pool, the inference backend and
// usage logging for each inbound request.
type Dispatcher struct {
	cfg      Config
	backend  Backend
	health   HealthSource
	sessions *session.Store
	recorder Recorder
	log      zerolog.Logger

	slotCh *slotPool
	busy   *sessionLocks
}

// New constructs a Dispatcher.
func New(cfg Config, backend Backend, health HealthSource, sessions *session.Store, recorder Recorder, log zerolog.Logger) *Dispatcher {
	if cfg.Slots <= 0 {
		cfg.Slots = 1
	}
	if cfg.MaxTokensCap <= 0 {
		cfg.MaxTokensCap = 4096
	}
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 300
	}
	return &Dispatcher{
		cfg:      cfg,
		backend:  backend,
		health:   health,
		sessions: sessions,
		recorder: recorder,
		log:      log.With().Str("component", "dispatch").Logger(),
		slotCh:   newSlotPool(cfg.Slots),
		busy:     newSessionLocks(),
	}
}

// SlotsInUse reports currently held slots for status reporting.
func (d *Dispatcher) SlotsInUse() int { return d.slotCh.inUse() }

// SlotCapacity reports the configured slot count.
func (d *Dispatcher) SlotCapacity() int { return d.cfg.Slots }

// Chat handles a multi-turn chat completion request.
func (d *Dispatcher) Chat(ctx context.Context, req types.ChatCompletionRequest) (Result, error) {
	if err := d.gateHealth(); err != nil {
		return Result{}, err
	}
	temp, maxTokens, err := d.sampling(req.Temperature, req.MaxTokens)
	if err != nil {
		return Result{}, err
	}
	if len(req.Messages) == 0 {
		return Result{}, ErrValidation("messages must not be empty")
	}
	for i, m := range req.Messages {
		switch m.Role {
		case session.RoleSystem, session.RoleUser, session.RoleAssistant:
		default:
			return Result{}, ErrValidation("message %d has unknown role %q", i, m.Role)
		}
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != session.RoleUser {
		return Result{}, ErrValidation("last message must be from the user")
	}

	sid, created := d.sessions.Resolve(req.SessionID)
	buildPrompt := func() string {
		if created {
			// Materialize the session, carrying any history the caller sent,
			// only once the request actually runs.
			seed := make([]session.Turn, 0, len(req.Messages)-1)
			for _, m := range req.Messages[:len(req.Messages)-1] {
				seed = append(seed, session.Turn{Role: m.Role, Content: m.Content})
			}
			d.sessions.Seed(sid, seed)
		}
		return d.sessions.BuildPrompt(sid, last.Content)
	}
	return d.dispatchPrompt(ctx, "/v1/chat/completions", sid, last.Content, buildPrompt, temp, maxTokens, true)
}

// Complete handles a stateless one-shot completion request. The prompt is
// wrapped in the instruction template the model expects.
func (d *Dispatcher) Complete(ctx context.Context, req types.CompletionRequest) (Result, error) {
	if err := d.gateHealth(); err != nil {
		return Result{}, err
	}
	temp, maxTokens, err := d.sampling(req.Temperature, req.MaxTokens)
	if err != nil {
		return Result{}, err
	}
	if req.Prompt == "" {
		return Result{}, ErrValidation("prompt is required")
	}
	buildPrompt := func() string { return "[INST] " + req.Prompt + " [/INST]" }
	return d.dispatchPrompt(ctx, "/v1/completions", "", req.Prompt, buildPrompt, temp, maxTokens, false)
}

// gateHealth rejects before admission when the process cannot serve.
// Degraded still serves; anything not yet (or no longer) healthy does not.
func (d *Dispatcher) gateHealth() error {
	switch h := d.health.Health(); h {
	case supervisor.HealthReady, supervisor.HealthDegraded:
		return nil
	default:
		rejectionsTotal.WithLabelValues("unavailable").Inc()
		return ErrServiceUnavailable(string(h))
	}
}

// sampling validates and defaults the generation parameters.
func (d *Dispatcher) sampling(temp *float64, maxTokens int) (float64, int, error) {
	t := d.cfg.DefaultTemperature
	if temp != nil {
		t = *temp
	}
	if t < 0 || t > 2 {
		return 0, 0, ErrValidation("temperature must be between 0 and 2")
	}
	if maxTokens < 0 {
		return 0, 0, ErrValidation("max_tokens must be greater than 0")
	}
	if maxTokens == 0 {
		maxTokens = d.cfg.DefaultMaxTokens
	}
	if maxTokens > d.cfg.MaxTokensCap {
		maxTokens = d.cfg.MaxTokensCap
	}
	return t, maxTokens, nil
}

// dispatchPrompt is the admitted-request path: per-session exclusion, slot
// acquisition, the generation call, turn append and the single usage-record
// hand-off. Every return after this point leaves exactly one record behind.
// buildPrompt runs only after the session lock and a slot are held, so the
// prompt always reflects every previously completed turn and rejected
// requests never touch session state.
func (d *Dispatcher) dispatchPrompt(ctx context.Context, endpoint, sid, userMsg string, buildPrompt func() string, temp float64, maxTokens int, appendTurns bool) (Result, error) {
	start := time.Now()
	rec := usage.Record{
		Endpoint:    endpoint,
		SessionID:   sid,
		UserMessage: userMsg,
		ModelName:   d.cfg.ModelName,
		Temperature: temp,
		MaxTokens:   maxTokens,
		CreatedAt:   start,
	}
	defer func() {
		rec.ResponseTime = time.Since(start)
		d.recorder.RecordAsync(rec)
	}()

	// Per-session exclusion: a second in-flight request for the same session
	// is rejected rather than interleaved, so context stays append-ordered.
	if sid != "" {
		release, ok := d.busy.tryAcquire(sid)
		if !ok {
			rec.Status = "session_busy"
			rejectionsTotal.WithLabelValues("session_busy").Inc()
			return Result{}, ErrSessionBusy(sid)
		}
		defer release()
	}

	releaseSlot, err := d.slotCh.acquire(ctx, d.cfg.SlotWait)
	if err != nil {
		if ctx.Err() != nil {
			rec.Status = "cancelled"
			rec.ErrorMessage = ctx.Err().Error()
			return Result{}, err
		}
		rec.Status = "overloaded"
		rejectionsTotal.WithLabelValues("overloaded").Inc()
		return Result{}, ErrOverloaded()
	}
	defer releaseSlot()

	prompt := buildPrompt()
	gctx := ctx
	var cancel context.CancelFunc
	if d.cfg.RequestTimeout > 0 {
		gctx, cancel = context.WithTimeout(ctx, d.cfg.RequestTimeout)
		defer cancel()
	}
	res, err := d.backend.Generate(gctx, prompt, llamaclient.Params{Temperature: temp, MaxTokens: maxTokens})
	latency := time.Since(start)
	inferenceDuration.Observe(latency.Seconds())
	if err != nil {
		switch {
		case ctx.Err() != nil:
			// caller went away; still release the slot and log the attempt
			rec.Status = "cancelled"
			rec.ErrorMessage = ctx.Err().Error()
			return Result{}, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			rec.Status = "timeout"
			rec.ErrorMessage = err.Error()
			return Result{}, ErrInferenceTimeout()
		default:
			rec.Status = "error"
			rec.ErrorMessage = err.Error()
			d.health.MarkUnhealthy("inference error: " + err.Error())
			return Result{}, ErrInference(err)
		}
	}

	if appendTurns {
		d.sessions.Append(sid, session.Turn{Role: session.RoleUser, Content: userMsg})
		d.sessions.Append(sid, session.Turn{Role: session.RoleAssistant, Content: res.Content})
	}

	rec.Status = "ok"
	rec.AssistantResponse = res.Content
	rec.PromptTokens = res.PromptTokens
	rec.CompletionTokens = res.CompletionTokens
	d.log.Debug().Str("endpoint", endpoint).Str("session_id", sid).
		Dur("latency", latency).Int("completion_tokens", res.CompletionTokens).Msg("generation complete")
	return Result{
		Content:          res.Content,
		SessionID:        sid,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		Latency:          latency,
	}, nil
}
