package main

import (
	"context"
	"time"

	"inferd/internal/dispatch"
	"inferd/internal/httpapi"
	"inferd/internal/session"
	"inferd/internal/supervisor"
	"inferd/internal/usage"
	"inferd/pkg/types"

	sqlstore "inferd/internal/store"
)

// gateway glues the dispatcher, supervisor, session store and database into
// the surface the HTTP layer needs.
type gateway struct {
	dispatcher *dispatch.Dispatcher
	sup        *supervisor.Supervisor
	sessions   *session.Store
	usage      *usage.Logger
	db         *sqlstore.DB
	modelName  string
	startedAt  time.Time
}

func (g *gateway) Chat(ctx context.Context, req types.ChatCompletionRequest) (dispatch.Result, error) {
	return g.dispatcher.Chat(ctx, req)
}

func (g *gateway) Complete(ctx context.Context, req types.CompletionRequest) (dispatch.Result, error) {
	return g.dispatcher.Complete(ctx, req)
}

func (g *gateway) Conversation(ctx context.Context, sessionID string, limit int) (types.ConversationResponse, error) {
	turns, err := g.db.QueryConversation(ctx, sessionID, limit)
	if err != nil {
		return types.ConversationResponse{}, err
	}
	if len(turns) == 0 && !g.sessions.Exists(sessionID) {
		return types.ConversationResponse{}, httpapi.NotFound("unknown session: " + sessionID)
	}
	return types.ConversationResponse{SessionID: sessionID, Turns: turns}, nil
}

func (g *gateway) Stats(ctx context.Context, period time.Duration) (types.StatsResponse, error) {
	stats, err := g.db.QueryStats(ctx, time.Now().Add(-period))
	if err != nil {
		return types.StatsResponse{}, err
	}
	return types.StatsResponse{
		Stats:       stats,
		PeriodHours: int(period.Hours()),
		GeneratedAt: time.Now().Unix(),
	}, nil
}

func (g *gateway) Status() types.StatusResponse {
	snap := g.sup.Snapshot()
	return types.StatusResponse{
		Health:        string(snap.Health),
		PID:           snap.PID,
		Restarts:      snap.Restarts,
		ProbeFailures: snap.Failures,
		SlotsInUse:    g.dispatcher.SlotsInUse(),
		SlotCapacity:  g.dispatcher.SlotCapacity(),
		Sessions:      g.sessions.Len(),
		UsageQueueLen: g.usage.QueueLen(),
		UsageDropped:  g.usage.Dropped(),
		Error:         snap.Err,
		UptimeSec:     int64(time.Since(g.startedAt).Seconds()),
	}
}

func (g *gateway) Ready() bool {
	switch g.sup.Health() {
	case supervisor.HealthReady, supervisor.HealthDegraded:
		return true
	}
	return false
}

func (g *gateway) ModelName() string { return g.modelName }
