package httpapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled in time")
	}
}

func TestRequestContextCanceledOnShutdown(t *testing.T) {
	base, cancelBase := context.WithCancel(context.Background())
	SetBaseContext(base)
	t.Cleanup(func() { SetBaseContext(context.Background()) })

	r := httptest.NewRequest("POST", "/v1/completions", nil)
	ctx, stop := requestContext(r)
	defer stop()

	if ctx.Err() != nil {
		t.Fatalf("fresh request context already done: %v", ctx.Err())
	}
	cancelBase()
	waitDone(t, ctx)
}

func TestRequestContextFollowsClient(t *testing.T) {
	SetBaseContext(context.Background())

	clientCtx, cancelClient := context.WithCancel(context.Background())
	r := httptest.NewRequest("POST", "/v1/completions", nil).WithContext(clientCtx)
	ctx, stop := requestContext(r)
	defer stop()

	cancelClient()
	waitDone(t, ctx)
}

func TestRequestContextStopReleases(t *testing.T) {
	base, cancelBase := context.WithCancel(context.Background())
	SetBaseContext(base)
	t.Cleanup(func() { SetBaseContext(context.Background()); cancelBase() })

	r := httptest.NewRequest("POST", "/v1/completions", nil)
	ctx, stop := requestContext(r)
	stop()
	waitDone(t, ctx)
}
