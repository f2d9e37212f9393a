package httpapi

import (
	"context"
	"net/http"
)

// serverBaseCtx is the process lifetime context. Inference handlers derive
// their request contexts from it so in-flight generations stop promptly on
// shutdown instead of riding out their full timeout.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process lifetime context. Pass the context
// from signal.NotifyContext before the server starts serving.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// requestContext derives the context for one inference request: it follows
// the client's request context and is additionally canceled when the process
// lifetime context ends. The returned stop func must be deferred.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	unhook := context.AfterFunc(serverBaseCtx, cancel)
	return ctx, func() {
		unhook()
		cancel()
	}
}
