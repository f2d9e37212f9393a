package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/dispatch"
	"inferd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Chat(ctx context.Context, req types.ChatCompletionRequest) (dispatch.Result, error)
	Complete(ctx context.Context, req types.CompletionRequest) (dispatch.Result, error)
	Conversation(ctx context.Context, sessionID string, limit int) (types.ConversationResponse, error)
	Stats(ctx context.Context, period time.Duration) (types.StatsResponse, error)
	Status() types.StatusResponse
	Ready() bool
	ModelName() string
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// ChatCompletions godoc
	// @Summary      Chat completion
	// @Description  Runs one chat turn against the managed model, carrying session context.
	// @Accept       json
	// @Produce      json
	// @Param        request body types.ChatCompletionRequest true "chat request"
	// @Success      200 {object} types.ChatCompletionResponse
	// @Failure      400 {object} types.ErrorResponse
	// @Failure      409 {object} types.ErrorResponse
	// @Failure      502 {object} types.ErrorResponse
	// @Failure      503 {object} types.ErrorResponse
	// @Router       /v1/chat/completions [post]
	r.Post("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req types.ChatCompletionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		start := time.Now()
		ctx, stop := requestContext(r)
		defer stop()
		res, err := svc.Chat(ctx, req)
		if err != nil {
			writeServiceError(w, r, start, err)
			return
		}
		resp := types.ChatCompletionResponse{
			ID:        "chatcmpl-" + ulid.Make().String(),
			Object:    "chat.completion",
			Created:   time.Now().Unix(),
			Model:     svc.ModelName(),
			SessionID: res.SessionID,
			Choices: []types.ChatChoice{{
				Index:        0,
				Message:      types.ChatMessage{Role: "assistant", Content: res.Content},
				FinishReason: "stop",
			}},
			Usage: types.Usage{
				PromptTokens:     res.PromptTokens,
				CompletionTokens: res.CompletionTokens,
				TotalTokens:      res.PromptTokens + res.CompletionTokens,
			},
		}
		writeJSON(w, r, http.StatusOK, resp)
		logEnd(r, http.StatusOK, time.Since(start), nil)
	})

	// Completions godoc
	// @Summary      Text completion
	// @Description  Runs one stateless completion against the managed model.
	// @Accept       json
	// @Produce      json
	// @Param        request body types.CompletionRequest true "completion request"
	// @Success      200 {object} types.CompletionResponse
	// @Failure      400 {object} types.ErrorResponse
	// @Failure      502 {object} types.ErrorResponse
	// @Failure      503 {object} types.ErrorResponse
	// @Router       /v1/completions [post]
	r.Post("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		var req types.CompletionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		start := time.Now()
		ctx, stop := requestContext(r)
		defer stop()
		res, err := svc.Complete(ctx, req)
		if err != nil {
			writeServiceError(w, r, start, err)
			return
		}
		resp := types.CompletionResponse{
			ID:      "cmpl-" + ulid.Make().String(),
			Object:  "text_completion",
			Created: time.Now().Unix(),
			Model:   svc.ModelName(),
			Choices: []types.CompletionChoice{{
				Text:         res.Content,
				Index:        0,
				FinishReason: "stop",
			}},
			Usage: types.Usage{
				PromptTokens:     res.PromptTokens,
				CompletionTokens: res.CompletionTokens,
				TotalTokens:      res.PromptTokens + res.CompletionTokens,
			},
		}
		writeJSON(w, r, http.StatusOK, resp)
		logEnd(r, http.StatusOK, time.Since(start), nil)
	})

	// Conversation godoc
	// @Summary      Conversation history
	// @Description  Returns the persisted turns for a session, oldest first.
	// @Produce      json
	// @Param        session_id path string true "session id"
	// @Param        limit query int false "maximum turns to return" default(50)
	// @Success      200 {object} types.ConversationResponse
	// @Failure      404 {object} types.ErrorResponse
	// @Router       /v1/conversations/{session_id} [get]
	r.Get("/v1/conversations/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "session_id")
		limit := queryInt(r, "limit", 50)
		if limit < 1 || limit > 500 {
			writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		resp, err := svc.Conversation(r.Context(), sid, limit)
		if err != nil {
			if he, ok := err.(HTTPError); ok {
				writeJSONError(w, he.StatusCode(), he.Error())
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, r, http.StatusOK, resp)
	})

	// Stats godoc
	// @Summary      Usage statistics
	// @Description  Aggregates persisted usage per endpoint over the requested window.
	// @Produce      json
	// @Param        hours query int false "lookback window in hours" default(24)
	// @Success      200 {object} types.StatsResponse
	// @Router       /v1/stats [get]
	r.Get("/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		hours := queryInt(r, "hours", 24)
		if hours < 1 || hours > 24*365 {
			writeJSONError(w, http.StatusBadRequest, "hours out of range")
			return
		}
		resp, err := svc.Stats(r.Context(), time.Duration(hours)*time.Hour)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, r, http.StatusOK, resp)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(svc.Status().Health))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSON enforces the JSON content type and body limit, then decodes into
// dst. It writes the error response itself and reports whether to continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// An oversized body also lands here; report 400 either way.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logEnd(r, status, 0, err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return -1
	}
	return n
}
