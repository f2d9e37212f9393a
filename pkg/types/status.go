package types

// StatusResponse is the detailed view returned by GET /status.
type StatusResponse struct {
	// Supervisor health state of the model process.
	// example: ready
	Health string `json:"health" example:"ready"`
	// Process ID of the managed llama-server, 0 when not running.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Number of automatic restarts performed so far.
	// example: 0
	Restarts int `json:"restarts" example:"0"`
	// Consecutive failed health probes.
	// example: 0
	ProbeFailures int `json:"probe_failures" example:"0"`
	// Inference slots currently in use.
	// example: 1
	SlotsInUse int `json:"slots_in_use" example:"1"`
	// Configured inference slot count.
	// example: 1
	SlotCapacity int `json:"slot_capacity" example:"1"`
	// Live sessions held in memory.
	// example: 3
	Sessions int `json:"sessions" example:"3"`
	// Usage records waiting to be persisted.
	// example: 0
	UsageQueueLen int `json:"usage_queue_len" example:"0"`
	// Usage records dropped under overload or after failed persistence.
	// example: 0
	UsageDropped uint64 `json:"usage_dropped" example:"0"`
	// Last process-level error, if any.
	Error string `json:"error,omitempty"`
	// Seconds since the daemon started.
	// example: 3600
	UptimeSec int64 `json:"uptime_sec" example:"3600"`
}

// ConversationTurn is one persisted request/response pair for the read side.
type ConversationTurn struct {
	SessionID         string  `json:"session_id"`
	UserMessage       string  `json:"user_message"`
	AssistantResponse string  `json:"assistant_response"`
	ModelName         string  `json:"model_name"`
	Temperature       float64 `json:"temperature"`
	MaxTokens         int     `json:"max_tokens"`
	ResponseTimeMs    int64   `json:"response_time_ms"`
	TokensGenerated   int     `json:"tokens_generated"`
	CreatedAt         int64   `json:"created_at_unix"`
}

// ConversationResponse wraps GET /v1/conversations/{session_id}.
type ConversationResponse struct {
	SessionID string             `json:"session_id"`
	Turns     []ConversationTurn `json:"turns"`
}

// EndpointStats aggregates usage for one endpoint.
type EndpointStats struct {
	Endpoint        string  `json:"endpoint"`
	RequestCount    int64   `json:"request_count"`
	AvgResponseMs   float64 `json:"avg_response_time_ms"`
	ErrorCount      int64   `json:"error_count"`
	PromptTokens    int64   `json:"prompt_tokens"`
	CompletionToken int64   `json:"completion_tokens"`
}

// StatsResponse wraps GET /v1/stats.
type StatsResponse struct {
	Stats       []EndpointStats `json:"stats"`
	PeriodHours int             `json:"period_hours"`
	GeneratedAt int64           `json:"generated_at_unix"`
}
