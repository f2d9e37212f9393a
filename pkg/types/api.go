package types

// ChatMessage is one role-tagged message in a chat request.
type ChatMessage struct {
	// Role of the message author: system, user or assistant.
	// example: user
	Role string `json:"role" example:"user"`
	// Message text.
	// example: What is the capital of France?
	Content string `json:"content" example:"What is the capital of France?"`
}

// ChatCompletionRequest is the payload for POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Optional model name. If empty, the configured default is used.
	// example: mistral-7b-instruct
	Model string `json:"model,omitempty" example:"mistral-7b-instruct"`
	// Ordered conversation messages; the last one must be from the user.
	Messages []ChatMessage `json:"messages"`
	// Optional session identifier for multi-turn context. A new session is
	// created (and returned) when omitted or unknown.
	// example: 01J9ZK3V7R8Q4X2M5T6B7N8P9S
	SessionID string `json:"session_id,omitempty" example:"01J9ZK3V7R8Q4X2M5T6B7N8P9S"`
	// Sampling temperature in [0,2]. Defaults to the configured value.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Maximum number of tokens to generate.
	// example: 300
	MaxTokens int `json:"max_tokens,omitempty" example:"300"`
}

// ChatChoice is one generated alternative in a chat response.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason" example:"stop"`
}

// ChatCompletionResponse is the body returned by POST /v1/chat/completions.
type ChatCompletionResponse struct {
	// Completion identifier.
	// example: chatcmpl-01J9ZK3V7R
	ID        string       `json:"id" example:"chatcmpl-01J9ZK3V7R"`
	Object    string       `json:"object" example:"chat.completion"`
	Created   int64        `json:"created" example:"1700000000"`
	Model     string       `json:"model" example:"mistral-7b-instruct"`
	SessionID string       `json:"session_id"`
	Choices   []ChatChoice `json:"choices"`
	Usage     Usage        `json:"usage"`
}

// CompletionRequest is the payload for POST /v1/completions.
type CompletionRequest struct {
	// Optional model name.
	Model string `json:"model,omitempty" example:"mistral-7b-instruct"`
	// Prompt text to complete.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Sampling temperature in [0,2].
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Maximum number of tokens to generate.
	MaxTokens int `json:"max_tokens,omitempty" example:"300"`
}

// CompletionChoice is one generated alternative in a completion response.
type CompletionChoice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason" example:"stop"`
}

// CompletionResponse is the body returned by POST /v1/completions.
type CompletionResponse struct {
	ID      string             `json:"id" example:"cmpl-01J9ZK3V7R"`
	Object  string             `json:"object" example:"text_completion"`
	Created int64              `json:"created" example:"1700000000"`
	Model   string             `json:"model" example:"mistral-7b-instruct"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// Usage contains token accounting for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" example:"12"`
	CompletionTokens int `json:"completion_tokens" example:"48"`
	TotalTokens      int `json:"total_tokens" example:"60"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: temperature must be between 0 and 2
	Error string `json:"error" example:"temperature must be between 0 and 2"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
