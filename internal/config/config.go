package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified"; Default() supplies the operational values
// and Load() overlays whatever a config file provides.
type Config struct {
	Addr   string `json:"addr" yaml:"addr" toml:"addr"`
	DBPath string `json:"db_path" yaml:"db_path" toml:"db_path"`

	// Model process
	LlamaBin       string   `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	ModelPath      string   `json:"model_path" yaml:"model_path" toml:"model_path"`
	ModelName      string   `json:"model_name" yaml:"model_name" toml:"model_name"`
	LlamaHost      string   `json:"llama_host" yaml:"llama_host" toml:"llama_host"`
	LlamaPort      int      `json:"llama_port" yaml:"llama_port" toml:"llama_port"`
	CtxSize        int      `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads        int      `json:"threads" yaml:"threads" toml:"threads"`
	BatchSize      int      `json:"batch_size" yaml:"batch_size" toml:"batch_size"`
	GPULayers      int      `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	LlamaExtraArgs []string `json:"llama_extra_args" yaml:"llama_extra_args" toml:"llama_extra_args"`

	// Supervisor
	StartupTimeout    time.Duration `json:"startup_timeout" yaml:"startup_timeout" toml:"startup_timeout"`
	ProbeInterval     time.Duration `json:"probe_interval" yaml:"probe_interval" toml:"probe_interval"`
	DegradedThreshold int           `json:"degraded_threshold" yaml:"degraded_threshold" toml:"degraded_threshold"`
	CrashThreshold    int           `json:"crash_threshold" yaml:"crash_threshold" toml:"crash_threshold"`
	MaxRestarts       int           `json:"max_restarts" yaml:"max_restarts" toml:"max_restarts"`
	ShutdownGrace     time.Duration `json:"shutdown_grace" yaml:"shutdown_grace" toml:"shutdown_grace"`

	// Dispatch
	Slots          int           `json:"slots" yaml:"slots" toml:"slots"`
	SlotWait       time.Duration `json:"slot_wait" yaml:"slot_wait" toml:"slot_wait"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`

	// Sessions
	SessionTTL       time.Duration `json:"session_ttl" yaml:"session_ttl" toml:"session_ttl"`
	SessionTurnCap   int           `json:"session_turn_cap" yaml:"session_turn_cap" toml:"session_turn_cap"`
	ContextTurns     int           `json:"context_turns" yaml:"context_turns" toml:"context_turns"`

	// Usage logging
	UsageQueueCap int `json:"usage_queue_cap" yaml:"usage_queue_cap" toml:"usage_queue_cap"`

	// Generation defaults
	DefaultTemperature float64 `json:"default_temperature" yaml:"default_temperature" toml:"default_temperature"`
	DefaultMaxTokens   int     `json:"default_max_tokens" yaml:"default_max_tokens" toml:"default_max_tokens"`
	MaxTokensCap       int     `json:"max_tokens_cap" yaml:"max_tokens_cap" toml:"max_tokens_cap"`

	// CORS
	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Default returns the operational defaults, with env vars taking precedence
// over the built-in values.
func Default() Config {
	return Config{
		Addr:               getEnv("INFERD_ADDR", ":9000"),
		DBPath:             getEnv("INFERD_DB_PATH", "data/inferd.sqlite"),
		LlamaBin:           getEnv("INFERD_LLAMA_BIN", "llama-server"),
		ModelPath:          getEnv("INFERD_MODEL_PATH", ""),
		ModelName:          getEnv("INFERD_MODEL_NAME", "mistral-7b-instruct"),
		LlamaHost:          getEnv("INFERD_LLAMA_HOST", "127.0.0.1"),
		LlamaPort:          getEnvInt("INFERD_LLAMA_PORT", 8081),
		CtxSize:            getEnvInt("INFERD_CTX_SIZE", 32768),
		Threads:            getEnvInt("INFERD_THREADS", 8),
		BatchSize:          getEnvInt("INFERD_BATCH_SIZE", 2048),
		GPULayers:          getEnvInt("INFERD_GPU_LAYERS", 20),
		StartupTimeout:     getEnvDuration("INFERD_STARTUP_TIMEOUT", 30*time.Second),
		ProbeInterval:      getEnvDuration("INFERD_PROBE_INTERVAL", 5*time.Second),
		DegradedThreshold:  getEnvInt("INFERD_DEGRADED_THRESHOLD", 3),
		CrashThreshold:     getEnvInt("INFERD_CRASH_THRESHOLD", 5),
		MaxRestarts:        getEnvInt("INFERD_MAX_RESTARTS", 5),
		ShutdownGrace:      getEnvDuration("INFERD_SHUTDOWN_GRACE", 5*time.Second),
		Slots:              getEnvInt("INFERD_SLOTS", 1),
		SlotWait:           getEnvDuration("INFERD_SLOT_WAIT", 10*time.Second),
		RequestTimeout:     getEnvDuration("INFERD_REQUEST_TIMEOUT", 60*time.Second),
		SessionTTL:         getEnvDuration("INFERD_SESSION_TTL", 30*time.Minute),
		SessionTurnCap:     getEnvInt("INFERD_SESSION_TURN_CAP", 64),
		ContextTurns:       getEnvInt("INFERD_CONTEXT_TURNS", 16),
		UsageQueueCap:      getEnvInt("INFERD_USAGE_QUEUE_CAP", 256),
		DefaultTemperature: 0.7,
		DefaultMaxTokens:   300,
		MaxTokensCap:       4096,
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
