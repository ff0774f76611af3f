package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Agent  AgentConfig
	Memory MemoryConfig
	Resume ResumeConfig
	CORS   CORSConfig
}

// Load builds the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	agent, err := loadAgentConfig()
	if err != nil {
		return nil, err
	}

	memory, err := loadMemoryConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Agent:  agent,
		Memory: memory,
		Resume: ResumeConfig{DataPath: getEnvOrDefault("RESUME_DATA_PATH", "./data/resume.json")},
		CORS:   loadCORSConfig(),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Allow ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the Ark chat model settings.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required model credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel creates the Ark tool-calling chat model from this config.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ToolCallingChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL, or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// AgentConfig bounds one orchestration pass. The numeric limits are policy,
// not constants: every one of them is tunable through the environment.
type AgentConfig struct {
	MaxToolCalls   int
	HistoryLimit   int
	RequestTimeout time.Duration
	RetryBackoff   time.Duration
}

func loadAgentConfig() (AgentConfig, error) {
	maxToolCalls, err := parseIntEnv("AGENT_MAX_TOOL_CALLS", 5)
	if err != nil {
		return AgentConfig{}, err
	}

	historyLimit, err := parseIntEnv("AGENT_HISTORY_LIMIT", 10)
	if err != nil {
		return AgentConfig{}, err
	}

	timeoutSeconds, err := parseIntEnv("AGENT_REQUEST_TIMEOUT", 60)
	if err != nil {
		return AgentConfig{}, err
	}

	backoffMillis, err := parseIntEnv("AGENT_RETRY_BACKOFF_MS", 500)
	if err != nil {
		return AgentConfig{}, err
	}

	return AgentConfig{
		MaxToolCalls:   maxToolCalls,
		HistoryLimit:   historyLimit,
		RequestTimeout: time.Duration(timeoutSeconds) * time.Second,
		RetryBackoff:   time.Duration(backoffMillis) * time.Millisecond,
	}, nil
}

// MemoryConfig bounds per-session retention and idle eviction.
type MemoryConfig struct {
	MaxTurns      int
	SessionTTL    time.Duration
	SweepInterval time.Duration
}

func loadMemoryConfig() (MemoryConfig, error) {
	maxTurns, err := parseIntEnv("MEMORY_MAX_TURNS", 50)
	if err != nil {
		return MemoryConfig{}, err
	}

	ttlSeconds, err := parseIntEnv("MEMORY_SESSION_TTL", 1800)
	if err != nil {
		return MemoryConfig{}, err
	}

	sweepSeconds, err := parseIntEnv("MEMORY_SWEEP_INTERVAL", 300)
	if err != nil {
		return MemoryConfig{}, err
	}

	return MemoryConfig{
		MaxTurns:      maxTurns,
		SessionTTL:    time.Duration(ttlSeconds) * time.Second,
		SweepInterval: time.Duration(sweepSeconds) * time.Second,
	}, nil
}

// ResumeConfig points at the knowledge base document.
type ResumeConfig struct {
	DataPath string
}

// CORSConfig lists the origins the chat widget may call from.
type CORSConfig struct {
	AllowedOrigins []string
}

func loadCORSConfig() CORSConfig {
	raw := getEnvOrDefault("CORS_ORIGINS", "*")
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return CORSConfig{AllowedOrigins: origins}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
