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

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Vapi    VapiConfig
	Storage StorageConfig
	Auth    AuthConfig
	Catalog CatalogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	vapi, err := loadVapiConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Vapi:    vapi,
		Storage: storage,
		Auth:    auth,
		Catalog: CatalogConfig{File: strings.TrimSpace(os.Getenv("INTERVIEWS_FILE"))},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
	// CallRetention 是已结束通话在内存中保留的时长。
	CallRetention time.Duration
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	retention, err := parseDurationEnv("CALL_RETENTION", 30*time.Minute)
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{
		CORSOrigins:   parseListEnv("CORS_ORIGINS"),
		CallRetention: retention,
	}

	switch {
	case strings.Contains(port, ":"):
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		cfg.Addr = ":" + port
	}
	return cfg, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey          string
	AccessKey       string
	SecretKey       string
	Model           string
	BaseURL         string
	Region          string
	Temperature     *float64
	TopP            *float64
	MaxTokens       *int
	FeedbackEnabled bool
	FeedbackTimeout time.Duration
}

// VapiConfig 描述语音通话供应商配置。
type VapiConfig struct {
	APIKey        string
	WorkflowID    string
	BaseURL       string
	WebhookSecret string
	Timeout       time.Duration
}

// Enabled 表示是否可以发起通话。
func (c VapiConfig) Enabled() bool {
	return c.APIKey != ""
}

// StorageConfig 选择持久化后端。
type StorageConfig struct {
	Driver string
	URL    string
}

// AuthConfig 描述登录会话配置。
type AuthConfig struct {
	TokenTTL time.Duration
}

// CatalogConfig 指向可选的面试目录 YAML 文件。
type CatalogConfig struct {
	File string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
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

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
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

	feedbackEnabled, err := parseBoolEnv("FEEDBACK_ENABLED", true)
	if err != nil {
		return AIConfig{}, err
	}

	feedbackTimeout, err := parseDurationEnv("FEEDBACK_TIMEOUT", 60*time.Second)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:          strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:       strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:       strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:           strings.TrimSpace(os.Getenv("Model")),
		BaseURL:         getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:          getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:     temperature,
		TopP:            topP,
		MaxTokens:       maxTokens,
		FeedbackEnabled: feedbackEnabled,
		FeedbackTimeout: feedbackTimeout,
	}, nil
}

func loadVapiConfig() (VapiConfig, error) {
	timeout, err := parseDurationEnv("VAPI_TIMEOUT", 15*time.Second)
	if err != nil {
		return VapiConfig{}, err
	}

	return VapiConfig{
		APIKey:        strings.TrimSpace(os.Getenv("VAPI_API_KEY")),
		WorkflowID:    strings.TrimSpace(os.Getenv("VAPI_WORKFLOW_ID")),
		BaseURL:       getEnvOrDefault("VAPI_BASE_URL", "https://api.vapi.ai"),
		WebhookSecret: strings.TrimSpace(os.Getenv("VAPI_WEBHOOK_SECRET")),
		Timeout:       timeout,
	}, nil
}

func loadStorageConfig() (StorageConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", "memory"))
	url := strings.TrimSpace(os.Getenv("DATABASE_URL"))

	switch driver {
	case "memory":
	case "sqlite", "postgres":
		if url == "" {
			return StorageConfig{}, fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=%s", driver)
		}
	default:
		return StorageConfig{}, fmt.Errorf("invalid DATABASE_DRIVER value %q: want memory, sqlite or postgres", driver)
	}
	return StorageConfig{Driver: driver, URL: url}, nil
}

func loadAuthConfig() (AuthConfig, error) {
	ttl, err := parseDurationEnv("AUTH_TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}
	if ttl <= 0 {
		return AuthConfig{}, fmt.Errorf("AUTH_TOKEN_TTL must be positive, got %s", ttl)
	}
	return AuthConfig{TokenTTL: ttl}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
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

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
