package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/speech-coach/backend/internal/cache"
	"github.com/zhouzirui/speech-coach/backend/internal/service/speech"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	AI      AIConfig
	Speech  SpeechConfig
	Client  ClientConfig
	Redis   RedisConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	cfg.Speech.applyFallback(cfg.AI)
	return cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// StorageConfig selects the chat record store of the reference backend.
type StorageConfig struct {
	Driver string `env:"CHAT_STORE" envDefault:"memory"`
	DSN    string `env:"CHAT_DSN"`
}

func (c StorageConfig) validate() error {
	switch c.Driver {
	case "memory":
		return nil
	case "sqlite3", "mysql":
		if strings.TrimSpace(c.DSN) == "" {
			return fmt.Errorf("CHAT_DSN is required when CHAT_STORE=%s", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("invalid CHAT_STORE value: %q", c.Driver)
	}
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	APIBaseURL      string        `env:"COACH_API_BASE_URL" envDefault:"http://localhost:8080"`
	AnalysisBaseURL string        `env:"COACH_ANALYSIS_URL"`
	SyncDebounce    time.Duration `env:"COACH_SYNC_DEBOUNCE" envDefault:"1s"`
	HTTPTimeout     time.Duration `env:"COACH_HTTP_TIMEOUT" envDefault:"15s"`
	UserID          string        `env:"COACH_USER_ID"`
	UserRole        string        `env:"COACH_USER_ROLE" envDefault:"paciente"`
	CacheBackend    string        `env:"COACH_CACHE_BACKEND" envDefault:"sqlite"`
	CacheDSN        string        `env:"COACH_CACHE_DSN" envDefault:"speech-coach-cache.db"`
	ClipDir         string        `env:"COACH_CLIP_DIR" envDefault:"clips"`
}

// Validate checks the settings the terminal client cannot run without.
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("COACH_USER_ID is required")
	}
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return fmt.Errorf("COACH_API_BASE_URL is required")
	}
	if c.SyncDebounce <= 0 {
		return fmt.Errorf("invalid COACH_SYNC_DEBOUNCE value: %s", c.SyncDebounce)
	}
	return nil
}

// AnalysisURL falls back to the API base URL.
func (c ClientConfig) AnalysisURL() string {
	if strings.TrimSpace(c.AnalysisBaseURL) != "" {
		return c.AnalysisBaseURL
	}
	return c.APIBaseURL
}

// RedisConfig is used by the redis conversation cache backend.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"168h"`
}

// CacheOptions combines the client and redis sections for cache.Open.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:   c.Client.CacheBackend,
		DSN:       c.Client.CacheDSN,
		RedisAddr: c.Redis.Addr,
		RedisPass: c.Redis.Password,
		RedisDB:   c.Redis.DB,
		TTL:       c.Redis.TTL,
	}
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string   `env:"ARK_API_KEY"`
	AccessKey   string   `env:"ARK_ACCESS_KEY"`
	SecretKey   string   `env:"ARK_SECRET_KEY"`
	Model       string   `env:"Model"`
	BaseURL     string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float64 `env:"ARK_TEMPERATURE"`
	TopP        *float64 `env:"ARK_TOP_P"`
	MaxTokens   *int     `env:"ARK_MAX_TOKENS"`
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

// SpeechConfig 描述语音识别相关配置
type SpeechConfig struct {
	AppID          string `env:"SPEECH_APP_ID"`
	AccessToken    string `env:"SPEECH_ACCESS_TOKEN"`
	Endpoint       string `env:"SPEECH_ASR_ENDPOINT"`
	ResourceID     string `env:"SPEECH_ASR_RESOURCE_ID"`
	ASRLanguage    string `env:"SPEECH_ASR_LANGUAGE" envDefault:"pt-BR"`
	TimeoutSeconds int    `env:"SPEECH_TIMEOUT" envDefault:"30"`
}

// applyFallback 如果没有专门的语音配置，尝试使用AI配置
func (c *SpeechConfig) applyFallback(ai AIConfig) {
	if c.AccessToken == "" {
		c.AccessToken = ai.APIKey
	}
}

// Enabled reports whether the ASR credentials are present.
func (c SpeechConfig) Enabled() bool {
	return c.AppID != "" && c.AccessToken != ""
}

// ASRConfig converts the section into the speech client configuration.
func (c SpeechConfig) ASRConfig() speech.Config {
	timeout := time.Duration(c.TimeoutSeconds) * time.Second
	if c.TimeoutSeconds <= 0 {
		timeout = 0
	}
	return speech.Config{
		AppID:       c.AppID,
		AccessToken: c.AccessToken,
		Endpoint:    c.Endpoint,
		ResourceID:  c.ResourceID,
		Language:    c.ASRLanguage,
		Timeout:     timeout,
	}
}
