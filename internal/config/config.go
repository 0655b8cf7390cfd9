package config

import (
	"fmt"
	"time"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Cache      CacheConfig      `yaml:"cache"`
	Context    ContextConfig    `yaml:"context"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Background BackgroundConfig `yaml:"background"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPort int    `yaml:"metrics_port"`
}

// UpstreamConfig holds the collaborator endpoints and their per-call
// timeouts. Search calls fail fast at 5s, generation at 15s.
type UpstreamConfig struct {
	RAGBaseURL       string        `yaml:"rag_base_url"`
	LLMBaseURL       string        `yaml:"llm_base_url"`
	WebSearchBaseURL string        `yaml:"web_search_base_url"`
	LearningBaseURL  string        `yaml:"learning_base_url"`
	SearchTimeout    time.Duration `yaml:"search_timeout"`
	GenerateTimeout  time.Duration `yaml:"generate_timeout"`
	SearchTopK       int           `yaml:"search_top_k"`
	ExperienceSuffix string        `yaml:"experience_suffix"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type ContextConfig struct {
	MaxTotalWords int `yaml:"max_total_words"`
	RecentTurns   int `yaml:"recent_turns"`
	RelatedTurns  int `yaml:"related_turns"`
}

// PromptConfig caps each prompt section before concatenation, and the whole
// prompt after assembly.
type PromptConfig struct {
	SummaryCap    int `yaml:"summary_cap"`
	RecentCap     int `yaml:"recent_cap"`
	RelatedCap    int `yaml:"related_cap"`
	WebCap        int `yaml:"web_cap"`
	KnowledgeCap  int `yaml:"knowledge_cap"`
	ExperienceCap int `yaml:"experience_cap"`
	GlobalCap     int `yaml:"global_cap"`
}

type BackgroundConfig struct {
	QueueSize       int `yaml:"queue_size"`
	SummaryInterval int `yaml:"summary_interval"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Name:            "chatcenter",
			User:            "chatcenter",
			MaxOpenConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			DB:       0,
			PoolSize: 50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Upstream: UpstreamConfig{
			RAGBaseURL:       "http://localhost:8001",
			LLMBaseURL:       "http://localhost:11434/api",
			WebSearchBaseURL: "http://localhost:8002",
			LearningBaseURL:  "http://localhost:8003",
			SearchTimeout:    5 * time.Second,
			GenerateTimeout:  15 * time.Second,
			SearchTopK:       3,
			ExperienceSuffix: "historical experience",
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Context: ContextConfig{
			MaxTotalWords: 1500,
			RecentTurns:   6,
			RelatedTurns:  4,
		},
		Prompt: PromptConfig{
			SummaryCap:    600,
			RecentCap:     2000,
			RelatedCap:    1500,
			WebCap:        800,
			KnowledgeCap:  1000,
			ExperienceCap: 800,
			GlobalCap:     8000,
		},
		Background: BackgroundConfig{
			QueueSize:       256,
			SummaryInterval: 10,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
		},
	}
}
