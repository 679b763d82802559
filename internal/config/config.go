// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWebhookURL = "https://asistente-fincas-ia-production.up.railway.app"
	DefaultSecretKey  = "supersecretkey"

	// MinTokenLength rejects obviously truncated Telegram bot tokens.
	MinTokenLength = 30
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token      string  `yaml:"token"`
	Mode       string  `yaml:"mode"` // webhook | polling
	WebhookURL string  `yaml:"webhook_url"`
	Port       int     `yaml:"port"`
	Workers    int     `yaml:"workers"` // update workers
	Language   string  `yaml:"language"`
	RateLimit  int     `yaml:"rate_limit"` // messages per user per minute
	AdminIDs   []int64 `yaml:"admin_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
	File     string `yaml:"file"`     // optional extra sink
}

type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxConns        int32  `yaml:"max_conns"`
	UsersTable      string `yaml:"users_table"`
	DocumentsTable  string `yaml:"documents_table"`
	EmbeddingsTable string `yaml:"embeddings_table"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	Provider         string        `yaml:"provider"`           // openai | gemini
	EmbedProvider    string        `yaml:"embedding_provider"` // defaults to provider
	OpenAIKey        string        `yaml:"openai_key"`
	OpenAIBaseURL    string        `yaml:"openai_base_url"`
	GeminiKey        string        `yaml:"gemini_key"`
	GeminiURL        string        `yaml:"gemini_url"`
	ChatModel        string        `yaml:"chat_model"`
	EmbeddingModel   string        `yaml:"embedding_model"`
	Temperature      float64       `yaml:"temperature"`
	Timeout          time.Duration `yaml:"timeout"`
	ConcurrentLimit  int           `yaml:"concurrent_limit"` // max concurrent AI calls
	RequestsPerSec   float64       `yaml:"requests_per_second"`
	BreakerFailures  uint32        `yaml:"breaker_failures"`
	BreakerRecovery  time.Duration `yaml:"breaker_recovery"`
	MaxRetries       int           `yaml:"max_retries"`
	EmbedChunkInputs int           `yaml:"embed_chunk_inputs"`
}

type RAGConfig struct {
	TopK              int           `yaml:"top_k"`
	MaxContextWords   int           `yaml:"max_context_words"`
	MaxQuestionLength int           `yaml:"max_question_length"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

type IndexerConfig struct {
	PageSize          int           `yaml:"page_size"`
	BatchSize         int           `yaml:"batch_size"`
	MaxTokens         int           `yaml:"max_tokens"`
	MaxRetries        int           `yaml:"max_retries"`
	FailedBatchesFile string        `yaml:"failed_batches_file"`
	Interval          time.Duration `yaml:"interval"` // 0 disables the in-process worker
	MetricsPort       int           `yaml:"metrics_port"`
}

type AuthConfig struct {
	SecretKey      string        `yaml:"secret_key"`
	Algorithm      string        `yaml:"algorithm"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type Config struct {
	Environment string         `yaml:"environment"`
	Bot         BotConfig      `yaml:"bot"`
	Log         LogConfig      `yaml:"log"`
	Database    DatabaseConfig `yaml:"database"`
	Redis       RedisConfig    `yaml:"redis"`
	AI          AIConfig       `yaml:"ai"`
	RAG         RAGConfig      `yaml:"rag"`
	Indexer     IndexerConfig  `yaml:"indexer"`
	Auth        AuthConfig     `yaml:"auth"`
	Metrics     MetricsConfig  `yaml:"metrics"`
	Security    SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// IsDevelopment mirrors the ENTORNO convention: "dev" and "desarrollo" are development.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "desarrollo", "development":
		return true
	}
	return c.Runtime.Dev
}

// LoadConfig reads the optional YAML file at path, applies environment
// overrides and defaults. It does not validate; call Validate.
func LoadConfig(path string, dev bool) (*Config, error) {
	loadDotEnv()

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// env-only deployments have no file
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// loadDotEnv loads .env only for development environments, like the deployment scripts expect.
func loadDotEnv() {
	env := strings.ToLower(os.Getenv("ENTORNO"))
	if env != "" && env != "dev" && env != "desarrollo" {
		return
	}
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
}

func applyEnv(cfg *Config) error {
	var errs *multierror.Error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("ENTORNO", &cfg.Environment)
	str("TELEGRAM_BOT_TOKEN", &cfg.Bot.Token)
	str("WEBHOOK_URL", &cfg.Bot.WebhookURL)
	str("BOT_MODE", &cfg.Bot.Mode)
	num("PORT", &cfg.Bot.Port)
	str("DATABASE_URL", &cfg.Database.URL)
	str("TABLA_USUARIOS", &cfg.Database.UsersTable)
	str("TABLA_ORIGEN", &cfg.Database.DocumentsTable)
	str("TABLA_EMBEDDINGS", &cfg.Database.EmbeddingsTable)
	str("REDIS_URL", &cfg.Redis.URL)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("AI_PROVIDER", &cfg.AI.Provider)
	str("EMBEDDING_PROVIDER", &cfg.AI.EmbedProvider)
	str("OPENAI_API_KEY", &cfg.AI.OpenAIKey)
	str("OPENAI_BASE_URL", &cfg.AI.OpenAIBaseURL)
	str("GEMINI_API_KEY", &cfg.AI.GeminiKey)
	str("CHAT_MODEL", &cfg.AI.ChatModel)
	str("EMBEDDING_MODEL", &cfg.AI.EmbeddingModel)
	num("TOP_K", &cfg.RAG.TopK)
	num("MAX_TOKENS", &cfg.Indexer.MaxTokens)
	num("BATCH_SIZE", &cfg.Indexer.BatchSize)
	num("MAX_RETRIES", &cfg.Indexer.MaxRetries)
	num("INDEXER_METRICS_PORT", &cfg.Indexer.MetricsPort)
	dur("INDEX_INTERVAL", &cfg.Indexer.Interval)
	num("METRICS_PORT", &cfg.Metrics.Port)
	str("SECRET_KEY", &cfg.Auth.SecretKey)
	str("JWT_ALGORITHM", &cfg.Auth.Algorithm)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("ENCRYPTION_KEY", &cfg.Security.EncryptionKey)

	var minutes int
	num("ACCESS_TOKEN_EXPIRE_MINUTES", &minutes)
	if minutes > 0 {
		cfg.Auth.AccessTokenTTL = time.Duration(minutes) * time.Minute
	}

	return errs.ErrorOrNil()
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "desarrollo"
	}
	// bot
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "webhook"
	}
	cfg.Bot.Mode = strings.ToLower(cfg.Bot.Mode)
	if cfg.Bot.WebhookURL == "" {
		cfg.Bot.WebhookURL = DefaultWebhookURL
	}
	cfg.Bot.WebhookURL = strings.TrimRight(cfg.Bot.WebhookURL, "/")
	if cfg.Bot.Port <= 0 {
		cfg.Bot.Port = 8080
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "es"
	}
	if cfg.Bot.RateLimit <= 0 {
		cfg.Bot.RateLimit = 20
	}
	// log
	if cfg.Log.Level == "" {
		if cfg.IsDevelopment() {
			cfg.Log.Level = "debug"
		} else {
			cfg.Log.Level = "info"
		}
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	// database
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.UsersTable == "" {
		cfg.Database.UsersTable = "usuarios"
	}
	if cfg.Database.DocumentsTable == "" {
		cfg.Database.DocumentsTable = "documentos"
	}
	if cfg.Database.EmbeddingsTable == "" {
		cfg.Database.EmbeddingsTable = "documentos_embeddings"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	// ai
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if cfg.AI.EmbedProvider == "" {
		cfg.AI.EmbedProvider = cfg.AI.Provider
	}
	cfg.AI.EmbedProvider = strings.ToLower(cfg.AI.EmbedProvider)
	if cfg.AI.ChatModel == "" {
		cfg.AI.ChatModel = "gpt-3.5-turbo"
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "text-embedding-ada-002"
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.2
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 15 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 8
	}
	if cfg.AI.RequestsPerSec <= 0 {
		cfg.AI.RequestsPerSec = 5
	}
	if cfg.AI.BreakerFailures == 0 {
		cfg.AI.BreakerFailures = 3
	}
	if cfg.AI.BreakerRecovery <= 0 {
		cfg.AI.BreakerRecovery = 60 * time.Second
	}
	if cfg.AI.MaxRetries < 0 {
		cfg.AI.MaxRetries = 0
	}
	if cfg.AI.EmbedChunkInputs <= 0 {
		cfg.AI.EmbedChunkInputs = 2048
	}
	// rag
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.RAG.MaxContextWords <= 0 {
		cfg.RAG.MaxContextWords = 1500
	}
	if cfg.RAG.MaxQuestionLength <= 0 {
		cfg.RAG.MaxQuestionLength = 500
	}
	if cfg.RAG.CacheTTL <= 0 {
		cfg.RAG.CacheTTL = time.Hour
	}
	// indexer
	if cfg.Indexer.PageSize <= 0 {
		cfg.Indexer.PageSize = 1000
	}
	if cfg.Indexer.BatchSize <= 0 {
		cfg.Indexer.BatchSize = 500
	}
	if cfg.Indexer.MaxTokens <= 0 {
		cfg.Indexer.MaxTokens = 2048
	}
	if cfg.Indexer.MaxRetries <= 0 {
		cfg.Indexer.MaxRetries = 3
	}
	if cfg.Indexer.FailedBatchesFile == "" {
		cfg.Indexer.FailedBatchesFile = "failed_batches.log"
	}
	if cfg.Indexer.MetricsPort <= 0 {
		cfg.Indexer.MetricsPort = 8000
	}
	// auth
	if cfg.Auth.SecretKey == "" {
		cfg.Auth.SecretKey = DefaultSecretKey
	}
	if cfg.Auth.Algorithm == "" {
		cfg.Auth.Algorithm = "HS256"
	}
	cfg.Auth.Algorithm = strings.ToUpper(cfg.Auth.Algorithm)
	if cfg.Auth.AccessTokenTTL <= 0 {
		cfg.Auth.AccessTokenTTL = 60 * time.Minute
	}
	if cfg.Metrics.Port <= 0 {
		cfg.Metrics.Port = 8010
	}
}

// Validate checks the settings every command needs plus, when requireBot is
// set, the Telegram settings. All problems are reported together.
func (c *Config) Validate(requireBot bool) error {
	var errs *multierror.Error

	if requireBot {
		if len(strings.TrimSpace(c.Bot.Token)) < MinTokenLength {
			errs = multierror.Append(errs, errors.New("bot.token (TELEGRAM_BOT_TOKEN) is missing or too short"))
		}
		switch c.Bot.Mode {
		case "webhook":
			if u, err := url.Parse(c.Bot.WebhookURL); err != nil || u.Scheme != "https" || u.Host == "" {
				errs = multierror.Append(errs, fmt.Errorf("bot.webhook_url must be an absolute https URL, got %q", c.Bot.WebhookURL))
			}
		case "polling":
		default:
			errs = multierror.Append(errs, fmt.Errorf("bot.mode must be webhook or polling, got %q", c.Bot.Mode))
		}
	}

	if err := validateDatabaseURL(c.Database.URL); err != nil {
		errs = multierror.Append(errs, err)
	}

	for _, p := range []struct{ field, name string }{
		{"ai.provider", c.AI.Provider},
		{"ai.embedding_provider", c.AI.EmbedProvider},
	} {
		switch p.name {
		case "openai":
			if c.AI.OpenAIKey == "" {
				errs = multierror.Append(errs, fmt.Errorf("%s is openai but ai.openai_key (OPENAI_API_KEY) is empty", p.field))
			}
		case "gemini":
			if c.AI.GeminiKey == "" {
				errs = multierror.Append(errs, fmt.Errorf("%s is gemini but ai.gemini_key (GEMINI_API_KEY) is empty", p.field))
			}
		default:
			errs = multierror.Append(errs, fmt.Errorf("%s must be openai or gemini, got %q", p.field, p.name))
		}
	}

	switch c.Auth.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = multierror.Append(errs, fmt.Errorf("auth.algorithm %q is not supported", c.Auth.Algorithm))
	}
	// A webhook bot is reachable from the internet whatever ENTORNO says.
	publicBot := requireBot && c.Bot.Mode == "webhook"
	if (publicBot || !c.IsDevelopment()) && c.Auth.SecretKey == DefaultSecretKey {
		errs = multierror.Append(errs, errors.New("auth.secret_key (SECRET_KEY) must be set outside development and in webhook mode"))
	}

	if c.AI.EmbedProvider == "gemini" && fixedWidthGeminiModels[strings.TrimPrefix(c.AI.EmbeddingModel, "models/")] {
		errs = multierror.Append(errs, fmt.Errorf("ai.embedding_model %q returns 768-dimension vectors; the embeddings column holds 1536 (use gemini-embedding-001)", c.AI.EmbeddingModel))
	}

	if k := c.Security.EncryptionKey; k != "" {
		if n := len(k); n != 16 && n != 24 && n != 32 {
			errs = multierror.Append(errs, fmt.Errorf("security.encryption_key must be 16, 24 or 32 bytes; got %d", n))
		}
	}

	return errs.ErrorOrNil()
}

// fixedWidthGeminiModels cannot be asked for 1536-dimension output.
var fixedWidthGeminiModels = map[string]bool{
	"text-embedding-004": true,
	"embedding-001":      true,
}

func validateDatabaseURL(raw string) error {
	if raw == "" {
		return errors.New("database.url (DATABASE_URL) is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("database.url: %w", err)
	}
	if (u.Scheme != "postgres" && u.Scheme != "postgresql") || u.Host == "" {
		return fmt.Errorf("database.url must look like postgres://host/db, got scheme %q", u.Scheme)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
