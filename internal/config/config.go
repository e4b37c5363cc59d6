package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/bureaucratese/internal/textnorm"
)

// Database drivers.
const (
	DriverNone   = "none"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// Embedding providers.
const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
)

// Reference set stores.
const (
	ReferenceStoreFile = "file"
	ReferenceStoreKV   = "kv"
)

// Config holds the bureaucratese configuration shared by the API and the CLIs.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Lexicon    LexiconConfig    `yaml:"lexicon"`
	Segmenter  SegmenterConfig  `yaml:"segmenter"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Reference  ReferenceConfig  `yaml:"reference"`
	Analyze    AnalyzeConfig    `yaml:"analyze"`
	Batch      BatchConfig      `yaml:"batch"`
	Preprocess textnorm.Options `yaml:"preprocess"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds key-value store settings. Valkey and Redis share one client.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // none (default), redis, valkey
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Enabled reports whether a key-value store is configured.
func (d DatabaseConfig) Enabled() bool { return d.Driver != DriverNone }

// LexiconConfig points at the vocabulary CSV.
type LexiconConfig struct {
	Path string `yaml:"path"`
}

// SegmenterConfig selects the Chinese segmenter.
type SegmenterConfig struct {
	Driver    string   `yaml:"driver"` // gse (default), maxmatch
	DictFiles []string `yaml:"dict_files"`
	HMM       bool     `yaml:"hmm"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string       `yaml:"provider"` // none (default), openai, onnx
	Cache    bool         `yaml:"cache"`    // text-embedding cache in the key-value store
	OpenAI   OpenAIConfig `yaml:"openai"`
	ONNX     ONNXConfig   `yaml:"onnx"`
}

// Enabled reports whether the semantic metric has a provider.
func (e EmbeddingConfig) Enabled() bool { return e.Provider != ProviderNone }

// OpenAIConfig holds OpenAI-compatible API settings.
type OpenAIConfig struct {
	Name       string       `yaml:"name"` // provider label for metrics and budget keys
	APIKey     string       `yaml:"api_key"`
	BaseURL    string       `yaml:"base_url"`
	Model      string       `yaml:"model"`
	Dimensions int          `yaml:"dimensions"`
	Budget     BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit      int64   `yaml:"daily_token_limit"`       // 0 = unlimited
	MonthlyTokenLimit    int64   `yaml:"monthly_token_limit"`     // 0 = unlimited
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"` // для дашборда
	Action               string  `yaml:"action"`                  // "reject" | "warn" (default)
}

// ONNXConfig holds local model settings.
type ONNXConfig struct {
	LibraryPath   string `yaml:"library_path"`
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	ModelID       string `yaml:"model_id"`
	MaxSeqLen     int    `yaml:"max_seq_len"`
}

// ReferenceConfig selects where reference embeddings are cached.
type ReferenceConfig struct {
	Store string `yaml:"store"` // file (default), kv
	Dir   string `yaml:"dir"`
}

// AnalyzeConfig holds ad-hoc API limits.
type AnalyzeConfig struct {
	MaxBatchSize int `yaml:"max_batch_size"`
}

// BatchConfig holds batch scoring settings.
type BatchConfig struct {
	Input              string      `yaml:"input"` // file or doublestar glob
	OutputPath         string      `yaml:"output_path"`
	TextColumn         string      `yaml:"text_column"`
	DateColumn         string      `yaml:"date_column"`
	BatchSize          int         `yaml:"batch_size"`
	CheckpointInterval int         `yaml:"checkpoint_interval"`
	CheckpointDriver   string      `yaml:"checkpoint_driver"` // file (default), sqlite
	CheckpointPath     string      `yaml:"checkpoint_path"`
	MetricsAddr        string      `yaml:"metrics_addr"`
	Retry              RetryConfig `yaml:"retry"`
}

// RetryConfig controls semantic-scoring retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverNone
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Lexicon.Path == "" {
		c.Lexicon.Path = "data/RAWdataset.csv"
	}
	if c.Segmenter.Driver == "" {
		c.Segmenter.Driver = "gse"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderNone
	}
	if c.Embedding.OpenAI.Name == "" {
		c.Embedding.OpenAI.Name = ProviderOpenAI
	}
	if c.Embedding.ONNX.MaxSeqLen <= 0 {
		c.Embedding.ONNX.MaxSeqLen = 512
	}
	if c.Reference.Store == "" {
		c.Reference.Store = ReferenceStoreFile
	}
	if c.Reference.Dir == "" {
		c.Reference.Dir = "data/preprocessed"
	}
	if c.Analyze.MaxBatchSize <= 0 {
		c.Analyze.MaxBatchSize = 100
	}
	if c.Batch.CheckpointDriver == "" {
		c.Batch.CheckpointDriver = "file"
	}
	if c.Batch.CheckpointPath == "" {
		c.Batch.CheckpointPath = "data/checkpoint.json"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverNone:
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be none, redis or valkey, got %q", c.Database.Driver)
	}

	switch c.Segmenter.Driver {
	case "gse", "maxmatch":
	default:
		return fmt.Errorf("segmenter.driver must be gse or maxmatch, got %q", c.Segmenter.Driver)
	}

	if err := c.validateEmbedding(); err != nil {
		return err
	}

	switch c.Reference.Store {
	case ReferenceStoreFile:
	case ReferenceStoreKV:
		if !c.Database.Enabled() {
			return fmt.Errorf("reference.store kv requires a database driver")
		}
	default:
		return fmt.Errorf("reference.store must be file or kv, got %q", c.Reference.Store)
	}

	switch c.Batch.CheckpointDriver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("batch.checkpoint_driver must be file or sqlite, got %q", c.Batch.CheckpointDriver)
	}
	if c.Batch.CheckpointInterval < 0 {
		return fmt.Errorf("batch.checkpoint_interval must not be negative, got %d", c.Batch.CheckpointInterval)
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	e := c.Embedding
	switch e.Provider {
	case ProviderNone:
	case ProviderOpenAI:
		if e.OpenAI.Model == "" {
			return fmt.Errorf("embedding.openai.model is required")
		}
		switch e.OpenAI.Budget.Action {
		case "", "warn", "reject":
			// ok
		default:
			return fmt.Errorf(
				"embedding.openai.budget.action must be \"warn\" or \"reject\", got %q",
				e.OpenAI.Budget.Action,
			)
		}
	case ProviderONNX:
		if e.ONNX.ModelPath == "" || e.ONNX.TokenizerPath == "" {
			return fmt.Errorf("embedding.onnx.model_path and embedding.onnx.tokenizer_path are required")
		}
	default:
		return fmt.Errorf("embedding.provider must be none, openai or onnx, got %q", e.Provider)
	}
	if e.Cache && !c.Database.Enabled() {
		return fmt.Errorf("embedding.cache requires a database driver")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
