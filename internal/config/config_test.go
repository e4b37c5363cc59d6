package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Provider = ProviderOpenAI
	cfg.Embedding.OpenAI = OpenAIConfig{
		APIKey: "test-key",
		Model:  "text-embedding-3-small",
		Budget: BudgetConfig{DailyTokenLimit: 1000000, Action: "invalid_action"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.openai.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Provider = ProviderOpenAI
			cfg.Embedding.OpenAI.Model = "m"
			cfg.Embedding.OpenAI.Budget.Action = action

			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"db driver", func(c *Config) { c.Database.Driver = "memcached" }, "database.driver"},
		{"db addrs", func(c *Config) { c.Database.Driver = DriverValkey }, "database.addrs"},
		{"segmenter", func(c *Config) { c.Segmenter.Driver = "jieba" }, "segmenter.driver"},
		{"provider", func(c *Config) { c.Embedding.Provider = "bert" }, "embedding.provider"},
		{"openai model", func(c *Config) { c.Embedding.Provider = ProviderOpenAI }, "embedding.openai.model"},
		{"onnx paths", func(c *Config) { c.Embedding.Provider = ProviderONNX }, "embedding.onnx.model_path"},
		{"cache without db", func(c *Config) {
			c.Embedding.Provider = ProviderONNX
			c.Embedding.ONNX = ONNXConfig{ModelPath: "m.onnx", TokenizerPath: "t.json"}
			c.Embedding.Cache = true
		}, "embedding.cache"},
		{"kv reference without db", func(c *Config) { c.Reference.Store = ReferenceStoreKV }, "reference.store"},
		{"reference store", func(c *Config) { c.Reference.Store = "s3" }, "reference.store"},
		{"checkpoint driver", func(c *Config) { c.Batch.CheckpointDriver = "postgres" }, "batch.checkpoint_driver"},
		{"checkpoint interval", func(c *Config) { c.Batch.CheckpointInterval = -1 }, "batch.checkpoint_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidate_KVWithDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = DriverRedis
	cfg.Database.Addrs = []string{"localhost:6379"}
	cfg.Reference.Store = ReferenceStoreKV

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.Driver != DriverNone || cfg.Database.Enabled() {
		t.Errorf("expected database disabled by default, got %q", cfg.Database.Driver)
	}
	if cfg.Embedding.Provider != ProviderNone || cfg.Embedding.Enabled() {
		t.Errorf("expected no embedding provider by default, got %q", cfg.Embedding.Provider)
	}
	if cfg.Segmenter.Driver != "gse" {
		t.Errorf("expected gse segmenter, got %q", cfg.Segmenter.Driver)
	}
	if cfg.Reference.Store != ReferenceStoreFile {
		t.Errorf("expected file reference store, got %q", cfg.Reference.Store)
	}
	if cfg.Embedding.ONNX.MaxSeqLen != 512 {
		t.Errorf("expected MaxSeqLen=512, got %d", cfg.Embedding.ONNX.MaxSeqLen)
	}
	if cfg.Analyze.MaxBatchSize != 100 {
		t.Errorf("expected MaxBatchSize=100, got %d", cfg.Analyze.MaxBatchSize)
	}
	if cfg.Batch.CheckpointDriver != "file" {
		t.Errorf("expected file checkpoint driver, got %q", cfg.Batch.CheckpointDriver)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{Port: 9000, ReadTimeoutSec: 30},
		Segmenter: SegmenterConfig{Driver: "maxmatch"},
		Reference: ReferenceConfig{Store: ReferenceStoreKV, Dir: "/var/refs"},
		Batch:     BatchConfig{CheckpointDriver: "sqlite", CheckpointPath: "/tmp/cp.db"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9000 || cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("http overridden: %+v", cfg.HTTP)
	}
	if cfg.Segmenter.Driver != "maxmatch" {
		t.Errorf("segmenter overridden: %q", cfg.Segmenter.Driver)
	}
	if cfg.Reference.Dir != "/var/refs" {
		t.Errorf("reference dir overridden: %q", cfg.Reference.Dir)
	}
	if cfg.Batch.CheckpointPath != "/tmp/cp.db" {
		t.Errorf("checkpoint path overridden: %q", cfg.Batch.CheckpointPath)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("BUREAUCRATESE_TEST_KEY", "sk-test")

	cfg, err := Parse([]byte(`
embedding:
  provider: openai
  openai:
    api_key: ${BUREAUCRATESE_TEST_KEY}
    base_url: ${BUREAUCRATESE_TEST_UNSET:-https://api.example.com/v1/}
    model: text-embedding-3-small
batch:
  text_column: 正文
  retry:
    max_attempts: 5
preprocess:
  nfkc: true
  rules:
    - pattern: "　"
      replacement: " "
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Embedding.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key not expanded: %q", cfg.Embedding.OpenAI.APIKey)
	}
	if cfg.Embedding.OpenAI.BaseURL != "https://api.example.com/v1/" {
		t.Errorf("default not applied: %q", cfg.Embedding.OpenAI.BaseURL)
	}
	if cfg.Batch.TextColumn != "正文" || cfg.Batch.Retry.MaxAttempts != 5 {
		t.Errorf("batch section: %+v", cfg.Batch)
	}
	if !cfg.Preprocess.NFKC || len(cfg.Preprocess.Rules) != 1 {
		t.Errorf("preprocess section: %+v", cfg.Preprocess)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("embedding:\n  provider: bert\n")); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
