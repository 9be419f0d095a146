package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the recipematch configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Reasoning   ReasoningConfig   `yaml:"reasoning"`
	Match       MatchConfig       `yaml:"match"`
	Lexical     LexicalConfig     `yaml:"lexical"`
	Ingredients IngredientsConfig `yaml:"ingredients"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Auth        AuthConfig        `yaml:"auth"`
	Index       IndexConfig       `yaml:"index"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
// An empty token list disables authentication.
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig binds a bearer token to a user identity.
type TokenConfig struct {
	Token string `yaml:"token"`
	User  string `yaml:"user"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds HNSW index settings for the recipe index.
type IndexConfig struct {
	Name            string `yaml:"name"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	TimeoutMs           int    `yaml:"timeout_ms"`
	MaxAttempts         int    `yaml:"max_attempts"` // 1 = no retry
	RetryBaseDelayMs    int    `yaml:"retry_base_delay_ms"`
	CacheTTLSec         int    `yaml:"cache_ttl_sec"` // 0 = no expiry
}

// ReasoningConfig holds settings for the intent classifier and query rewriter.
type ReasoningConfig struct {
	Adapter   string `yaml:"adapter"` // llm, rules (default: llm)
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// MatchConfig holds the AI match pipeline tuning knobs.
// Pointer fields accept an explicit zero; nil means unset.
type MatchConfig struct {
	InitialThreshold float64  `yaml:"initial_threshold"`
	FloorThreshold   *float64 `yaml:"floor_threshold"`
	ThresholdStep    float64  `yaml:"threshold_step"`
	MinDesired       int      `yaml:"min_desired"`
	DesiredCount     int      `yaml:"desired_count"`
	OverFetchFactor  int      `yaml:"over_fetch_factor"`
	Perturbation     *float64 `yaml:"perturbation"`   // 0 disables free-mode perturbation
	DiversityNoise   *float64 `yaml:"diversity_noise"` // 0 disables diversity noise
	IndexTimeoutMs   int      `yaml:"index_timeout_ms"`
}

// Floor returns the floor threshold, zero when unset.
func (m MatchConfig) Floor() float64 { return deref(m.FloorThreshold) }

// PerturbationValue returns the perturbation, zero when unset.
func (m MatchConfig) PerturbationValue() float64 { return deref(m.Perturbation) }

// DiversityNoiseValue returns the diversity noise, zero when unset.
func (m MatchConfig) DiversityNoiseValue() float64 { return deref(m.DiversityNoise) }

// Float64 returns a pointer to v for optional fields.
func Float64(v float64) *float64 { return &v }

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// LexicalConfig holds keyword search settings.
type LexicalConfig struct {
	MinNormalizedLen int `yaml:"min_normalized_len"`
	MaxResults       int `yaml:"max_results"`
}

// IngredientsConfig points at an optional alias rule file.
type IngredientsConfig struct {
	AliasFile string `yaml:"alias_file"`
}

// IngestConfig holds corpus ingestion settings.
type IngestConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded before expansion.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
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
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.Name == "" {
		c.Index.Name = "recipes"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "recipematch:"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutMs <= 0 {
		c.Embedding.TimeoutMs = 10000
	}
	if c.Embedding.MaxAttempts <= 0 {
		c.Embedding.MaxAttempts = 1
	}
	if c.Embedding.RetryBaseDelayMs <= 0 {
		c.Embedding.RetryBaseDelayMs = 200
	}

	if c.Reasoning.Adapter == "" {
		c.Reasoning.Adapter = "llm"
	}
	if c.Reasoning.Model == "" {
		c.Reasoning.Model = "gpt-4o-mini"
	}
	if c.Reasoning.TimeoutMs <= 0 {
		c.Reasoning.TimeoutMs = 15000
	}

	if c.Match.InitialThreshold <= 0 {
		c.Match.InitialThreshold = 0.55
	}
	if c.Match.FloorThreshold == nil {
		c.Match.FloorThreshold = Float64(0.35)
	}
	if c.Match.ThresholdStep <= 0 {
		c.Match.ThresholdStep = 0.05
	}
	if c.Match.MinDesired <= 0 {
		c.Match.MinDesired = 5
	}
	if c.Match.DesiredCount <= 0 {
		c.Match.DesiredCount = 10
	}
	if c.Match.OverFetchFactor <= 0 {
		c.Match.OverFetchFactor = 5
	}
	if c.Match.Perturbation == nil {
		c.Match.Perturbation = Float64(0.015)
	}
	if c.Match.DiversityNoise == nil {
		c.Match.DiversityNoise = Float64(0.1)
	}
	if c.Match.IndexTimeoutMs <= 0 {
		c.Match.IndexTimeoutMs = 5000
	}

	if c.Lexical.MinNormalizedLen <= 0 {
		c.Lexical.MinNormalizedLen = 2
	}
	if c.Lexical.MaxResults <= 0 {
		c.Lexical.MaxResults = 15
	}

	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 64
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	switch c.Reasoning.Adapter {
	case "llm", "rules":
	default:
		return fmt.Errorf("reasoning.adapter must be \"llm\" or \"rules\", got %q", c.Reasoning.Adapter)
	}

	m := c.Match
	if m.InitialThreshold > 1 {
		return fmt.Errorf("match.initial_threshold must be <= 1, got %v", m.InitialThreshold)
	}
	if m.Floor() < 0 {
		return fmt.Errorf("match.floor_threshold must be >= 0, got %v", m.Floor())
	}
	if m.Floor() > m.InitialThreshold {
		return fmt.Errorf("match.floor_threshold (%v) must not exceed match.initial_threshold (%v)",
			m.Floor(), m.InitialThreshold)
	}
	if m.MinDesired > m.DesiredCount*m.OverFetchFactor {
		return fmt.Errorf("match.min_desired (%d) must not exceed desired_count*over_fetch_factor (%d)",
			m.MinDesired, m.DesiredCount*m.OverFetchFactor)
	}
	if p := m.PerturbationValue(); p < 0 || p >= 0.5 {
		return fmt.Errorf("match.perturbation must be in [0, 0.5), got %v", p)
	}
	if m.DiversityNoiseValue() < 0 {
		return fmt.Errorf("match.diversity_noise must be >= 0, got %v", m.DiversityNoiseValue())
	}

	seen := make(map[string]struct{}, len(c.Auth.Tokens))
	for i, t := range c.Auth.Tokens {
		if strings.TrimSpace(t.Token) == "" {
			return fmt.Errorf("auth.tokens[%d].token is required", i)
		}
		if t.User == "" {
			return fmt.Errorf("auth.tokens[%d].user is required", i)
		}
		if _, dup := seen[t.Token]; dup {
			return fmt.Errorf("auth.tokens[%d] duplicates an earlier token", i)
		}
		seen[t.Token] = struct{}{}
	}
	return nil
}

// TokenUsers returns the token -> user mapping used by the auth middleware.
func (c *Config) TokenUsers() map[string]string {
	out := make(map[string]string, len(c.Auth.Tokens))
	for _, t := range c.Auth.Tokens {
		out[t.Token] = t.User
	}
	return out
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
