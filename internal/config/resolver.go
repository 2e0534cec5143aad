package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-supplied overrides. Empty strings mean
// the flag was not set.
type ResolveOptions struct {
	ConfigPath string

	CLIBackend   string
	CLIModel     string
	CLIEndpoint  string
	CLINeo4jURI  string
	CLIJournal   string
	CLIAliasFile string
	CLILogLevel  string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	Backend  ResolvedValue `json:"backend"`
	Model    ResolvedValue `json:"model"`
	Endpoint ResolvedValue `json:"endpoint"`
	APIKey   ResolvedValue `json:"api_key"`

	Neo4jURI      ResolvedValue `json:"neo4j_uri"`
	Neo4jUser     ResolvedValue `json:"neo4j_user"`
	Neo4jPassword ResolvedValue `json:"neo4j_password"`
	Neo4jDatabase ResolvedValue `json:"neo4j_database"`

	JournalPath ResolvedValue `json:"journal_path"`
	AliasFile   ResolvedValue `json:"alias_file"`

	CommitThreshold    ResolvedValue `json:"commit_threshold"`
	FlagThreshold      ResolvedValue `json:"flag_threshold"`
	TimeoutSeconds     ResolvedValue `json:"timeout_seconds"`
	RateLimitPerSecond ResolvedValue `json:"rate_limit_per_second"`
	MaxRetryAttempts   ResolvedValue `json:"max_retry_attempts"`

	LogLevel ResolvedValue `json:"log_level"`
	LogFile  ResolvedValue `json:"log_file"`
}

type fileConfig struct {
	Backend struct {
		Name     string `yaml:"name"`
		Model    string `yaml:"model"`
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"backend"`
	Neo4j struct {
		URI      string `yaml:"uri"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
	} `yaml:"neo4j"`
	JournalPath string `yaml:"journal_path"`
	AliasFile   string `yaml:"alias_file"`
	Extraction  struct {
		CommitThreshold    string `yaml:"commit_threshold"`
		FlagThreshold      string `yaml:"flag_threshold"`
		TimeoutSeconds     string `yaml:"timeout_seconds"`
		RateLimitPerSecond string `yaml:"rate_limit_per_second"`
		MaxRetryAttempts   string `yaml:"max_retry_attempts"`
	} `yaml:"extraction"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fingraph", "config.yaml")
}

// ResolveConfig layers defaults, the config file, environment variables,
// and CLI flags, in increasing precedence. Every resolved value remembers
// where it came from.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	applyDefaults(&out)

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.Backend, cfg.Backend.Name, SourceConfig, path)
		apply(&out.Model, cfg.Backend.Model, SourceConfig, path)
		apply(&out.Endpoint, cfg.Backend.Endpoint, SourceConfig, path)
		apply(&out.APIKey, cfg.Backend.APIKey, SourceConfig, path)

		apply(&out.Neo4jURI, cfg.Neo4j.URI, SourceConfig, path)
		apply(&out.Neo4jUser, cfg.Neo4j.User, SourceConfig, path)
		apply(&out.Neo4jPassword, cfg.Neo4j.Password, SourceConfig, path)
		apply(&out.Neo4jDatabase, cfg.Neo4j.Database, SourceConfig, path)

		apply(&out.JournalPath, cfg.JournalPath, SourceConfig, path)
		apply(&out.AliasFile, cfg.AliasFile, SourceConfig, path)

		apply(&out.CommitThreshold, cfg.Extraction.CommitThreshold, SourceConfig, path)
		apply(&out.FlagThreshold, cfg.Extraction.FlagThreshold, SourceConfig, path)
		apply(&out.TimeoutSeconds, cfg.Extraction.TimeoutSeconds, SourceConfig, path)
		apply(&out.RateLimitPerSecond, cfg.Extraction.RateLimitPerSecond, SourceConfig, path)
		apply(&out.MaxRetryAttempts, cfg.Extraction.MaxRetryAttempts, SourceConfig, path)

		apply(&out.LogLevel, cfg.Log.Level, SourceConfig, path)
		apply(&out.LogFile, cfg.Log.File, SourceConfig, path)
	}

	applyEnv(&out.Backend, "FINGRAPH_BACKEND")
	applyEnv(&out.Model, "FINGRAPH_MODEL")
	applyEnv(&out.Endpoint, "FINGRAPH_ENDPOINT")
	applyEnv(&out.APIKey, "OPENROUTER_API_KEY")
	applyEnv(&out.APIKey, "FINGRAPH_API_KEY")

	applyEnv(&out.Neo4jURI, "NEO4J_URI")
	applyEnv(&out.Neo4jUser, "NEO4J_USER")
	applyEnv(&out.Neo4jPassword, "NEO4J_PASSWORD")
	applyEnv(&out.Neo4jDatabase, "NEO4J_DATABASE")

	applyEnv(&out.JournalPath, "FINGRAPH_JOURNAL")
	applyEnv(&out.AliasFile, "FINGRAPH_ALIASES")

	applyEnv(&out.CommitThreshold, "FINGRAPH_COMMIT_THRESHOLD")
	applyEnv(&out.FlagThreshold, "FINGRAPH_FLAG_THRESHOLD")
	applyEnv(&out.TimeoutSeconds, "FINGRAPH_TIMEOUT_SECONDS")
	applyEnv(&out.RateLimitPerSecond, "FINGRAPH_RATE_LIMIT")
	applyEnv(&out.MaxRetryAttempts, "FINGRAPH_MAX_RETRIES")

	applyEnv(&out.LogLevel, "FINGRAPH_LOG_LEVEL")
	applyEnv(&out.LogFile, "FINGRAPH_LOG_FILE")

	apply(&out.Backend, opts.CLIBackend, SourceCLI, "--backend")
	apply(&out.Model, opts.CLIModel, SourceCLI, "--model")
	apply(&out.Endpoint, opts.CLIEndpoint, SourceCLI, "--endpoint")
	apply(&out.Neo4jURI, opts.CLINeo4jURI, SourceCLI, "--neo4j")
	apply(&out.JournalPath, opts.CLIJournal, SourceCLI, "--journal")
	apply(&out.AliasFile, opts.CLIAliasFile, SourceCLI, "--aliases")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")

	for _, v := range []*ResolvedValue{&out.JournalPath, &out.AliasFile, &out.LogFile} {
		if v.Value != "" {
			v.Value = expandUserPath(v.Value)
		}
	}

	return out, nil
}

// Float returns a resolved value as a float64, falling back when the
// raw string does not parse.
func (v ResolvedValue) Float(fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// Int returns a resolved value as an int, falling back when the raw
// string does not parse.
func (v ResolvedValue) Int(fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return fallback
	}
	return n
}

func applyDefaults(out *ResolvedConfig) {
	def := func(dst *ResolvedValue, value string) {
		*dst = ResolvedValue{Value: value, Source: SourceDefault, From: "built-in default"}
	}
	def(&out.Backend, "ollama")
	def(&out.Model, "llama3.1")
	def(&out.Endpoint, "http://localhost:11434")
	def(&out.Neo4jURI, "bolt://localhost:7687")
	def(&out.Neo4jUser, "neo4j")
	def(&out.Neo4jDatabase, "neo4j")
	def(&out.JournalPath, "~/.fingraph/journal.db")
	def(&out.CommitThreshold, "0.7")
	def(&out.FlagThreshold, "0.5")
	def(&out.TimeoutSeconds, "30")
	def(&out.RateLimitPerSecond, "45")
	def(&out.MaxRetryAttempts, "3")
	def(&out.LogLevel, "info")
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
