// ABOUTME: Configuration loading and parsing for coven-supervisor
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by the loader.
const (
	EnvConfigPath = "COVEN_SUPERVISOR_CONFIG"
	EnvAgentURLs  = "SUPERVISOR_AGENT_URLS"
)

// Routing policy names
const (
	PolicyLLM        = "llm"
	PolicyRego       = "rego"
	PolicyRoundRobin = "round_robin"
	PolicyStatic     = "static"
)

// Config represents the complete coven-supervisor configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Agents   AgentsConfig   `yaml:"agents" toml:"agents"`
	Routing  RoutingConfig  `yaml:"routing" toml:"routing"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Tasks    TasksConfig    `yaml:"tasks" toml:"tasks"`
}

// ServerConfig holds the HTTP listener and how the supervisor presents itself
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr" toml:"http_addr"`
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description" toml:"description"`
	PublicURL   string `yaml:"public_url" toml:"public_url"` // advertised in the agent card
}

// DatabaseConfig holds session history storage configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AgentsConfig holds the configured agents and connection tuning
type AgentsConfig struct {
	URLs               URLList `yaml:"urls" toml:"urls"`
	ConnectConcurrency int     `yaml:"connect_concurrency" toml:"connect_concurrency"`

	RequestTimeout    time.Duration `yaml:"-" toml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout" toml:"request_timeout"`
}

// RoutingConfig selects and tunes the routing policy
type RoutingConfig struct {
	Policy       string       `yaml:"policy" toml:"policy"`
	DefaultAgent string       `yaml:"default_agent" toml:"default_agent"`
	HistoryLimit int          `yaml:"history_limit" toml:"history_limit"`
	Model        string       `yaml:"model" toml:"model"`
	LLMURL       string       `yaml:"llm_url" toml:"llm_url"`
	LLMAPIKey    string       `yaml:"llm_api_key" toml:"llm_api_key"`
	Guidelines   []string     `yaml:"guidelines" toml:"guidelines"`
	RegoFile     string       `yaml:"rego_file" toml:"rego_file"`
	Static       StaticConfig `yaml:"static" toml:"static"`

	LLMTimeout    time.Duration `yaml:"-" toml:"-"`
	LLMTimeoutRaw string        `yaml:"llm_timeout" toml:"llm_timeout"`
}

// StaticConfig maps keywords to agent names for the static policy
type StaticConfig struct {
	Routes  map[string]string `yaml:"routes" toml:"routes"`
	Default string            `yaml:"default" toml:"default"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TasksConfig holds task intake settings
type TasksConfig struct {
	DedupeMaxSize int `yaml:"dedupe_max_size" toml:"dedupe_max_size"`

	DedupeTTL    time.Duration `yaml:"-" toml:"-"`
	DedupeTTLRaw string        `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// URLList accepts either a list of URLs or one comma-separated string.
type URLList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (u *URLList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*u = SplitURLs(node.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*u = cleanURLs(list)
		return nil
	}
	return fmt.Errorf("agents.urls must be a list or a comma-separated string")
}

// UnmarshalTOML implements toml.Unmarshaler.
func (u *URLList) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case string:
		*u = SplitURLs(val)
	case []any:
		list := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("agents.urls entries must be strings, got %T", item)
			}
			list = append(list, s)
		}
		*u = cleanURLs(list)
	default:
		return fmt.Errorf("agents.urls must be an array or a comma-separated string")
	}
	return nil
}

// SplitURLs splits a comma-separated URL list, dropping blanks.
func SplitURLs(s string) []string {
	return cleanURLs(strings.Split(s, ","))
}

func cleanURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// DefaultPath returns $COVEN_SUPERVISOR_CONFIG, or config.yaml under the
// user's config directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "coven-supervisor", "config.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default when it
// does not. Any other read or parse error is returned.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{}
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Load(path)
}

func (c *Config) finish() error {
	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}
	if len(c.Agents.URLs) == 0 {
		c.Agents.URLs = SplitURLs(os.Getenv(EnvAgentURLs))
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(re.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "0.0.0.0:8000"
	}
	if c.Server.Name == "" {
		c.Server.Name = "supervisor_agent"
	}
	if c.Server.Description == "" {
		c.Server.Description = "Routes each request to the best agent on its team"
	}
	if c.Database.Path == "" {
		c.Database.Path = "supervisor.db"
	}
	if c.Agents.RequestTimeout == 0 {
		c.Agents.RequestTimeout = 30 * time.Second
	}
	if c.Agents.ConnectConcurrency == 0 {
		c.Agents.ConnectConcurrency = 4
	}
	if c.Routing.Policy == "" {
		c.Routing.Policy = PolicyLLM
	}
	if c.Routing.HistoryLimit == 0 {
		c.Routing.HistoryLimit = 20
	}
	if c.Routing.LLMTimeout == 0 {
		c.Routing.LLMTimeout = 30 * time.Second
	}
	if c.Routing.Policy == PolicyLLM {
		if c.Routing.Model == "" {
			c.Routing.Model = "gpt-4o-mini"
		}
		if c.Routing.LLMURL == "" {
			c.Routing.LLMURL = "https://api.openai.com/v1"
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Tasks.DedupeTTL == 0 && c.Tasks.DedupeTTLRaw == "" {
		c.Tasks.DedupeTTL = 5 * time.Minute
	}
	if c.Tasks.DedupeMaxSize == 0 {
		c.Tasks.DedupeMaxSize = 10000
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Agents.ConnectConcurrency < 0 {
		return fmt.Errorf("agents.connect_concurrency must not be negative")
	}
	if c.Agents.RequestTimeout < 0 {
		return fmt.Errorf("agents.request_timeout must not be negative")
	}

	switch c.Routing.Policy {
	case PolicyLLM:
		if c.Routing.Model == "" || c.Routing.LLMURL == "" {
			return fmt.Errorf("routing.model and routing.llm_url are required for the llm policy")
		}
	case PolicyRego, PolicyRoundRobin, PolicyStatic:
	default:
		return fmt.Errorf("routing.policy must be one of llm, rego, round_robin, static (got %q)", c.Routing.Policy)
	}
	if c.Routing.HistoryLimit < 0 {
		return fmt.Errorf("routing.history_limit must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}

	if c.Tasks.DedupeTTL < 0 {
		return fmt.Errorf("tasks.dedupe_ttl must not be negative")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"agents.request_timeout", cfg.Agents.RequestTimeoutRaw, &cfg.Agents.RequestTimeout},
		{"routing.llm_timeout", cfg.Routing.LLMTimeoutRaw, &cfg.Routing.LLMTimeout},
		{"tasks.dedupe_ttl", cfg.Tasks.DedupeTTLRaw, &cfg.Tasks.DedupeTTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
