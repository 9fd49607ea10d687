package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/studyrag/pkg/merge"
)

// Project config file names, in lookup order.
const (
	ProjectConfigFile    = ".studyrag.yaml"
	ProjectConfigFileAlt = ".studyrag.yml"
	DotEnvFile           = ".env"
	EnvPrefix            = "STUDYRAG_"
)

// Config represents the complete studyrag configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig locates on-disk state.
type PathsConfig struct {
	// DataDir holds the passage catalog and both indexes.
	// Relative paths resolve against the project directory.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// SearchConfig configures hybrid retrieval and merging.
type SearchConfig struct {
	// DuplicatePolicy is vector_priority or max_score.
	DuplicatePolicy string `yaml:"duplicate_policy" json:"duplicate_policy"`

	// Normalization is none, minmax, or rank. Applied per source before merging.
	Normalization string `yaml:"normalization" json:"normalization"`

	// DefaultLimit is used when a request gives no limit.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit caps any requested limit.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// KeywordBackend is bleve or sqlite.
	KeywordBackend string `yaml:"keyword_backend" json:"keyword_backend"`

	// Strict fails a search when either source fails instead of degrading.
	Strict bool `yaml:"strict" json:"strict"`

	// SourceTimeout bounds each source fetch (Go duration, e.g. "5s").
	SourceTimeout string `yaml:"source_timeout" json:"source_timeout"`

	// OverFetch multiplies the per-source fetch size so de-duplication
	// still leaves enough candidates to fill the limit.
	OverFetch int `yaml:"over_fetch" json:"over_fetch"`

	// MaxContextChars bounds the grounding context handed to generation.
	MaxContextChars int `yaml:"max_context_chars" json:"max_context_chars"`

	// MaxQueryLength rejects longer queries.
	MaxQueryLength int `yaml:"max_query_length" json:"max_query_length"`

	// MinSimilarity drops vector hits scoring below it, in [0, 1].
	MinSimilarity float64 `yaml:"min_similarity" json:"min_similarity"`
}

// ChunkingConfig configures how documents are split into passages.
type ChunkingConfig struct {
	MaxTokens     int `yaml:"max_tokens" json:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens" json:"overlap_tokens"`
}

// EmbeddingsConfig configures the local embedder.
type EmbeddingsConfig struct {
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	CacheSize  int `yaml:"cache_size" json:"cache_size"`
	BatchSize  int `yaml:"batch_size" json:"batch_size"`
}

// ServerConfig configures `studyrag serve`.
type ServerConfig struct {
	// Transport is http or mcp (stdio).
	Transport string `yaml:"transport" json:"transport"`
	HTTPAddr  string `yaml:"http_addr" json:"http_addr"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Search: SearchConfig{
			DuplicatePolicy: string(merge.VectorPriority),
			Normalization:   merge.NormalizeNone,
			DefaultLimit:    5,
			MaxLimit:        50,
			KeywordBackend:  "bleve",
			Strict:          false,
			SourceTimeout:   "5s",
			OverFetch:       2,
			MaxContextChars: 6000,
			MaxQueryLength:  1000,
		},
		Chunking: ChunkingConfig{
			MaxTokens:     256,
			OverlapTokens: 32,
		},
		Embeddings: EmbeddingsConfig{
			Dimensions: 256,
			CacheSize:  1000,
			BatchSize:  32,
		},
		Server: ServerConfig{
			Transport: "http",
			HTTPAddr:  "127.0.0.1:8088",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".studyrag", "data")
	}
	return filepath.Join(home, ".studyrag", "data")
}

// GetUserConfigPath returns the user configuration file path:
// $XDG_CONFIG_HOME/studyrag/config.yaml, else ~/.config/studyrag/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "studyrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "studyrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "studyrag", "config.yaml")
}

// Load loads configuration for the project in dir.
// Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/studyrag/config.yaml)
//  3. Project config (.studyrag.yaml in dir)
//  4. dir/.env entries (STUDYRAG_* only)
//  5. Process environment (STUDYRAG_*)
func Load(dir string) (*Config, error) {
	return load(dir, func(c *Config) error { return c.loadFromFile(dir) })
}

// LoadFile is Load with an explicit config file in place of the project
// file. The .env and relative data_dir resolve against the file's directory.
func LoadFile(path string) (*Config, error) {
	if !fileExists(path) {
		return nil, fmt.Errorf("config file %s not found", path)
	}
	return load(filepath.Dir(path), func(c *Config) error { return c.loadYAML(path) })
}

func load(dir string, project func(*Config) error) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("load user config: %w", err)
		}
	}

	if err := project(cfg); err != nil {
		return nil, err
	}

	dotenv, err := readDotEnv(filepath.Join(dir, DotEnvFile))
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	})

	if cfg.Paths.DataDir != "" && !filepath.IsAbs(cfg.Paths.DataDir) {
		cfg.Paths.DataDir = filepath.Join(dir, cfg.Paths.DataDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// readDotEnv parses a .env file. A missing file yields an empty map.
func readDotEnv(path string) (map[string]string, error) {
	if !fileExists(path) {
		return map[string]string{}, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return env, nil
}

// loadFromFile loads .studyrag.yaml, or .studyrag.yml, from dir.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigFile, ProjectConfigFileAlt} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML parses path and applies the keys it sets onto c. Keys the file
// leaves out, or sets to null, keep their current value, so an explicit
// 0 or false does override an earlier layer.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	dropNulls(doc.Content[0])

	next := *c
	if err := doc.Content[0].Decode(&next); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	*c = next
	return nil
}

// dropNulls removes null-valued mapping entries, recursively.
func dropNulls(n *yaml.Node) {
	if n.Kind != yaml.MappingNode {
		return
	}
	kept := n.Content[:0]
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if val.ShortTag() == "!!null" {
			continue
		}
		dropNulls(val)
		kept = append(kept, key, val)
	}
	n.Content = kept
}

// applyEnvOverrides applies STUDYRAG_* values looked up through getenv.
// Unparseable numbers and bools are ignored.
func (c *Config) applyEnvOverrides(getenv func(string) string) {
	str := func(name string, dst *string) {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := getenv(EnvPrefix + name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("DATA_DIR", &c.Paths.DataDir)
	str("DUPLICATE_POLICY", &c.Search.DuplicatePolicy)
	str("NORMALIZATION", &c.Search.Normalization)
	num("DEFAULT_LIMIT", &c.Search.DefaultLimit)
	str("KEYWORD_BACKEND", &c.Search.KeywordBackend)
	str("SOURCE_TIMEOUT", &c.Search.SourceTimeout)
	if v := getenv(EnvPrefix + "MIN_SIMILARITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.MinSimilarity = f
		}
	}
	if v := getenv(EnvPrefix + "STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Search.Strict = b
		}
	}
	num("CHUNK_MAX_TOKENS", &c.Chunking.MaxTokens)
	num("CHUNK_OVERLAP_TOKENS", &c.Chunking.OverlapTokens)
	num("EMBED_CACHE_SIZE", &c.Embeddings.CacheSize)
	str("TRANSPORT", &c.Server.Transport)
	str("HTTP_ADDR", &c.Server.HTTPAddr)
	str("LOG_LEVEL", &c.Logging.Level)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := merge.ParseDuplicatePolicy(c.Search.DuplicatePolicy); err != nil {
		return fmt.Errorf("search.duplicate_policy: %w", err)
	}
	if _, err := merge.ParseNormalization(c.Search.Normalization); err != nil {
		return fmt.Errorf("search.normalization: %w", err)
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be >= default_limit (%d)", c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	switch strings.ToLower(c.Search.KeywordBackend) {
	case "bleve", "sqlite":
	default:
		return fmt.Errorf("search.keyword_backend must be 'bleve' or 'sqlite', got %s", c.Search.KeywordBackend)
	}
	if d, err := time.ParseDuration(c.Search.SourceTimeout); err != nil || d <= 0 {
		return fmt.Errorf("search.source_timeout must be a positive duration, got %q", c.Search.SourceTimeout)
	}
	if c.Search.OverFetch < 1 {
		return fmt.Errorf("search.over_fetch must be >= 1, got %d", c.Search.OverFetch)
	}
	if c.Search.MaxContextChars < 0 || c.Search.MaxQueryLength < 0 {
		return fmt.Errorf("search.max_context_chars and max_query_length must be non-negative")
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be in [0, 1], got %g", c.Search.MinSimilarity)
	}

	if c.Chunking.MaxTokens < 16 {
		return fmt.Errorf("chunking.max_tokens must be >= 16, got %d", c.Chunking.MaxTokens)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		return fmt.Errorf("chunking.overlap_tokens must be in [0, max_tokens), got %d", c.Chunking.OverlapTokens)
	}

	if c.Embeddings.Dimensions < 8 {
		return fmt.Errorf("embeddings.dimensions must be >= 8, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.CacheSize < 0 || c.Embeddings.BatchSize < 0 {
		return fmt.Errorf("embeddings.cache_size and batch_size must be non-negative")
	}

	switch strings.ToLower(c.Server.Transport) {
	case "http", "mcp":
	default:
		return fmt.Errorf("server.transport must be 'http' or 'mcp', got %s", c.Server.Transport)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// SourceTimeoutDuration returns Search.SourceTimeout parsed, or 5s when
// it does not parse.
func (c *Config) SourceTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Search.SourceTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// JSON returns the configuration as indented JSON, for `studyrag config show`.
func (c *Config) JSON() (string, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
