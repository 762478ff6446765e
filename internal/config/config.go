// Package config loads vecbench settings.
//
// Settings are layered, later layers winning:
//
//  1. built-in defaults (NewConfig)
//  2. user config at $XDG_CONFIG_HOME/vecbench/config.yaml or ~/.config/vecbench/config.yaml
//  3. project config .vecbench.yaml (or .vecbench.yml) in the working directory
//  4. VECBENCH_* environment variables
//
// Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Project config file names, in lookup order.
const (
	ProjectConfigFile    = ".vecbench.yaml"
	ProjectConfigFileAlt = ".vecbench.yml"

	// DefaultOutputDir receives artifacts and reports unless output.dir says otherwise.
	DefaultOutputDir = "output"
)

// Config is the complete vecbench configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Index      IndexConfig      `yaml:"index"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Retriever  RetrieverConfig  `yaml:"retriever"`
	LLM        LLMConfig        `yaml:"llm"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig controls how extracted text is split.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IngestConfig controls document discovery and extraction.
type IngestConfig struct {
	// Include globs (doublestar syntax) used when a directory is given.
	Include    []string `yaml:"include"`
	Workers    int      `yaml:"workers"`
	PDFEnabled bool     `yaml:"pdf_enabled"`
}

// IndexConfig configures the baseline index (backend B).
type IndexConfig struct {
	Kind         string `yaml:"kind"`
	NProbe       int    `yaml:"nprobe"`
	ArtifactName string `yaml:"artifact_name"`
}

// EmbeddingsConfig selects the embedding model shared by both backends.
type EmbeddingsConfig struct {
	// Provider is static, ollama or openai.
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	OllamaHost string `yaml:"ollama_host"`
	BatchSize  int    `yaml:"batch_size"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrieverConfig configures the encoded-media retriever (backend A).
type RetrieverConfig struct {
	KeywordBackend string `yaml:"keyword_backend"`
	HNSWM          int    `yaml:"hnsw_m"`
	EfSearch       int    `yaml:"ef_search"`
	MediaName      string `yaml:"media_name"`
}

// LLMConfig configures the optional answer comparison.
type LLMConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Queries    int    `yaml:"queries"`
	OllamaHost string `yaml:"ollama_host"`
}

// OutputConfig controls where reports and artifacts go.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig controls the file logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	FileEnabled bool   `yaml:"file_enabled"`
}

// NewConfig returns a Config with defaults applied.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			Size:    1024,
			Overlap: 16,
		},
		Ingest: IngestConfig{
			Include:    []string{"**/*.{txt,md,pdf,html,htm}"},
			Workers:    4,
			PDFEnabled: true,
		},
		Index: IndexConfig{
			Kind:         "flat",
			NProbe:       8,
			ArtifactName: "baseline_comparison",
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "static",
			BatchSize: 32,
			CacheSize: 1000,
		},
		Retriever: RetrieverConfig{
			KeywordBackend: "sqlite",
			HNSWM:          16,
			EfSearch:       64,
			MediaName:      "media_comparison",
		},
		LLM: LLMConfig{
			Provider: "google",
			Queries:  2,
		},
		Output: OutputConfig{
			Dir: DefaultOutputDir,
		},
		Logging: LoggingConfig{
			Level:       "info",
			FileEnabled: true,
		},
	}
}

// GetUserConfigPath returns the path of the user configuration file,
// honoring XDG_CONFIG_HOME.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vecbench", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "vecbench", "config.yaml")
	}
	return filepath.Join(home, ".config", "vecbench", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the effective configuration for dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("user config %s: %w", userPath, err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config file in dir, or "" when
// there is none. .yaml wins over .yml.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{ProjectConfigFile, ProjectConfigFileAlt} {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func (c *Config) loadFromFile(dir string) error {
	path := ProjectConfigPath(dir)
	if path == "" {
		return nil
	}
	if err := c.loadYAML(path); err != nil {
		return fmt.Errorf("project config %s: %w", filepath.Base(path), err)
	}
	return nil
}

// loadYAML decodes path over the current values. Keys absent from the
// file keep their current value; lists present in the file replace the
// current list.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	next := *c
	next.Ingest.Include = append([]string(nil), c.Ingest.Include...)
	if err := yaml.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	*c = next
	return nil
}

// Environment variables read by applyEnvOverrides.
const (
	EnvChunkSize      = "VECBENCH_CHUNK_SIZE"
	EnvOverlap        = "VECBENCH_OVERLAP"
	EnvIndexKind      = "VECBENCH_INDEX_KIND"
	EnvNProbe         = "VECBENCH_NPROBE"
	EnvEmbedModel     = "VECBENCH_EMBEDDINGS_MODEL"
	EnvOllamaHost     = "VECBENCH_OLLAMA_HOST"
	EnvKeywordBackend = "VECBENCH_KEYWORD_BACKEND"
	EnvLLMProvider    = "VECBENCH_LLM_PROVIDER"
	EnvLLMModel       = "VECBENCH_LLM_MODEL"
	EnvOutputDir      = "VECBENCH_OUTPUT_DIR"
	EnvLogLevel       = "VECBENCH_LOG_LEVEL"
	EnvPDFEnabled     = "VECBENCH_PDF_ENABLED"
)

// applyEnvOverrides applies VECBENCH_* variables. The embedder provider
// itself is read by the embed package (VECBENCH_EMBEDDER) so it also
// applies to the query subcommand.
func (c *Config) applyEnvOverrides() error {
	intVar := func(name string, dst *int) error {
		v := os.Getenv(name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", name, v)
		}
		*dst = n
		return nil
	}
	strVar := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if err := intVar(EnvChunkSize, &c.Chunking.Size); err != nil {
		return err
	}
	if err := intVar(EnvOverlap, &c.Chunking.Overlap); err != nil {
		return err
	}
	if err := intVar(EnvNProbe, &c.Index.NProbe); err != nil {
		return err
	}
	strVar(EnvIndexKind, &c.Index.Kind)
	strVar(EnvEmbedModel, &c.Embeddings.Model)
	strVar(EnvKeywordBackend, &c.Retriever.KeywordBackend)
	strVar(EnvLLMProvider, &c.LLM.Provider)
	strVar(EnvLLMModel, &c.LLM.Model)
	strVar(EnvOutputDir, &c.Output.Dir)
	strVar(EnvLogLevel, &c.Logging.Level)
	if v := os.Getenv(EnvOllamaHost); v != "" {
		c.Embeddings.OllamaHost = v
		c.LLM.OllamaHost = v
	}
	if v := os.Getenv(EnvPDFEnabled); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", EnvPDFEnabled, v)
		}
		c.Ingest.PDFEnabled = b
	}
	return nil
}

var (
	validIndexKinds      = map[string]bool{"flat": true, "ivf": true}
	validEmbedProviders  = map[string]bool{"static": true, "ollama": true, "openai": true}
	validKeywordBackends = map[string]bool{"sqlite": true, "bleve": true}
	validLLMProviders    = map[string]bool{"openai": true, "google": true, "anthropic": true, "ollama": true}
	validLogLevels       = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 {
		errs = append(errs, fmt.Errorf("chunking.overlap must be non-negative, got %d", c.Chunking.Overlap))
	} else if c.Chunking.Size > 0 && c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			c.Chunking.Overlap, c.Chunking.Size))
	}
	if c.Ingest.Workers < 0 {
		errs = append(errs, fmt.Errorf("ingest.workers must be non-negative, got %d", c.Ingest.Workers))
	}
	if !validIndexKinds[strings.ToLower(c.Index.Kind)] {
		errs = append(errs, fmt.Errorf("index.kind must be flat or ivf, got %q", c.Index.Kind))
	}
	if c.Index.NProbe <= 0 {
		errs = append(errs, fmt.Errorf("index.nprobe must be positive, got %d", c.Index.NProbe))
	}
	if !validEmbedProviders[strings.ToLower(c.Embeddings.Provider)] {
		errs = append(errs, fmt.Errorf("embeddings.provider must be static, ollama or openai, got %q", c.Embeddings.Provider))
	}
	if c.Embeddings.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions))
	}
	if c.Embeddings.BatchSize < 0 || c.Embeddings.CacheSize < 0 {
		errs = append(errs, errors.New("embeddings.batch_size and embeddings.cache_size must be non-negative"))
	}
	if !validKeywordBackends[strings.ToLower(c.Retriever.KeywordBackend)] {
		errs = append(errs, fmt.Errorf("retriever.keyword_backend must be sqlite or bleve, got %q", c.Retriever.KeywordBackend))
	}
	if c.Retriever.HNSWM < 2 {
		errs = append(errs, fmt.Errorf("retriever.hnsw_m must be at least 2, got %d", c.Retriever.HNSWM))
	}
	if c.Retriever.EfSearch <= 0 {
		errs = append(errs, fmt.Errorf("retriever.ef_search must be positive, got %d", c.Retriever.EfSearch))
	}
	if !validLLMProviders[strings.ToLower(c.LLM.Provider)] {
		errs = append(errs, fmt.Errorf("llm.provider must be openai, google, anthropic or ollama, got %q", c.LLM.Provider))
	}
	if c.LLM.Queries < 0 {
		errs = append(errs, fmt.Errorf("llm.queries must be non-negative, got %d", c.LLM.Queries))
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
