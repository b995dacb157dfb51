// Package config loads the per-project configuration and carries it as
// an explicit value through the command layer. No globals: every
// component receives the piece of configuration it needs.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cairnhq/cairn/internal/coherence"
	"github.com/cairnhq/cairn/internal/graph"
	"github.com/cairnhq/cairn/internal/retrieval"
)

// DirName is the per-project state directory, resolved against the
// project root.
const DirName = ".cairn"

// FileName is the optional configuration file inside DirName.
const FileName = "config.yaml"

// CacheFileName is the derived SQLite index inside DirName.
const CacheFileName = "index.db"

// Thresholds are the token-overlap cutoffs for analysis.
type Thresholds struct {
	// Tension is the overlap at which two artifacts are reported as
	// potentially conflicting.
	Tension float64 `yaml:"tension"`
	// Link is the overlap at which an artifact counts as connected to a
	// purpose for orphan detection.
	Link float64 `yaml:"link"`
	// Negotiation is the overlap at which a proposal is flagged against
	// a hard constraint.
	Negotiation float64 `yaml:"negotiation"`
}

// Enhance configures the optional LLM query expansion. Disabled by
// default: the core never needs the network.
type Enhance struct {
	Enabled bool `yaml:"enabled"`
	// BaseURL overrides the API endpoint, for local or proxied models.
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// APIKeyEnv names the environment variable holding the key; the key
	// itself never lives in the config file.
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Config is the explicit context object handed to commands.
type Config struct {
	root string

	Thresholds    Thresholds     `yaml:"thresholds"`
	KindWeights   map[string]int `yaml:"kind_weights"`
	TraverseDepth int            `yaml:"traverse_depth"`
	QueryLimit    int            `yaml:"query_limit"`
	Enhance       Enhance        `yaml:"enhance"`
}

// Default returns the configuration used when no file exists.
func Default(root string) Config {
	return Config{
		root: root,
		Thresholds: Thresholds{
			Tension:     coherence.DefaultTensionThreshold,
			Link:        0.3,
			Negotiation: coherence.DefaultNegotiationThreshold,
		},
		KindWeights:   maps.Clone(retrieval.DefaultKindWeights),
		TraverseDepth: graph.DefaultTraverseDepth,
		QueryLimit:    retrieval.DefaultLimit,
		Enhance: Enhance{
			Model:          "gpt-4o-mini",
			APIKeyEnv:      "OPENAI_API_KEY",
			TimeoutSeconds: 10,
		},
	}
}

// Load reads <root>/.cairn/config.yaml over the defaults. A missing
// file is not an error; a malformed or out-of-range one is.
func Load(root string) (Config, error) {
	cfg := Default(root)

	data, err := os.ReadFile(filepath.Join(root, DirName, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	for name, v := range map[string]float64{
		"thresholds.tension":     c.Thresholds.Tension,
		"thresholds.link":        c.Thresholds.Link,
		"thresholds.negotiation": c.Thresholds.Negotiation,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	if c.TraverseDepth < 1 {
		return fmt.Errorf("traverse_depth must be at least 1, got %d", c.TraverseDepth)
	}
	if c.QueryLimit < 1 {
		return fmt.Errorf("query_limit must be at least 1, got %d", c.QueryLimit)
	}
	if c.Enhance.TimeoutSeconds < 1 {
		return fmt.Errorf("enhance.timeout_seconds must be at least 1, got %d", c.Enhance.TimeoutSeconds)
	}
	return nil
}

// Root returns the project root the configuration was loaded for.
func (c Config) Root() string { return c.root }

// StateDir returns the per-project state directory.
func (c Config) StateDir() string { return filepath.Join(c.root, DirName) }

// CachePath returns the derived index location.
func (c Config) CachePath() string { return filepath.Join(c.StateDir(), CacheFileName) }
