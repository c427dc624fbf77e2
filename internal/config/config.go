// Package config loads the process configuration: a YAML file as the
// base, with SCENEPILOT_* environment variables merged on top. Env vars
// take precedence over file values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML values like "1s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BridgeConfig describes how to reach the 3D application boundary: a
// subprocess speaking newline-delimited JSON on stdio.
type BridgeConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	// Provider is one of "hash", "ollama", "fastembed".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	CacheDir string `yaml:"cache_dir"`
}

// ResolverConfig carries the parameter-resolver thresholds. Zero fields
// take the resolver's own defaults.
type ResolverConfig struct {
	WholePromptLimit    int     `yaml:"whole_prompt_limit"`
	SentenceWindowLimit int     `yaml:"sentence_window_limit"`
	MinContextLen       int     `yaml:"min_context_len"`
	HintRelevanceFloor  float64 `yaml:"hint_relevance_floor"`
	LearnedMatchFloor   float64 `yaml:"learned_match_floor"`
}

// Config is the full process configuration.
type Config struct {
	Bridge          BridgeConfig    `yaml:"bridge"`
	Embedding       EmbeddingConfig `yaml:"embedding"`
	Resolver        ResolverConfig  `yaml:"resolver"`
	WorkflowDir     string          `yaml:"workflow_dir"`
	LearnedDB       string          `yaml:"learned_db"`
	SceneCacheTTL   Duration        `yaml:"scene_cache_ttl"`
	ConfidenceFloor float64         `yaml:"confidence_floor"`
	LogFile         string          `yaml:"log_file"`
	Debug           bool            `yaml:"debug"`
}

// Default returns the shipped configuration: hash embeddings (no model
// download), in-memory learned store, built-in workflows only.
func Default() Config {
	return Config{
		Embedding:     EmbeddingConfig{Provider: "hash"},
		SceneCacheTTL: Duration(time.Second),
	}
}

// Load reads the YAML file at path (empty path means defaults only) and
// merges SCENEPILOT_* environment variables on top.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	return MergeWithEnv(cfg)
}

// MergeWithEnv overlays environment variables onto cfg.
// SCENEPILOT_BRIDGE_COMMAND overrides the bridge command,
// SCENEPILOT_BRIDGE_ARGS_JSON the args (JSON array),
// SCENEPILOT_BRIDGE_ENV_JSON merges bridge env (JSON object); the
// remaining SCENEPILOT_* vars override their scalar fields directly.
func MergeWithEnv(cfg Config) (Config, error) {
	result := cfg

	if cmd := os.Getenv("SCENEPILOT_BRIDGE_COMMAND"); cmd != "" {
		result.Bridge.Command = cmd
	}
	if argsJSON := os.Getenv("SCENEPILOT_BRIDGE_ARGS_JSON"); argsJSON != "" {
		var args []string
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return Config{}, fmt.Errorf("invalid SCENEPILOT_BRIDGE_ARGS_JSON: %w", err)
		}
		result.Bridge.Args = args
	}
	if envJSON := os.Getenv("SCENEPILOT_BRIDGE_ENV_JSON"); envJSON != "" {
		var envMap map[string]string
		if err := json.Unmarshal([]byte(envJSON), &envMap); err != nil {
			return Config{}, fmt.Errorf("invalid SCENEPILOT_BRIDGE_ENV_JSON: %w", err)
		}
		if result.Bridge.Env == nil {
			result.Bridge.Env = make(map[string]string)
		}
		for k, v := range envMap {
			result.Bridge.Env[k] = v
		}
	}

	if v := os.Getenv("SCENEPILOT_EMBEDDING_PROVIDER"); v != "" {
		result.Embedding.Provider = v
	}
	if v := os.Getenv("SCENEPILOT_EMBEDDING_MODEL"); v != "" {
		result.Embedding.Model = v
	}
	if v := os.Getenv("SCENEPILOT_WORKFLOW_DIR"); v != "" {
		result.WorkflowDir = v
	}
	if v := os.Getenv("SCENEPILOT_LEARNED_DB"); v != "" {
		result.LearnedDB = v
	}
	if v := os.Getenv("SCENEPILOT_LOG_FILE"); v != "" {
		result.LogFile = v
	}
	if v := os.Getenv("SCENEPILOT_SCENE_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCENEPILOT_SCENE_CACHE_TTL: %w", err)
		}
		result.SceneCacheTTL = Duration(ttl)
	}
	if v := os.Getenv("SCENEPILOT_CONFIDENCE_FLOOR"); v != "" {
		floor, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCENEPILOT_CONFIDENCE_FLOOR: %w", err)
		}
		result.ConfidenceFloor = floor
	}
	if v := os.Getenv("SCENEPILOT_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCENEPILOT_DEBUG: %w", err)
		}
		result.Debug = debug
	}
	return result, nil
}
