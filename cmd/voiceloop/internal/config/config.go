// Package config loads the voiceloop CLI configuration.
//
// Configuration lives in a YAML file, default ~/.voiceloop/config.yaml.
// API keys may be left out of the file and supplied through environment
// variables instead (VOICELOOP_STT_API_KEY, VOICELOOP_LLM_API_KEY,
// VOICELOOP_TTS_API_KEY).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// Response generator backends.
const (
	BackendStub     = "stub"
	BackendPipeline = "pipeline"
	BackendGemini   = "gemini"
	BackendOpenAI   = "openai"
)

// Config is the root CLI configuration.
type Config struct {
	// Listen is the serve address, e.g. ":8080".
	Listen string `yaml:"listen"`

	// DataDir holds the badger session database.
	DataDir string `yaml:"data_dir"`

	Archive ArchiveConfig `yaml:"archive"`
	STT     STTConfig     `yaml:"stt"`
	Respond RespondConfig `yaml:"respond"`
	TTS     TTSConfig     `yaml:"tts"`
}

// ArchiveConfig selects where raw turn audio is kept. An empty backend
// disables archival.
type ArchiveConfig struct {
	// Backend is "", "local", or "s3".
	Backend string `yaml:"backend"`

	// Dir is the local archive root (backend "local").
	Dir string `yaml:"dir"`

	// Bucket and Prefix locate the S3 archive (backend "s3").
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// STTConfig configures the transcription provider.
type STTConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`

	// Mock replaces provider calls with a fixed deterministic
	// transcript.
	Mock bool `yaml:"mock"`

	// PreferStreaming tries the websocket transport first and falls
	// back to batch upload.
	PreferStreaming bool `yaml:"prefer_streaming"`
}

// RespondConfig configures the response generator.
type RespondConfig struct {
	// Backend is one of stub, pipeline, gemini, openai.
	Backend string `yaml:"backend"`

	// PipelineURL is the pipeline execution endpoint (backend
	// "pipeline").
	PipelineURL string `yaml:"pipeline_url"`

	// BaseURL overrides the OpenAI-compatible endpoint (backend
	// "openai").
	BaseURL string `yaml:"base_url"`

	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`

	// RulesFile persists the improvement rules; empty defaults to
	// rules.json next to the config file.
	RulesFile string `yaml:"rules_file"`

	SystemPrompt string `yaml:"system_prompt"`
}

// TTSConfig configures speech synthesis. With no base URL the loop uses
// the local tone generator only.
type TTSConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Voice   string `yaml:"voice"`
}

// Dir returns the directory holding voiceloop state.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".voiceloop"
	}
	return filepath.Join(home, ".voiceloop")
}

// DefaultPath is the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the configuration used when no file exists: serve on
// :8080, store data under the voiceloop dir, mock transcription, stub
// responses, tone synthesis.
func Default() *Config {
	return &Config{
		Listen:  ":8080",
		DataDir: filepath.Join(Dir(), "data"),
		STT:     STTConfig{Mock: true, PreferStreaming: true},
		Respond: RespondConfig{Backend: BackendStub},
	}
}

// Load reads the config file at path ("" means DefaultPath), fills in
// defaults, and applies environment overrides. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	fillDefaults(cfg, path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VOICELOOP_STT_API_KEY"); v != "" {
		cfg.STT.APIKey = v
	}
	if v := os.Getenv("VOICELOOP_LLM_API_KEY"); v != "" {
		cfg.Respond.APIKey = v
	}
	if v := os.Getenv("VOICELOOP_TTS_API_KEY"); v != "" {
		cfg.TTS.APIKey = v
	}
}

func fillDefaults(cfg *Config, path string) {
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(Dir(), "data")
	}
	if cfg.Respond.Backend == "" {
		cfg.Respond.Backend = BackendStub
	}
	if cfg.Respond.RulesFile == "" {
		cfg.Respond.RulesFile = filepath.Join(filepath.Dir(path), "rules.json")
	}
}

// Validate rejects configurations the loop cannot run with. Credential
// checks happen here, before any provider is dialed.
func (c *Config) Validate() error {
	if !c.STT.Mock {
		if c.STT.BaseURL == "" {
			return errors.New("config: stt.base_url is required when stt.mock is off")
		}
		if c.STT.APIKey == "" {
			return errors.New("config: stt.api_key is required when stt.mock is off")
		}
	}
	switch c.Respond.Backend {
	case BackendStub:
	case BackendPipeline:
		if c.Respond.PipelineURL == "" {
			return errors.New("config: respond.pipeline_url is required for the pipeline backend")
		}
		if c.Respond.APIKey == "" {
			return errors.New("config: respond.api_key is required for the pipeline backend")
		}
	case BackendGemini, BackendOpenAI:
		if c.Respond.APIKey == "" {
			return fmt.Errorf("config: respond.api_key is required for the %s backend", c.Respond.Backend)
		}
	default:
		return fmt.Errorf("config: unknown respond backend %q", c.Respond.Backend)
	}
	switch c.Archive.Backend {
	case "", "local":
	case "s3":
		if c.Archive.Bucket == "" {
			return errors.New("config: archive.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("config: unknown archive backend %q", c.Archive.Backend)
	}
	if c.TTS.BaseURL != "" && c.TTS.APIKey == "" {
		return errors.New("config: tts.api_key is required when tts.base_url is set")
	}
	return nil
}

// ArchiveDir returns the local archive root, defaulting to "archive"
// under the voiceloop dir.
func (c *Config) ArchiveDir() string {
	if c.Archive.Dir != "" {
		return c.Archive.Dir
	}
	return filepath.Join(Dir(), "archive")
}

// Redacted returns a printable form of the config with keys masked.
func (c *Config) Redacted() string {
	out := *c
	out.STT.APIKey = mask(c.STT.APIKey)
	out.Respond.APIKey = mask(c.Respond.APIKey)
	out.TTS.APIKey = mask(c.TTS.APIKey)
	data, err := yaml.Marshal(&out)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
