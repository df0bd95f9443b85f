// Package config loads Tsuzi's configuration from ~/.tsuzi/config.yaml,
// with environment variable overrides (TSUZI_*). The file is created with
// defaults on first run and is read exactly once at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for the Tsuzi assistant.
type Config struct {
	DataDir string        `mapstructure:"data_dir" yaml:"data_dir"`
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Speech  SpeechConfig  `mapstructure:"speech" yaml:"speech"`
	Router  RouterConfig  `mapstructure:"router" yaml:"router"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Weather WeatherConfig `mapstructure:"weather" yaml:"weather"`
	News    NewsConfig    `mapstructure:"news" yaml:"news"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// AudioConfig controls the speech-to-text input path.
type AudioConfig struct {
	// InputEnabled selects microphone input via the ASR sidecar.
	// When false the session reads typed text from stdin.
	InputEnabled bool `mapstructure:"input_enabled" yaml:"input_enabled"`
	// ASREndpoint is the WebSocket URL of the streaming transcription sidecar.
	ASREndpoint string `mapstructure:"asr_endpoint" yaml:"asr_endpoint"`
}

// SpeechConfig controls the text-to-speech output path.
type SpeechConfig struct {
	// StreamingEnabled pipes generated tokens to synthesis as they arrive
	// instead of waiting for the full response.
	StreamingEnabled bool `mapstructure:"streaming_enabled" yaml:"streaming_enabled"`
	// TTSEndpoint is the HTTP speech synthesis endpoint.
	TTSEndpoint string `mapstructure:"tts_endpoint" yaml:"tts_endpoint"`
	// Voice is the synthesis voice identifier.
	Voice string `mapstructure:"voice" yaml:"voice"`
	// Speed is the playback speed multiplier (0.5-2.0).
	Speed float64 `mapstructure:"speed" yaml:"speed"`
}

// RouterConfig tunes intent classification.
type RouterConfig struct {
	// DebugLogging prints every routing decision at debug level.
	DebugLogging bool `mapstructure:"debug_logging" yaml:"debug_logging"`
	// ConfidenceThreshold is the minimum classifier confidence for ACTION
	// intents; below it the router falls back to conversation.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
}

// LLMConfig points at an OpenAI-compatible inference endpoint (Ollama by default).
type LLMConfig struct {
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey          string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	ChatModel       string        `mapstructure:"chat_model" yaml:"chat_model"`
	ClassifierModel string        `mapstructure:"classifier_model" yaml:"classifier_model"`
	SummaryModel    string        `mapstructure:"summary_model" yaml:"summary_model"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SessionConfig tunes the conversation loop.
type SessionConfig struct {
	// RecentTurns is how many turns stay verbatim in context before older
	// ones are compressed into the rolling summary.
	RecentTurns int `mapstructure:"recent_turns" yaml:"recent_turns"`
	// SystemPrompt sets the assistant persona for passthrough conversation.
	SystemPrompt string `mapstructure:"system_prompt" yaml:"system_prompt"`
}

// WeatherConfig sets the forecast location for Open-Meteo lookups.
type WeatherConfig struct {
	Latitude  float64 `mapstructure:"latitude" yaml:"latitude"`
	Longitude float64 `mapstructure:"longitude" yaml:"longitude"`
}

// NewsConfig selects the headline topics fetched for briefings.
type NewsConfig struct {
	Topics []string `mapstructure:"topics" yaml:"topics"`
	// Curated enables LLM selection and rewriting of headlines.
	Curated bool `mapstructure:"curated" yaml:"curated"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	tsuziDir := filepath.Join(homeDir, ".tsuzi")

	return &Config{
		DataDir: filepath.Join(tsuziDir, "data"),
		Audio: AudioConfig{
			InputEnabled: false,
			ASREndpoint:  "ws://127.0.0.1:8880/v1/audio/transcriptions/stream",
		},
		Speech: SpeechConfig{
			StreamingEnabled: true,
			TTSEndpoint:      "http://127.0.0.1:8880/v1/audio/speech",
			Voice:            "af_sky",
			Speed:            1.0,
		},
		Router: RouterConfig{
			DebugLogging:        false,
			ConfidenceThreshold: 0.5,
		},
		LLM: LLMConfig{
			Endpoint:        "http://127.0.0.1:11434/v1",
			APIKey:          "ollama",
			ChatModel:       "llama3.2:latest",
			ClassifierModel: "functiongemma:latest",
			SummaryModel:    "gemma3:12b",
			Timeout:         2 * time.Minute,
		},
		Session: SessionConfig{
			RecentTurns: 6,
			SystemPrompt: "Your name is Tsuzi. You are a warm, cheerful, and conversational " +
				"AI companion. You keep replies short enough to be spoken aloud.",
		},
		Weather: WeatherConfig{
			Latitude:  31.4685,
			Longitude: 76.2708,
		},
		News: NewsConfig{
			Topics:  []string{"top news", "technology news", "science breakthrough"},
			Curated: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(tsuziDir, "logs", "tsuzi.log"),
		},
	}
}

// Load reads configuration from ~/.tsuzi/config.yaml, creating the file with
// defaults if it does not exist.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".tsuzi", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file, merging environment
// overrides. A missing file is created with defaults first.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example override: TSUZI_LLM_ENDPOINT
	v.SetEnvPrefix("TSUZI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.DataDir = expandPath(cfg.DataDir)
	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in zero values left out of a hand-edited config file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Audio.ASREndpoint == "" {
		c.Audio.ASREndpoint = d.Audio.ASREndpoint
	}
	if c.Speech.TTSEndpoint == "" {
		c.Speech.TTSEndpoint = d.Speech.TTSEndpoint
	}
	if c.Speech.Voice == "" {
		c.Speech.Voice = d.Speech.Voice
	}
	if c.Speech.Speed == 0 {
		c.Speech.Speed = d.Speech.Speed
	}
	if c.Router.ConfidenceThreshold == 0 {
		c.Router.ConfidenceThreshold = d.Router.ConfidenceThreshold
	}
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = d.LLM.Endpoint
	}
	if c.LLM.ChatModel == "" {
		c.LLM.ChatModel = d.LLM.ChatModel
	}
	if c.LLM.ClassifierModel == "" {
		c.LLM.ClassifierModel = d.LLM.ClassifierModel
	}
	if c.LLM.SummaryModel == "" {
		c.LLM.SummaryModel = d.LLM.SummaryModel
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = d.LLM.Timeout
	}
	if c.Session.RecentTurns == 0 {
		c.Session.RecentTurns = d.Session.RecentTurns
	}
	if c.Session.SystemPrompt == "" {
		c.Session.SystemPrompt = d.Session.SystemPrompt
	}
	if c.Weather.Latitude == 0 && c.Weather.Longitude == 0 {
		c.Weather = d.Weather
	}
	if len(c.News.Topics) == 0 {
		c.News.Topics = d.News.Topics
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// writeConfigFile marshals the config to YAML and writes it to path.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := "# Tsuzi configuration\n# Environment overrides: TSUZI_<SECTION>_<KEY>, e.g. TSUZI_LLM_ENDPOINT\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}
