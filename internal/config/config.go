// Package config handles CareLoop configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./careloop.yaml, ~/.config/careloop/config.yaml, /etc/careloop/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"careloop.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "careloop", "config.yaml"))
	}

	paths = append(paths, "/etc/careloop/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all CareLoop configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Speech    SpeechConfig    `yaml:"speech"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	Search    SearchConfig    `yaml:"search"`
	Kiosk     KioskConfig     `yaml:"kiosk"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Agent     AgentConfig     `yaml:"agent"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// GeminiConfig defines the LLM provider settings.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // e.g. gemini-2.0-flash
}

// Configured reports whether an API key is set.
func (c GeminiConfig) Configured() bool { return c.APIKey != "" }

// SpeechConfig defines STT and TTS provider settings.
type SpeechConfig struct {
	OpenAIAPIKey     string `yaml:"openai_api_key"`     // Whisper STT
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key"` // TTS
	VoiceID          string `yaml:"voice_id"`
	ModelID          string `yaml:"model_id"`
}

// WhatsAppConfig defines the Whapi.Cloud messaging gateway settings.
type WhatsAppConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// Configured reports whether the messaging gateway is usable.
func (c WhatsAppConfig) Configured() bool { return c.BaseURL != "" && c.Token != "" }

// SearchConfig defines web search provider settings.
type SearchConfig struct {
	Primary string      `yaml:"primary"` // duckduckgo (default) or brave
	Brave   BraveConfig `yaml:"brave"`
}

// BraveConfig holds the Brave Search API key.
type BraveConfig struct {
	APIKey string `yaml:"api_key"`
}

// KioskConfig defines the patient-facing device integration.
type KioskConfig struct {
	// BaseURL is the public URL the kiosk loads; used for the pairing QR code.
	BaseURL string     `yaml:"base_url"`
	MQTT    MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig defines the optional MQTT push channel to the kiosk.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g. mqtt://broker.local:1883
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"` // default: careloop
	DeviceName  string `yaml:"device_name"`  // default: kiosk
}

// SchedulerConfig defines the due-item scan cadence.
type SchedulerConfig struct {
	// CheckIntervalSec is the seconds between due-item scans (default 60).
	CheckIntervalSec int `yaml:"check_interval_sec"`
}

// Interval returns the scan interval as a duration.
func (c SchedulerConfig) Interval() time.Duration {
	if c.CheckIntervalSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.CheckIntervalSec) * time.Second
}

// AgentConfig defines conversation agent settings.
type AgentConfig struct {
	// MaxToolIterations caps the tool-call resolution loop (default 8).
	MaxToolIterations int `yaml:"max_tool_iterations"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Port: 8080},
		DataDir: "data",
		Gemini:  GeminiConfig{Model: "gemini-2.0-flash"},
		Speech: SpeechConfig{
			VoiceID: "21m00Tcm4TlvDq8ikWAM", // ElevenLabs "Rachel"
			ModelID: "eleven_turbo_v2",
		},
		Search: SearchConfig{Primary: "duckduckgo"},
		Kiosk: KioskConfig{
			MQTT: MQTTConfig{TopicPrefix: "careloop", DeviceName: "kiosk"},
		},
		Scheduler: SchedulerConfig{CheckIntervalSec: 60},
		Agent:     AgentConfig{MaxToolIterations: 8},
	}
}
