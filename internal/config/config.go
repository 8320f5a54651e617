// Package config loads client and server settings from an optional YAML
// file with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	dur, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig locates the interview service.
type ServerConfig struct {
	// URL is the service base URL the client connects to.
	URL string `yaml:"url"`
	// Listen is the bind address of the reference server.
	Listen string `yaml:"listen"`
}

// SessionConfig tunes the client session.
type SessionConfig struct {
	FrameInterval  Duration `yaml:"frame_interval"`
	AlertWindow    int      `yaml:"alert_window"`
	AlertTTL       Duration `yaml:"alert_ttl"`
	ReactionTTL    Duration `yaml:"reaction_ttl"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// STTConfig locates the speech-to-text endpoint.
type STTConfig struct {
	URL      string `yaml:"url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

// Config is the full settings tree.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	STT     STTConfig     `yaml:"stt"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: ServerConfig{
			URL:    "http://localhost:8000",
			Listen: ":8000",
		},
		Session: SessionConfig{
			FrameInterval: Duration(500 * time.Millisecond),
			AlertWindow:   5,
			AlertTTL:      Duration(4 * time.Second),
			ReactionTTL:   Duration(3 * time.Second),
		},
		STT: STTConfig{
			URL:      "https://api.cartesia.ai",
			Model:    "ink-whisper",
			Language: "en",
		},
	}
}

// Load builds the settings: defaults, then the YAML file at path (skipped
// when path is empty or the file does not exist), then environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %q: %w", path, err)
			}
		case os.IsNotExist(err):
			// Optional file.
		default:
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.URL, "VOXHIRE_SERVER_URL")
	setString(&cfg.Server.Listen, "VOXHIRE_LISTEN")
	setString(&cfg.STT.URL, "VOXHIRE_STT_URL")
	setString(&cfg.STT.APIKey, "VOXHIRE_STT_API_KEY", "CARTESIA_API_KEY")
	setString(&cfg.STT.Model, "VOXHIRE_STT_MODEL")
	setString(&cfg.STT.Language, "VOXHIRE_STT_LANGUAGE")
	setDuration(&cfg.Session.FrameInterval, "VOXHIRE_FRAME_INTERVAL")
	setDuration(&cfg.Session.AlertTTL, "VOXHIRE_ALERT_TTL")
	setDuration(&cfg.Session.ReactionTTL, "VOXHIRE_REACTION_TTL")
	setDuration(&cfg.Session.ConnectTimeout, "VOXHIRE_CONNECT_TIMEOUT")
	setInt(&cfg.Session.AlertWindow, "VOXHIRE_ALERT_WINDOW")
}

func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
			return
		}
	}
}

func setDuration(dst *Duration, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if dur, err := time.ParseDuration(v); err == nil {
		*dst = Duration(dur)
	}
}

func setInt(dst *int, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}
