package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Stream StreamConfig `yaml:"stream"`
	AI     AIConfig     `yaml:"ai"`
	Events EventsConfig `yaml:"events"`
	Web    WebConfig    `yaml:"web"`
	Log    LogConfig    `yaml:"log,omitempty"`
}

// StreamConfig contains frame source and scheduler configuration
type StreamConfig struct {
	Source                SourceConfig  `yaml:"source"`
	TargetFPS             int           `yaml:"target_fps"`
	RecoveryInterval      time.Duration `yaml:"recovery_interval"`
	FastRecoveryThreshold time.Duration `yaml:"fast_recovery_threshold"`
	SourceBufferCapacity  int           `yaml:"source_buffer_capacity"`
	PushReadTimeout       time.Duration `yaml:"push_read_timeout"`
}

// SourceConfig describes where frames come from
type SourceConfig struct {
	Type    string `yaml:"type"` // file, webcam, rtsp, push, synthetic
	Path    string `yaml:"path"`
	Device  string `yaml:"device"`
	RTSPURL string `yaml:"rtsp_url"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

// AIConfig contains inference stage configuration
type AIConfig struct {
	Mode        string        `yaml:"mode"` // remote, sim
	ServiceURL  string        `yaml:"service_url"`
	Timeout     time.Duration `yaml:"timeout"`
	JPEGQuality int           `yaml:"jpeg_quality"`
}

// EventsConfig contains detection event log configuration
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	DataDir string `yaml:"data_dir"`
	MaxRows int    `yaml:"max_rows"`
}

// WebConfig contains web server configuration
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.setDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, without reading a file.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	cfg.applyEnv()
	return &cfg
}

// getDefaultConfigPath returns the default configuration file path
func getDefaultConfigPath() string {
	paths := []string{
		"./config.yaml",
		"./config/config.yaml",
		"/etc/streamd/config.yaml",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return paths[0]
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Stream.TargetFPS == 0 {
		c.Stream.TargetFPS = 10
	}
	if c.Stream.RecoveryInterval == 0 {
		c.Stream.RecoveryInterval = 5 * time.Second
	}
	if c.Stream.FastRecoveryThreshold == 0 {
		c.Stream.FastRecoveryThreshold = 200 * time.Millisecond
	}
	if c.Stream.SourceBufferCapacity == 0 {
		c.Stream.SourceBufferCapacity = 10
	}
	if c.Stream.PushReadTimeout == 0 {
		c.Stream.PushReadTimeout = 5 * time.Second
	}
	if c.Stream.Source.Type == "" {
		c.Stream.Source.Type = "file"
	}
	if c.Stream.Source.Path == "" {
		c.Stream.Source.Path = "dummy.mp4"
	}
	if c.Stream.Source.Device == "" {
		c.Stream.Source.Device = "/dev/video0"
	}
	if c.Stream.Source.Width == 0 {
		c.Stream.Source.Width = 640
	}
	if c.Stream.Source.Height == 0 {
		c.Stream.Source.Height = 480
	}

	if c.AI.Mode == "" {
		c.AI.Mode = "remote"
	}
	if c.AI.ServiceURL == "" {
		c.AI.ServiceURL = "http://localhost:8080"
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 30 * time.Second
	}
	if c.AI.JPEGQuality == 0 {
		c.AI.JPEGQuality = 85
	}

	if c.Events.DataDir == "" {
		c.Events.DataDir = "./data"
	}
	if c.Events.MaxRows == 0 {
		c.Events.MaxRows = 10000
	}

	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 9000
	}
}

// applyEnv applies environment variable overrides
func (c *Config) applyEnv() {
	if path := os.Getenv("VIDEO_SOURCE_PATH"); path != "" {
		c.Stream.Source.Path = path
	}
	if url := os.Getenv("AI_SERVICE_URL"); url != "" {
		c.AI.ServiceURL = url
	}
}

// EventsDBPath returns the sqlite database path for the event log
func (c *Config) EventsDBPath() string {
	return filepath.Join(c.Events.DataDir, "db", "events.db")
}
