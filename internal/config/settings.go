package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RecorderSettings tunes the supervisor itself. The camera document says
// what to record; these say how the recorder behaves.
type RecorderSettings struct {
	FFmpegPath          string        `yaml:"ffmpeg_path"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	ProbeConnectTimeout time.Duration `yaml:"probe_connect_timeout"`
	ProbeRetryInterval  time.Duration `yaml:"probe_retry_interval"`
	ProbeMaxAttempts    int           `yaml:"probe_max_attempts"` // 0 = retry forever
	ShutdownGrace       time.Duration `yaml:"shutdown_grace"`     // 0 = wait forever
	RestartCooldown     time.Duration `yaml:"restart_cooldown"`
	FailurePolicy       string        `yaml:"failure_policy"` // abort-all | restart-one
	StartupMode         string        `yaml:"startup_mode"`   // sequential | parallel
	StartupConcurrency  int           `yaml:"startup_concurrency"`
	MetricsAddr         string        `yaml:"metrics_addr"` // empty = no metrics listener
	StderrLines         int           `yaml:"stderr_lines"`
}

// DefaultRecorderSettings mirrors the behavior of the original recorder:
// 10s polls, 5s connect timeout, unbounded probing, abort on first failure.
func DefaultRecorderSettings() RecorderSettings {
	return RecorderSettings{
		FFmpegPath:          "ffmpeg",
		PollInterval:        10 * time.Second,
		ProbeConnectTimeout: 5 * time.Second,
		ProbeRetryInterval:  5 * time.Second,
		ShutdownGrace:       10 * time.Second,
		RestartCooldown:     5 * time.Second,
		FailurePolicy:       "abort-all",
		StartupMode:         "sequential",
		StderrLines:         200,
	}
}

// ServerSettings configures the control-plane HTTP API.
type ServerSettings struct {
	Address      string   `yaml:"address"`
	Port         string   `yaml:"port"`
	RedisAddr    string   `yaml:"redis_address"`
	ConfigPath   string   `yaml:"config_path"`
	ServiceName  string   `yaml:"service_name"`
	UnitBackend  string   `yaml:"unit_backend"` // systemctl | dbus
	UseSudo      bool     `yaml:"use_sudo"`
	WriteRate    float64  `yaml:"write_rate"` // config writes per second
	WriteBurst   int      `yaml:"write_burst"`
	AllowOrigins []string `yaml:"allow_origins"`
}

func DefaultServerSettings() ServerSettings {
	return ServerSettings{
		Address:     "0.0.0.0",
		Port:        "5000",
		RedisAddr:   "localhost:6379",
		ConfigPath:  "./config.json",
		ServiceName: "rtsp-recorder",
		UnitBackend: "systemctl",
		UseSudo:     true,
		WriteRate:   1,
		WriteBurst:  5,
	}
}

// LoadRecorderSettings overlays the YAML file at path on the defaults.
// A missing file is not an error.
func LoadRecorderSettings(path string) (RecorderSettings, error) {
	s := DefaultRecorderSettings()
	if err := loadYAML(path, &s); err != nil {
		return s, err
	}
	return s, nil
}

// LoadServerSettings overlays the YAML file at path on the defaults.
// A missing file is not an error.
func LoadServerSettings(path string) (ServerSettings, error) {
	s := DefaultServerSettings()
	if err := loadYAML(path, &s); err != nil {
		return s, err
	}
	return s, nil
}

func loadYAML(path string, dst any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: read %s: %w", ErrConfig, path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: parse %s: %w", ErrConfig, path, err)
	}
	return nil
}
