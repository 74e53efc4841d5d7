package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the home directory when no config file is
// given explicitly.
const DefaultFileName = ".gcpulse.yaml"

// Config holds everything needed to reach the GCPulse backend.
type Config struct {
	BaseURL   string          `yaml:"baseUrl"`
	Diagnosis DiagnosisConfig `yaml:"diagnosis"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
}

// DiagnosisConfig holds the AI overrides sent with diagnosis requests. Empty
// values leave the backend defaults in effect.
type DiagnosisConfig struct {
	APIURL          string        `yaml:"apiUrl"`
	APIKey          string        `yaml:"apiKey"`
	Model           string        `yaml:"model"`
	Timeout         time.Duration `yaml:"timeout"`
	OptimizeTimeout time.Duration `yaml:"optimizeTimeout"`
}

type AnalysisConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL: "http://localhost:8080/api",
		Diagnosis: DiagnosisConfig{
			Timeout:         90 * time.Second,
			OptimizeTimeout: 120 * time.Second,
		},
		Analysis: AnalysisConfig{
			Timeout: 300 * time.Second,
		},
		Log: LogConfig{
			Level: "warn",
		},
		Server: ServerConfig{
			Addr: ":8081",
		},
	}
}

// Load builds the configuration from defaults, a .env file in the working
// directory, the YAML file at path (or ~/.gcpulse.yaml when path is empty and
// the file exists) and finally GCPULSE_* environment variables.
func Load(path string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, DefaultFileName)
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if val := os.Getenv("GCPULSE_BASE_URL"); val != "" {
		c.BaseURL = val
	}
	if val := os.Getenv("GCPULSE_AI_API_URL"); val != "" {
		c.Diagnosis.APIURL = val
	}
	if val := os.Getenv("GCPULSE_AI_API_KEY"); val != "" {
		c.Diagnosis.APIKey = val
	}
	if val := os.Getenv("GCPULSE_AI_MODEL"); val != "" {
		c.Diagnosis.Model = val
	}
	if val := os.Getenv("GCPULSE_LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("GCPULSE_SERVER_ADDR"); val != "" {
		c.Server.Addr = val
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"GCPULSE_AI_TIMEOUT", &c.Diagnosis.Timeout},
		{"GCPULSE_AI_OPTIMIZE_TIMEOUT", &c.Diagnosis.OptimizeTimeout},
		{"GCPULSE_GC_TIMEOUT", &c.Analysis.Timeout},
	}
	for _, d := range durations {
		val := os.Getenv(d.env)
		if val == "" {
			continue
		}
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.env, val, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate checks the base URL and timeouts.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base URL %q: must be an absolute http(s) URL", c.BaseURL)
	}
	for name, d := range map[string]time.Duration{
		"diagnosis.timeout":         c.Diagnosis.Timeout,
		"diagnosis.optimizeTimeout": c.Diagnosis.OptimizeTimeout,
		"analysis.timeout":          c.Analysis.Timeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q (supported: debug, info, warn, error)", c.Log.Level)
	}
	return nil
}
