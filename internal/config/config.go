package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

type Source struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type LLMConfig struct {
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key,omitempty"`
	Timeout  string `yaml:"timeout"`
	RetryMax int    `yaml:"retry_max"`
}

type Config struct {
	Interests    string       `yaml:"interests"`
	Threshold    int          `yaml:"threshold"`
	SummaryStyle string       `yaml:"summary_style"`
	UserAgent    string       `yaml:"user_agent"`
	DataDir      string       `yaml:"data_dir,omitempty"`
	Server       ServerConfig `yaml:"server"`
	Redis        RedisConfig  `yaml:"redis"`
	LLM          LLMConfig    `yaml:"llm"`
	Sources      []Source     `yaml:"sources"`
}

func (c *Config) EnabledSources() []Source {
	var out []Source
	for _, s := range c.Sources {
		if !s.Disabled {
			out = append(out, s)
		}
	}
	return out
}

// LLMTimeout returns the per-request LLM timeout, defaulting to 30s.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// BadgerPath is where the content store lives on disk.
func (c *Config) BadgerPath() string {
	if c.DataDir != "" {
		return filepath.Join(c.DataDir, "badger")
	}
	return filepath.Join(xdg.DataHome, "weft", "badger")
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "weft", "config.yaml")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path (or the default location) on top of the
// embedded defaults, then applies environment overrides. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WEFT_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if v := os.Getenv("GROQ_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("WEFT_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
}

func validate(cfg *Config) error {
	if cfg.Threshold < 1 || cfg.Threshold > 10 {
		return fmt.Errorf("threshold must be between 1 and 10, got %d", cfg.Threshold)
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	for i, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("source %q: invalid url: %w", s.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source %q: url scheme must be http or https, got %q", s.Name, u.Scheme)
		}
	}
	return nil
}
