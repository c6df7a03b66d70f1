package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".chartloom"

// Global configuration structure.
type Global struct {
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	SampleRows  int     `mapstructure:"sample_rows" yaml:"sample_rows"`

	// HTTP configuration
	HTTPTimeoutSec int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`

	// Local runtimes (Ollama)
	OllamaHost string `mapstructure:"ollama_host" yaml:"ollama_host"`

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	SeqURL   string `mapstructure:"seq_url" yaml:"seq_url,omitempty"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"api_key", "provider", "model", "max_tokens", "temperature", "sample_rows",
	"http_timeout_sec", "base_url", "ollama_host", "log_level", "seq_url",
}

// DefaultPath returns ~/.chartloom/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.chartloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// The file may hold an API key.
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("CHARTLOOM")
	v.AutomaticEnv()
	// Provider-native key variables are honoured after CHARTLOOM_API_KEY.
	_ = v.BindEnv("api_key", "CHARTLOOM_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY")

	// Defaults
	v.SetDefault("api_key", "")
	v.SetDefault("provider", "openai")
	v.SetDefault("model", "gpt-4o")
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("temperature", 1.0)
	v.SetDefault("sample_rows", 100)
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("base_url", "")
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("log_level", "info")
	v.SetDefault("seq_url", "")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, DirName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.SampleRows <= 0 || c.SampleRows > 100 {
		c.SampleRows = 100
	}
	return &c, nil
}

// Set assigns key from its string form, validating numeric keys.
func (c *Global) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "api_key":
		c.APIKey = value
	case "provider":
		c.Provider = strings.ToLower(value)
	case "model":
		c.Model = value
	case "max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("max_tokens must be a positive integer")
		}
		c.MaxTokens = n
	case "temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 2 {
			return fmt.Errorf("temperature must be a number between 0 and 2")
		}
		c.Temperature = f
	case "sample_rows":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 || n > 100 {
			return fmt.Errorf("sample_rows must be an integer between 1 and 100")
		}
		c.SampleRows = n
	case "http_timeout_sec":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("http_timeout_sec must be a positive integer")
		}
		c.HTTPTimeoutSec = n
	case "base_url":
		c.BaseURL = value
	case "ollama_host":
		c.OllamaHost = value
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	case "seq_url":
		c.SeqURL = value
	default:
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// Get returns key's display value; secrets are masked.
func (c *Global) Get(key string) (string, error) {
	switch strings.ToLower(key) {
	case "api_key":
		return Mask(c.APIKey), nil
	case "provider":
		return c.Provider, nil
	case "model":
		return c.Model, nil
	case "max_tokens":
		return strconv.Itoa(c.MaxTokens), nil
	case "temperature":
		return strconv.FormatFloat(c.Temperature, 'f', -1, 64), nil
	case "sample_rows":
		return strconv.Itoa(c.SampleRows), nil
	case "http_timeout_sec":
		return strconv.Itoa(c.HTTPTimeoutSec), nil
	case "base_url":
		return c.BaseURL, nil
	case "ollama_host":
		return c.OllamaHost, nil
	case "log_level":
		return c.LogLevel, nil
	case "seq_url":
		return c.SeqURL, nil
	}
	return "", fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
}

// Mask hides all but the last four characters of a secret.
func Mask(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
