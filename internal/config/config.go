package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName = "taskflow"

	EnvAPIBaseURL = "TASKFLOW_API_BASE_URL"
	EnvIDToken    = "TASKFLOW_ID_TOKEN"
)

type Config struct {
	APIBaseURL           string        `yaml:"api_base_url"`
	BackendScoped        bool          `yaml:"backend_scoped"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	NotificationDuration time.Duration `yaml:"notification_duration"`
	DBPath               string        `yaml:"db_path"`
	TokenPath            string        `yaml:"token_path"`
	Auth                 AuthConfig    `yaml:"auth"`
	Log                  LogConfig     `yaml:"log"`
}

type AuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	RedirectPort int      `yaml:"redirect_port"`
	Scopes       []string `yaml:"scopes"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

func Default() Config {
	return Config{
		RequestTimeout:       30 * time.Second,
		NotificationDuration: 3 * time.Second,
		Auth: AuthConfig{
			RedirectPort: 6789,
			Scopes:       []string{"openid", "email", "profile"},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "file",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName, "config.yaml"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			config.applyEnv()
			return config, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	config.applyEnv()
	return config, nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Resolve fills paths that default to the config directory and normalizes the
// base URL.
func (c *Config) Resolve(configPath string) {
	dir := filepath.Dir(configPath)
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dir, "taskflow.db")
	}
	if c.TokenPath == "" {
		c.TokenPath = filepath.Join(dir, "token.json")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(dir, "taskflow.log")
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required (set it in the config file or %s)", EnvAPIBaseURL)
	}
	if c.NotificationDuration <= 0 {
		return fmt.Errorf("notification_duration must be positive")
	}
	return nil
}

func (c Config) AuthConfigured() bool {
	return c.Auth.ClientID != "" && c.Auth.AuthURL != "" && c.Auth.TokenURL != ""
}

func (c *Config) applyEnv() {
	if value := strings.TrimSpace(os.Getenv(EnvAPIBaseURL)); value != "" {
		c.APIBaseURL = value
	}
}
