package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultSituationMinLength = 15
	DefaultStorageKey         = "appState"
)

// Load reads configs/config.yaml, merges config.<env>.yaml on top and applies
// environment overrides (SSA_GENAI_API_KEY, ...).
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if dir := userConfigDir(); dir != "" {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("SSA_APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SSA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindDefaults(v)
	return v
}

// bindDefaults registers every key so AutomaticEnv can override keys that are
// absent from the YAML files.
func bindDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "social-support")
	v.SetDefault("app.environment", "development")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("form.situation_min_length", DefaultSituationMinLength)
	v.SetDefault("form.assist_min_length", 0)
	v.SetDefault("form.assist_requires_draft", true)
	v.SetDefault("genai.base_url", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("genai.api_key", "")
	v.SetDefault("genai.model", "gpt-3.5-turbo")
	v.SetDefault("genai.timeout", 10000)
	v.SetDefault("genai.max_retries", 2)
	v.SetDefault("genai.base_delay", 1000)
	v.SetDefault("genai.max_tokens", 500)
	v.SetDefault("genai.temperature", 0.7)
	v.SetDefault("submission.mode", "simulated")
	v.SetDefault("submission.base_url", "")
	v.SetDefault("submission.timeout", 30000)
	v.SetDefault("submission.max_retries", 2)
	v.SetDefault("submission.base_delay", 1000)
	v.SetDefault("submission.simulated_delay", 2000)
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.directory", "")
	v.SetDefault("storage.sqlite_path", "")
	v.SetDefault("storage.key", DefaultStorageKey)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", 2000)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.address", ":9090")
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	paths := []string{".env"}
	if dir := userConfigDir(); dir != "" {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func userConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ssa")
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// an unset variable expands to "" so defaults and fallbacks apply
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig accepts the conventional key names used by other tools.
func overrideEmptyConfig(cfg *Config) {
	if cfg.GenAI.APIKey == "" {
		for _, name := range []string{"OPENAI_API_KEY", "GENAI_API_KEY"} {
			if val := os.Getenv(name); val != "" {
				cfg.GenAI.APIKey = val
				break
			}
		}
	}
	if cfg.Submission.BaseURL == "" {
		if val := os.Getenv("API_BASE_URL"); val != "" {
			cfg.Submission.BaseURL = val
		}
	}
}

// applyDefaults fills values a YAML file may have zeroed explicitly.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Form.SituationMinLength <= 0 {
		cfg.Form.SituationMinLength = DefaultSituationMinLength
	}
	if cfg.Form.AssistMinLength <= 0 {
		cfg.Form.AssistMinLength = cfg.Form.SituationMinLength
	}

	if cfg.GenAI.Model == "" {
		cfg.GenAI.Model = "gpt-3.5-turbo"
	}
	if cfg.GenAI.Timeout <= 0 {
		cfg.GenAI.Timeout = 10000
	}
	if cfg.GenAI.MaxRetries < 0 {
		cfg.GenAI.MaxRetries = 0
	}
	if cfg.GenAI.BaseDelay <= 0 {
		cfg.GenAI.BaseDelay = 1000
	}
	if cfg.GenAI.MaxTokens <= 0 {
		cfg.GenAI.MaxTokens = 500
	}

	if cfg.Submission.Mode == "" {
		cfg.Submission.Mode = "simulated"
	}
	if cfg.Submission.Timeout <= 0 {
		cfg.Submission.Timeout = 30000
	}
	if cfg.Submission.MaxRetries < 0 {
		cfg.Submission.MaxRetries = 0
	}
	if cfg.Submission.BaseDelay <= 0 {
		cfg.Submission.BaseDelay = 1000
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.Key == "" {
		cfg.Storage.Key = DefaultStorageKey
	}
	if cfg.Storage.Directory == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cfg.Storage.Directory = filepath.Join(dir, "ssa")
		} else {
			cfg.Storage.Directory = ".ssa"
		}
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.Directory, "drafts.db")
	}

	if cfg.Redis.Timeout <= 0 {
		cfg.Redis.Timeout = 2000
	}
}

// validateConfig validates critical configuration fields.
func validateConfig(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "memory", "file", "sqlite":
	case "redis":
		if cfg.Redis.Address == "" {
			return fmt.Errorf("redis.address is required for the redis storage backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", cfg.Storage.Backend)
	}

	switch cfg.Submission.Mode {
	case "simulated":
	case "http":
		if cfg.Submission.BaseURL == "" {
			return fmt.Errorf("submission.base_url is required in http mode")
		}
	default:
		return fmt.Errorf("submission.mode %q is not supported", cfg.Submission.Mode)
	}

	if cfg.GenAI.Temperature < 0 || cfg.GenAI.Temperature > 2 {
		return fmt.Errorf("genai.temperature must be within [0, 2]")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
