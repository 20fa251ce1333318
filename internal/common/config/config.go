package config

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Form       FormConfig       `mapstructure:"form"`
	GenAI      GenAIConfig      `mapstructure:"genai"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// FormConfig tunes the validation thresholds shared by the validators and the
// AI help gate.
type FormConfig struct {
	SituationMinLength  int  `mapstructure:"situation_min_length"`
	AssistMinLength     int  `mapstructure:"assist_min_length"`
	AssistRequiresDraft bool `mapstructure:"assist_requires_draft"`
}

// GenAIConfig configures the OpenAI-compatible chat completions endpoint.
type GenAIConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds, per attempt
	MaxRetries  int     `mapstructure:"max_retries"`
	BaseDelay   int     `mapstructure:"base_delay"` // milliseconds
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type SubmissionConfig struct {
	Mode       string `mapstructure:"mode"` // http | simulated
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
	BaseDelay  int    `mapstructure:"base_delay"` // milliseconds
	// SimulatedDelay is how long the simulated backend pretends to work.
	SimulatedDelay int `mapstructure:"simulated_delay"` // milliseconds
}

type StorageConfig struct {
	Backend    string `mapstructure:"backend"` // memory | file | redis | sqlite
	Directory  string `mapstructure:"directory"`
	SQLitePath string `mapstructure:"sqlite_path"`
	Key        string `mapstructure:"key"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
