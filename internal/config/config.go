package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Supported providers and report formats
const (
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"

	AIProviderGemini = "gemini"
	AIProviderOpenAI = "openai"

	DefaultGeminiModel = "gemini-3-flash-preview"
	DefaultOpenAIModel = "gpt-4o-mini"

	FormatConsole  = "console"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatCSV      = "csv"
)

// Config represents the main configuration structure
type Config struct {
	GitHub      GitHubConfig      `yaml:"github"      mapstructure:"github"`
	GitLab      GitLabConfig      `yaml:"gitlab"      mapstructure:"gitlab"`
	Metadata    MetadataConfig    `yaml:"metadata"    mapstructure:"metadata"`
	AI          AIConfig          `yaml:"ai"          mapstructure:"ai"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
	Classifier  ClassifierConfig  `yaml:"classifier"  mapstructure:"classifier"`
	Output      OutputConfig      `yaml:"output"      mapstructure:"output"`
	Logging     LoggingConfig     `yaml:"logging"     mapstructure:"logging"`
	Timeout     TimeoutConfig     `yaml:"timeout"     mapstructure:"timeout"`
}

// GitHubConfig represents GitHub REST API settings
type GitHubConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Token   string `yaml:"token"    mapstructure:"token"`
}

// GitLabConfig represents GitLab connection settings
type GitLabConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Token   string `yaml:"token"    mapstructure:"token"`
}

// MetadataConfig selects the source-hosting provider
type MetadataConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// AIConfig represents the generative model settings
type AIConfig struct {
	Provider       string `yaml:"provider"         mapstructure:"provider"`
	Model          string `yaml:"model"            mapstructure:"model"`
	APIKey         string `yaml:"api_key"          mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url"         mapstructure:"base_url"`
	MaxReadmeChars int    `yaml:"max_readme_chars" mapstructure:"max_readme_chars"`
}

// CredentialsConfig represents where credentials are persisted
type CredentialsConfig struct {
	File    string `yaml:"file"    mapstructure:"file"`
	Persist bool   `yaml:"persist" mapstructure:"persist"`
}

// ClassifierConfig represents extra patterns marking dependencies as internal
type ClassifierConfig struct {
	InternalPatterns []string `yaml:"internal_patterns" mapstructure:"internal_patterns"`
}

// OutputConfig represents report settings
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file"   mapstructure:"file"`
	Title  string `yaml:"title"  mapstructure:"title"`
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// TimeoutConfig represents timeout configuration
type TimeoutConfig struct {
	AnalysisTimeoutMinutes int `yaml:"analysis_timeout_minutes" mapstructure:"analysis_timeout_minutes"`
}

// LoadConfig loads configuration from an optional file, environment variables
// and the overrides set on the global viper instance by CLI flags
func LoadConfig(configPath string) (*Config, error) {
	// Create a new Viper instance to avoid data races in concurrent tests
	v := viper.New()
	setDefaultValues(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = v.BindEnv("github.base_url", "GITHUB_BASE_URL")
	_ = v.BindEnv("github.token", "GITHUB_TOKEN")
	_ = v.BindEnv("gitlab.base_url", "GITLAB_BASE_URL")
	_ = v.BindEnv("gitlab.token", "GITLAB_TOKEN")
	_ = v.BindEnv("metadata.provider", "SOURCEMIND_METADATA_PROVIDER")
	_ = v.BindEnv("ai.provider", "SOURCEMIND_AI_PROVIDER")
	_ = v.BindEnv("ai.model", "SOURCEMIND_AI_MODEL")
	_ = v.BindEnv("ai.api_key", "GEMINI_API_KEY", "API_KEY")
	_ = v.BindEnv("ai.base_url", "SOURCEMIND_AI_BASE_URL")
	_ = v.BindEnv("credentials.file", "SOURCEMIND_CREDENTIALS_FILE")
	_ = v.BindEnv("output.format", "SOURCEMIND_OUTPUT_FORMAT")
	_ = v.BindEnv("output.file", "SOURCEMIND_OUTPUT_FILE")
	_ = v.BindEnv("logging.level", "SOURCEMIND_LOG_LEVEL")
	_ = v.BindEnv("timeout.analysis_timeout_minutes", "ANALYSIS_TIMEOUT_MINUTES")

	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configPath)
		}

		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Flags bound on the global instance win over file and env
	for _, key := range []string{"output.format", "output.file", "output.title", "ai.provider",
		"timeout.analysis_timeout_minutes", "logging.level"} {
		if !viper.IsSet(key) {
			continue
		}
		// A zero timeout flag keeps the configured value
		if key == "timeout.analysis_timeout_minutes" && viper.GetInt(key) == 0 {
			continue
		}
		v.Set(key, viper.Get(key))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(&config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// DefaultCredentialsFile returns the per-user credentials path
func DefaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "sourcemind", "credentials.env")
}

// setDefaultValues sets default configuration values
func setDefaultValues(v *viper.Viper) {
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("gitlab.base_url", "https://gitlab.com")
	v.SetDefault("metadata.provider", ProviderGitHub)

	v.SetDefault("ai.provider", AIProviderGemini)
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.max_readme_chars", 25000)

	v.SetDefault("credentials.file", DefaultCredentialsFile())
	v.SetDefault("credentials.persist", true)

	v.SetDefault("output.format", FormatConsole)
	v.SetDefault("output.title", "SourceMind Analysis")

	v.SetDefault("logging.level", "info")

	v.SetDefault("timeout.analysis_timeout_minutes", 5)
}

func normalize(config *Config) {
	config.GitHub.BaseURL = strings.TrimSuffix(strings.TrimSpace(config.GitHub.BaseURL), "/")
	config.GitLab.BaseURL = strings.TrimSuffix(strings.TrimSpace(config.GitLab.BaseURL), "/")
	config.AI.BaseURL = strings.TrimSuffix(strings.TrimSpace(config.AI.BaseURL), "/")
	config.Metadata.Provider = strings.ToLower(strings.TrimSpace(config.Metadata.Provider))
	config.AI.Provider = strings.ToLower(strings.TrimSpace(config.AI.Provider))
	config.Output.Format = strings.ToLower(strings.TrimSpace(config.Output.Format))

	// The model default follows the provider
	config.AI.Model = strings.TrimSpace(config.AI.Model)
	if config.AI.Model == "" {
		switch config.AI.Provider {
		case AIProviderGemini:
			config.AI.Model = DefaultGeminiModel
		case AIProviderOpenAI:
			config.AI.Model = DefaultOpenAIModel
		}
	}
}

// validateConfig validates the configuration
func validateConfig(config Config) error {
	switch config.Metadata.Provider {
	case ProviderGitHub:
		if config.GitHub.BaseURL == "" {
			return fmt.Errorf("github.base_url is required")
		}
	case ProviderGitLab:
		if config.GitLab.BaseURL == "" {
			return fmt.Errorf("gitlab.base_url is required")
		}
	default:
		return fmt.Errorf("unsupported metadata.provider %q", config.Metadata.Provider)
	}

	switch config.AI.Provider {
	case AIProviderGemini, AIProviderOpenAI:
	default:
		return fmt.Errorf("unsupported ai.provider %q", config.AI.Provider)
	}

	if config.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}

	if config.AI.MaxReadmeChars <= 0 {
		return fmt.Errorf("ai.max_readme_chars must be positive")
	}

	switch config.Output.Format {
	case FormatConsole:
	case FormatJSON, FormatMarkdown, FormatHTML, FormatCSV:
		if config.Output.File == "" {
			return fmt.Errorf("output.file is required for format %q", config.Output.Format)
		}
	default:
		return fmt.Errorf("unsupported output.format %q", config.Output.Format)
	}

	if config.Timeout.AnalysisTimeoutMinutes <= 0 {
		return fmt.Errorf("timeout.analysis_timeout_minutes must be positive")
	}

	return nil
}
