package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DefaultAIEndpoints = "https://api-inference.huggingface.co/models/mistralai/Mistral-7B-Instruct-v0.3," +
	"https://api-inference.huggingface.co/models/meta-llama/Meta-Llama-3-8B-Instruct," +
	"https://api-inference.huggingface.co/models/microsoft/Phi-3-mini-4k-instruct"

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	AdminKey       string        `mapstructure:"ADMIN_KEY"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	AIEndpoints    string        `mapstructure:"AI_ENDPOINTS"`
	AIToken        string        `mapstructure:"AI_TOKEN"`
	AITimeout      time.Duration `mapstructure:"AI_TIMEOUT"`
	AIMaxNewTokens int           `mapstructure:"AI_MAX_NEW_TOKENS"`
	AITemperature  float64       `mapstructure:"AI_TEMPERATURE"`
	AITopP         float64       `mapstructure:"AI_TOP_P"`
	AIDisabled     bool          `mapstructure:"AI_DISABLED"`

	OpenAIBaseURL string `mapstructure:"OPENAI_BASE_URL"`
	OpenAIModel   string `mapstructure:"OPENAI_MODEL"`
	OpenAIAPIKey  string `mapstructure:"OPENAI_API_KEY"`

	GitHubAPIURL      string `mapstructure:"GITHUB_API_URL"`
	GitHubToken       string `mapstructure:"GITHUB_TOKEN"`
	GitHubMaxComments int    `mapstructure:"GITHUB_MAX_COMMENTS"`

	BatchWorkers int `mapstructure:"BATCH_WORKERS"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("AI_ENDPOINTS", DefaultAIEndpoints)
	v.SetDefault("AI_TOKEN", "")
	v.SetDefault("AI_TIMEOUT", "30s")
	v.SetDefault("AI_MAX_NEW_TOKENS", 800)
	v.SetDefault("AI_TEMPERATURE", 0.5)
	v.SetDefault("AI_TOP_P", 0.9)
	v.SetDefault("AI_DISABLED", false)

	v.SetDefault("OPENAI_BASE_URL", "")
	v.SetDefault("OPENAI_MODEL", "")
	v.SetDefault("OPENAI_API_KEY", "")

	v.SetDefault("GITHUB_API_URL", "https://api.github.com")
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_MAX_COMMENTS", 30)

	v.SetDefault("BATCH_WORKERS", 4)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Endpoints returns the configured inference endpoints in priority order.
func (c Config) Endpoints() []string {
	var out []string
	for _, e := range strings.Split(c.AIEndpoints, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// OpenAIEnabled reports whether an OpenAI-compatible backend is configured.
func (c Config) OpenAIEnabled() bool {
	return strings.TrimSpace(c.OpenAIModel) != "" &&
		(strings.TrimSpace(c.OpenAIAPIKey) != "" || strings.TrimSpace(c.OpenAIBaseURL) != "")
}
