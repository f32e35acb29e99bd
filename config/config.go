package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ProviderHuggingFace = "huggingface"
	ProviderLiteLLM     = "litellm"
	ProviderOllama      = "ollama"
)

type PathsConfig struct {
	DataDir string `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`
	IndexDB string `mapstructure:"index_db" yaml:"index_db"`
}

type ModelsConfig struct {
	Provider       string  `mapstructure:"provider" yaml:"provider" validate:"oneof=huggingface litellm ollama"`
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Token          string  `mapstructure:"token" yaml:"-"`
	EmbeddingModel string  `mapstructure:"embedding_model" yaml:"embedding_model" validate:"required"`
	LLM            string  `mapstructure:"llm" yaml:"llm" validate:"required"`
	LLMMaxTokens   int     `mapstructure:"llm_max_tokens" yaml:"llm_max_tokens" validate:"gt=0"`
	LLMTemperature float64 `mapstructure:"llm_temperature" yaml:"llm_temperature" validate:"gte=0,lte=2"`
	ASRModel       string  `mapstructure:"asr_model" yaml:"asr_model"`
	CacheDir       string  `mapstructure:"cache_dir" yaml:"cache_dir" validate:"required"`
	QuotesURL      string  `mapstructure:"quotes_url" yaml:"quotes_url" validate:"omitempty,url"`
}

type ProcessingConfig struct {
	ChunkSize           int     `mapstructure:"chunk_size" yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap        int     `mapstructure:"chunk_overlap" yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	RetrieverK          int     `mapstructure:"retriever_k" yaml:"retriever_k" validate:"gt=0"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold" validate:"gte=0,lte=1"`
	MaxNameLength       int     `mapstructure:"max_name_length" yaml:"max_name_length" validate:"gt=0"`
}

type ServerConfig struct {
	Address              string        `mapstructure:"address" yaml:"address"`
	Port                 int           `mapstructure:"port" yaml:"port" validate:"gt=0,lte=65535"`
	Headless             bool          `mapstructure:"headless" yaml:"headless"`
	EnableCORS           bool          `mapstructure:"enable_cors" yaml:"enable_cors"`
	EnableXSRFProtection bool          `mapstructure:"enable_xsrf_protection" yaml:"enable_xsrf_protection"`
	MaxUploadBytes       int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes" validate:"gt=0"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text logfmt json"`
}

type Config struct {
	Paths      PathsConfig      `mapstructure:"paths" yaml:"paths"`
	Models     ModelsConfig     `mapstructure:"models" yaml:"models"`
	Processing ProcessingConfig `mapstructure:"processing" yaml:"processing"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// Defaults mirrors the values baked into the container image.
func Defaults() map[string]any {
	return map[string]any{
		"paths.data_dir":                  "data",
		"paths.index_db":                  "",
		"models.provider":                 ProviderHuggingFace,
		"models.base_url":                 "",
		"models.token":                    "",
		"models.embedding_model":          "sentence-transformers/all-MiniLM-L6-v2",
		"models.llm":                      "HuggingFaceTB/SmolLM3-3B",
		"models.llm_max_tokens":           500,
		"models.llm_temperature":          0.6,
		"models.asr_model":                "openai/whisper-large-v3",
		"models.cache_dir":                "/models",
		"models.quotes_url":               "https://query1.finance.yahoo.com",
		"processing.chunk_size":           1000,
		"processing.chunk_overlap":        100,
		"processing.retriever_k":          5,
		"processing.similarity_threshold": 0.3,
		"processing.max_name_length":      70,
		"server.address":                  "0.0.0.0",
		"server.port":                     5000,
		"server.headless":                 true,
		"server.enable_cors":              false,
		"server.enable_xsrf_protection":   false,
		"server.max_upload_bytes":         200 << 20,
		"server.read_timeout":             "30s",
		"server.write_timeout":            "10m",
		"server.shutdown_timeout":         "15s",
		"log.level":                       "info",
		"log.format":                      "text",
	}
}

// envAliases lists the environment variables accepted for a key, first match
// wins. The STREAMLIT_* and Hugging Face names keep existing deployments
// working unchanged.
var envAliases = map[string][]string{
	"server.headless":               {"DOCQA_SERVER_HEADLESS", "STREAMLIT_SERVER_HEADLESS"},
	"server.port":                   {"DOCQA_SERVER_PORT", "STREAMLIT_SERVER_PORT"},
	"server.address":                {"DOCQA_SERVER_ADDRESS", "STREAMLIT_SERVER_ADDRESS"},
	"server.enable_cors":            {"DOCQA_SERVER_ENABLE_CORS", "STREAMLIT_SERVER_ENABLECORS"},
	"server.enable_xsrf_protection": {"DOCQA_SERVER_ENABLE_XSRF_PROTECTION", "STREAMLIT_SERVER_ENABLEXSRFPROTECTION", "STREAMLIT_SERVER_ENABLEXSRSFPROTECTION"},
	"models.cache_dir":              {"DOCQA_MODELS_CACHE_DIR", "HF_HOME", "TRANSFORMERS_CACHE"},
	"models.token":                  {"DOCQA_MODELS_TOKEN", "HUGGINGFACE_TOKEN", "HF_TOKEN"},
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"data-dir":  "paths.data_dir",
	"address":   "server.address",
	"port":      "server.port",
	"headless":  "server.headless",
	"log-level": "log.level",
	"provider":  "models.provider",
}

// Load builds the effective configuration. Precedence from lowest to highest:
// defaults, YAML file, .env file, process environment, explicitly set flags.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("docqa")
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "docqa"))
		}
		v.AddConfigPath("/etc/docqa")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// .env never overrides variables that are already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v.SetEnvPrefix("docqa")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envAliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Paths.IndexDB == "" {
		cfg.Paths.IndexDB = filepath.Join(cfg.IndexDir(), "docqa.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every field and reports all failures at once.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// WriteFile stores the configuration as YAML. The token is never written.
func WriteFile(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}
