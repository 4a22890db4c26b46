package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ServiceConfig holds the connection settings for one upstream provider.
type ServiceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// ChunkingConfig controls the parent/child chunker. Large* values apply to
// documents whose extracted text exceeds LargeDocBytes.
type ChunkingConfig struct {
	MaxChunkSize    int `mapstructure:"max_chunk_size"`
	ParentSize      int `mapstructure:"parent_size"`
	ChildSize       int `mapstructure:"child_size"`
	LargeParentSize int `mapstructure:"large_parent_size"`
	LargeChildSize  int `mapstructure:"large_child_size"`
	LargeDocBytes   int `mapstructure:"large_doc_bytes"`
}

type Config struct {
	Server struct {
		Host    string `mapstructure:"host"`
		Port    string `mapstructure:"port"`
		DataDir string `mapstructure:"data_dir"`
	} `mapstructure:"server"`
	Chunking ChunkingConfig `mapstructure:"chunking"`
	Services struct {
		Doc2X     ServiceConfig `mapstructure:"doc2x"`
		Embedding ServiceConfig `mapstructure:"embedding"`
		Reranker  ServiceConfig `mapstructure:"reranker"`
		LLM       ServiceConfig `mapstructure:"llm"`
	} `mapstructure:"services"`
	Azure struct {
		VisionEndpoint string `mapstructure:"vision_endpoint"`
		VisionKey      string `mapstructure:"vision_key"`
	} `mapstructure:"azure"`
}

// LoadConfig reads config.yaml from the given directory with environment
// overrides. A missing config file is not an error; defaults and environment
// variables are enough to run.
func LoadConfig(path string) (*Config, error) {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8787")
	viper.SetDefault("server.data_dir", "data")

	viper.SetDefault("chunking.max_chunk_size", 4000)
	viper.SetDefault("chunking.parent_size", 2000)
	viper.SetDefault("chunking.child_size", 600)
	viper.SetDefault("chunking.large_parent_size", 3000)
	viper.SetDefault("chunking.large_child_size", 800)
	viper.SetDefault("chunking.large_doc_bytes", 500*1024)

	viper.SetDefault("services.embedding.base_url", "https://api.siliconflow.cn/v1")
	viper.SetDefault("services.embedding.model", "BAAI/bge-m3")
	viper.SetDefault("services.llm.base_url", "https://api.siliconflow.cn/v1")
	viper.SetDefault("services.reranker.base_url", "https://api.siliconflow.cn/v1")

	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	_ = viper.BindEnv("server.port", "PORT")
	_ = viper.BindEnv("server.data_dir", "DATA_DIR")
	_ = viper.BindEnv("azure.vision_endpoint", "AZURE_VISION_ENDPOINT")
	_ = viper.BindEnv("azure.vision_key", "AZURE_VISION_KEY")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// SILICONFLOW_API_KEY is the shared key for all SiliconFlow-hosted
	// services unless a per-service key is configured.
	if key := os.Getenv("SILICONFLOW_API_KEY"); key != "" {
		if cfg.Services.Embedding.APIKey == "" {
			cfg.Services.Embedding.APIKey = key
		}
		if cfg.Services.LLM.APIKey == "" {
			cfg.Services.LLM.APIKey = key
		}
		if cfg.Services.Reranker.APIKey == "" {
			cfg.Services.Reranker.APIKey = key
		}
	}

	return &cfg, nil
}
