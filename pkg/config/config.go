package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendPinecone = "pinecone"
	BackendPGVector = "pgvector"
)

type Config struct {
	LLM struct {
		APIKey         string  `yaml:"api_key"`
		BaseURL        string  `yaml:"base_url"`
		Model          string  `yaml:"model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Vector struct {
		Backend   string `yaml:"backend"`
		IndexName string `yaml:"index_name"`
		Namespace string `yaml:"namespace"`
		Dimension int    `yaml:"dimension"`
		Metric    string `yaml:"metric"`
		TopK      int    `yaml:"top_k"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"vector"`

	Pinecone struct {
		APIKey       string        `yaml:"api_key"`
		Cloud        string        `yaml:"cloud"`
		Region       string        `yaml:"region"`
		ReadyTimeout time.Duration `yaml:"ready_timeout"`
	} `yaml:"pinecone"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
	} `yaml:"database"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Scraper struct {
		MaxDepth       int           `yaml:"max_depth"`
		RateLimit      float64       `yaml:"rate_limit"`
		IgnorePatterns []string      `yaml:"ignore_patterns"`
		Timeout        time.Duration `yaml:"timeout"`
	} `yaml:"scraper"`

	Cache struct {
		RedisURL string        `yaml:"redis_url"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"cache"`

	Server struct {
		Port         string `yaml:"port"`
		FilePath     string `yaml:"file_path"`
		MaxBodyBytes int64  `yaml:"max_body_bytes"`
		Streaming    bool   `yaml:"streaming"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/hragent/config.yaml"),
			"/etc/hragent/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Keys missing from the file keep their defaults
	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(config)

	return config, nil
}

// loadDotEnv populates the environment from a .env file when one exists.
// Variables already set in the environment win.
func loadDotEnv(file string) error {
	if err := godotenv.Load(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading %s: %w", file, err)
	}
	return nil
}

func getDefaultConfig() (*Config, error) {
	config := defaultConfig()
	mergeWithEnv(config)
	return config, nil
}

// defaultConfig returns a config holding every default. Files are decoded on
// top of it, so a key written as zero (temperature: 0) stays zero.
func defaultConfig() *Config {
	config := &Config{}

	config.LLM.Model = "gpt-3.5-turbo"
	config.LLM.EmbeddingModel = "text-embedding-ada-002"
	config.LLM.MaxTokens = 2000
	config.LLM.Temperature = 0.7

	config.Vector.Backend = BackendPinecone
	config.Vector.Dimension = 1536
	config.Vector.Metric = "cosine"
	config.Vector.TopK = 5
	config.Vector.BatchSize = 100

	config.Pinecone.Cloud = "aws"
	config.Pinecone.Region = "us-east-1"
	config.Pinecone.ReadyTimeout = 2 * time.Minute

	config.Database.TableName = "documents"

	config.Processor.ChunkSize = 1000
	config.Processor.ChunkOverlap = 200

	config.Scraper.MaxDepth = 1
	config.Scraper.RateLimit = 2.0
	config.Scraper.Timeout = 30 * time.Second

	config.Cache.TTL = time.Hour

	config.Server.Port = "5000"
	config.Server.MaxBodyBytes = 16 * 1024 * 1024

	return config
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if key := os.Getenv("PINECONE_API_KEY"); key != "" {
		config.Pinecone.APIKey = key
	}
	if name := os.Getenv("INDEX_NAME"); name != "" {
		config.Vector.IndexName = name
	}
	if backend := os.Getenv("VECTOR_BACKEND"); backend != "" {
		config.Vector.Backend = backend
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Cache.RedisURL = redisURL
	}
	if filePath := os.Getenv("FILE_PATH"); filePath != "" {
		config.Server.FilePath = filePath
	}
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			config.Server.Port = port
		}
	}
}
