package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Analysis struct {
		MaxConcurrentAgents int      `yaml:"maxConcurrentAgents"`
		TimeoutMs           int      `yaml:"timeoutMs"`
		RetryAttempts       int      `yaml:"retryAttempts"`
		RetryBackoffMs      int      `yaml:"retryBackoffMs"`
		ConfidenceThreshold float64  `yaml:"confidenceThreshold"`
		HighRiskThreshold   int      `yaml:"highRiskThreshold"`
		MediumRiskThreshold int      `yaml:"mediumRiskThreshold"`
		DefaultAgents       []string `yaml:"defaultAgents"`
	} `yaml:"analysis"`

	Cache struct {
		TTLSeconds int `yaml:"ttlSeconds"`
		MaxEntries int `yaml:"maxEntries"`
	} `yaml:"cache"`

	Ledger struct {
		Enabled   bool   `yaml:"enabled"`
		Backend   string `yaml:"backend"` // file | mysql | postgres
		Path      string `yaml:"path"`
		QueueSize int    `yaml:"queueSize"`
	} `yaml:"ledger"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Auth struct {
		APIKey string `yaml:"apiKey"`
	} `yaml:"auth"`
}

// Default returns a config with every recognized option set to its default.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Analysis.MaxConcurrentAgents = 6
	c.Analysis.TimeoutMs = 180000
	c.Analysis.RetryAttempts = 2
	c.Analysis.RetryBackoffMs = 200
	c.Analysis.ConfidenceThreshold = 0.7
	c.Analysis.HighRiskThreshold = 80
	c.Analysis.MediumRiskThreshold = 50
	c.Analysis.DefaultAgents = []string{"security", "gas", "quality"}
	c.Cache.TTLSeconds = 3600
	c.Cache.MaxEntries = 512
	c.Ledger.Enabled = true
	c.Ledger.Backend = "file"
	c.Ledger.Path = "./data/audit.log"
	c.Ledger.QueueSize = 256
	c.Database.SSLMode = "disable"
	return &c
}

// Load reads the yaml config file, applies defaults for anything unset,
// then environment overrides for secrets.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("NOVAGUARD_API_KEY"); v != "" {
		c.Auth.APIKey = v
	}
	if v := os.Getenv("LEDGER_PATH"); v != "" {
		c.Ledger.Path = v
	}
}

func (c *Config) validate() error {
	switch c.Ledger.Backend {
	case "file", "mysql", "postgres":
	default:
		return fmt.Errorf("unknown ledger backend: %q", c.Ledger.Backend)
	}
	if c.Analysis.MaxConcurrentAgents <= 0 {
		return fmt.Errorf("maxConcurrentAgents must be positive")
	}
	if c.Analysis.ConfidenceThreshold < 0 || c.Analysis.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidenceThreshold must be within [0,1]")
	}
	if c.Analysis.MediumRiskThreshold > c.Analysis.HighRiskThreshold {
		return fmt.Errorf("mediumRiskThreshold must not exceed highRiskThreshold")
	}
	return nil
}

// MySQLDSN builds the DSN for the mysql ledger backend.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the DSN for the postgres ledger backend.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
