package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML file. They are read after an
// optional .env file next to the working directory has been loaded.
const (
	EnvAPIURL      = "CONTRACTCHAT_API_URL"
	EnvEnvironment = "CONTRACTCHAT_ENV"
	EnvPort        = "CONTRACTCHAT_PORT"
)

const (
	DefaultBaseURL       = "https://pdfcontractanalyzer.com/api"
	DefaultTokenFile     = ".contractchat/storage.json"
	DefaultDirectoryName = "uploaded-folder"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Storage StorageConfig `yaml:"storage"`
	Minio   MinioConfig   `yaml:"minio"`
	Log     LogConfig     `yaml:"log"`
	Uploads UploadsConfig `yaml:"uploads"`
	Chat    ChatConfig    `yaml:"chat"`
}

type ServerConfig struct {
	Port      int            `yaml:"port"`
	StaticDir string         `yaml:"static_dir"`
	Throttle  ThrottleConfig `yaml:"throttle"`
}

// ThrottleConfig bounds how often a single route that triggers backend work
// may be called.
type ThrottleConfig struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

type BackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	DevBaseURL     string `yaml:"dev_base_url"`
	Environment    string `yaml:"environment"` // production, development
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StorageConfig locates the flat key-value file that plays the role of
// browser local storage.
type StorageConfig struct {
	File string `yaml:"file"`
}

// MinioConfig is optional. When Endpoint is empty the MinIO file source is
// disabled and only local directories can be picked.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type UploadsConfig struct {
	MaxManifests int `yaml:"max_manifests"`
}

type ChatConfig struct {
	SuggestedQuestions []string `yaml:"suggested_questions"`
}

var defaultQuestions = []string{
	"What is the scope of work in this contract?",
	"What are the payment terms?",
	"What are the key deadlines and milestones?",
	"What insurance and bonding requirements apply?",
	"How are change orders handled?",
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// .env is optional; a missing file is not an error
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv(EnvEnvironment); v != "" {
		c.Backend.Environment = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Throttle.Requests == 0 {
		c.Server.Throttle.Requests = 30
	}
	if c.Server.Throttle.WindowSeconds == 0 {
		c.Server.Throttle.WindowSeconds = 60
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = DefaultBaseURL
	}
	if c.Backend.Environment == "" {
		c.Backend.Environment = "production"
	}
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 60
	}
	if c.Storage.File == "" {
		c.Storage.File = DefaultTokenFile
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Uploads.MaxManifests == 0 {
		c.Uploads.MaxManifests = 20
	}
	if len(c.Chat.SuggestedQuestions) == 0 {
		c.Chat.SuggestedQuestions = append([]string(nil), defaultQuestions...)
	}
}

// APIBaseURL returns the backend base URL for the configured environment,
// without a trailing slash.
func (c *BackendConfig) APIBaseURL() string {
	url := c.BaseURL
	if c.Environment == "development" && c.DevBaseURL != "" {
		url = c.DevBaseURL
	}
	return strings.TrimRight(url, "/")
}

// MinioEnabled reports whether a MinIO endpoint is configured.
func (c *Config) MinioEnabled() bool {
	return c.Minio.Endpoint != "" && c.Minio.Bucket != ""
}
