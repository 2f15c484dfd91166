// Package config provides configuration loading and structs for the resumatch server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/resumatch/internal/textnorm"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RESUMATCH_"

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Normalizer textnorm.Options `yaml:"normalizer"`
	Extract    ExtractConfig    `yaml:"extract"`
	Intake     IntakeConfig     `yaml:"intake"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port" validate:"min=1,max=65535"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" validate:"gt=0"`
}

// StorageConfig selects the record store and holds data paths.
type StorageConfig struct {
	Driver         string `yaml:"driver" validate:"oneof=sqlite postgres json"`
	DatabasePath   string `yaml:"database_path"`
	DSN            string `yaml:"dsn"`
	JSONPath       string `yaml:"json_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	UploadDir      string `yaml:"upload_dir"`
}

// EmbeddingConfig holds embedder selection and ONNX settings.
type EmbeddingConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=auto onnx hash none"`
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`
	Dimensions  int    `yaml:"dimensions" validate:"gt=0"`
	MaxTokens   int    `yaml:"max_tokens" validate:"gt=0"`
	CacheSize   int    `yaml:"cache_size" validate:"gte=0"`
	Lazy        bool   `yaml:"lazy"`
}

// EvaluationConfig holds the verdict thresholds. Each is the inclusive lower
// bound of its tier.
type EvaluationConfig struct {
	HighThreshold   int `yaml:"high_threshold" validate:"min=1,max=100"`
	MediumThreshold int `yaml:"medium_threshold" validate:"min=1,ltfield=HighThreshold"`
}

// ExtractConfig lists the accepted upload types.
type ExtractConfig struct {
	AllowedExtensions []string `yaml:"allowed_extensions" validate:"min=1,dive,required"`
}

// IntakeConfig lists directories watched for dropped-in resumes and JDs.
type IntakeConfig struct {
	Directories []string      `yaml:"directories"`
	Debounce    time.Duration `yaml:"debounce"`
}

// Enabled reports whether any intake directory is configured.
func (c IntakeConfig) Enabled() bool {
	return len(c.Directories) > 0
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads and parses the config file at path, applies defaults, expands
// paths and applies environment overrides. A .env file next to the config is
// loaded first; variables already set in the environment win.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := loadDotEnv(configDir); err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.JSONPath = expandPath(cfg.Storage.JSONPath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Embedding.LibraryPath != "" {
		cfg.Embedding.LibraryPath = expandPath(cfg.Embedding.LibraryPath, configDir)
	}
	for i := range cfg.Intake.Directories {
		cfg.Intake.Directories[i] = expandPath(cfg.Intake.Directories[i], configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with RESUMATCH_* variables found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get("HOST"); ok {
		cfg.Server.Host = v
	}
	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPORT %q", EnvPrefix, v)
		}
		cfg.Server.Port = port
	}
	if v, ok := get("STORAGE_DRIVER"); ok {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := get("DATABASE_DSN"); ok {
		cfg.Storage.DSN = v
	}
	if v, ok := get("EMBEDDING_BACKEND"); ok {
		cfg.Embedding.Backend = strings.ToLower(v)
	}
	if v, ok := get("MODEL_PATH"); ok {
		cfg.Embedding.ModelPath = v
	}
	if v, ok := get("DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDEBUG %q", EnvPrefix, v)
		}
		cfg.Debug = debug
	}
	return nil
}

// Validate checks field ranges and the storage driver requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return errors.New("invalid config: storage.dsn is required for the postgres driver")
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
