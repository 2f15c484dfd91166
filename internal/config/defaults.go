package config

import (
	"github.com/hyperjump/resumatch/internal/documents"
	"github.com/hyperjump/resumatch/internal/embedding"
	"github.com/hyperjump/resumatch/internal/extract"
	"github.com/hyperjump/resumatch/internal/scoring"
	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/internal/watcher"
)

const dataDir = "/usr/local/var/resumatch/data"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = documents.DefaultMaxUploadBytes
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = storage.DriverSQLite
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = dataDir + "/db/resumatch.db"
	}
	if cfg.Storage.JSONPath == "" {
		cfg.Storage.JSONPath = dataDir + "/db/resumatch.json"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = dataDir + "/indices/bleve"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = dataDir + "/uploads"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = embedding.BackendAuto
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = dataDir + "/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = embedding.DefaultDimensions
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Evaluation.HighThreshold == 0 {
		cfg.Evaluation.HighThreshold = scoring.DefaultHighThreshold
	}
	if cfg.Evaluation.MediumThreshold == 0 {
		cfg.Evaluation.MediumThreshold = scoring.DefaultMediumThreshold
	}
	if len(cfg.Extract.AllowedExtensions) == 0 {
		cfg.Extract.AllowedExtensions = append([]string(nil), extract.DefaultExtensions...)
	}
	if cfg.Intake.Debounce == 0 {
		cfg.Intake.Debounce = watcher.DefaultDebounce
	}
}

// Default returns a config with every default applied, as written by "resumatch init".
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
