package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"HOST", "PORT", "STORAGE_DRIVER", "DATABASE_DSN", "EMBEDDING_BACKEND", "MODEL_PATH", "DEBUG"} {
		t.Setenv(EnvPrefix+k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	_, path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  driver: json
  json_path: "/tmp/resumatch.json"
evaluation:
  high_threshold: 80
normalizer:
  remove_stopwords: true
  ngram: 2
intake:
  debounce: 1s
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %s", cfg.Server.Addr())
	}
	if cfg.Storage.Driver != "json" || cfg.Storage.JSONPath != "/tmp/resumatch.json" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Evaluation.HighThreshold != 80 || cfg.Evaluation.MediumThreshold != 50 {
		t.Errorf("thresholds = %+v", cfg.Evaluation)
	}
	if !cfg.Normalizer.RemoveStopwords || cfg.Normalizer.NGram != 2 {
		t.Errorf("normalizer = %+v", cfg.Normalizer)
	}
	if cfg.Intake.Debounce != time.Second {
		t.Errorf("debounce = %v", cfg.Intake.Debounce)
	}
	if cfg.Intake.Enabled() {
		t.Error("intake should be disabled without directories")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	clearEnv(t)
	dir, path := writeConfig(t, `
storage:
  database_path: "./data/db/resumatch.db"
  upload_dir: "./data/uploads"
intake:
  directories: ["./inbox"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "db", "resumatch.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "data", "uploads"); cfg.Storage.UploadDir != want {
		t.Errorf("upload_dir = %s, want %s", cfg.Storage.UploadDir, want)
	}
	if len(cfg.Intake.Directories) != 1 || cfg.Intake.Directories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("intake directories = %v", cfg.Intake.Directories)
	}
	if !cfg.Intake.Enabled() {
		t.Error("intake should be enabled")
	}
}

func TestLoad_envOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESUMATCH_PORT", "9191")
	t.Setenv("RESUMATCH_EMBEDDING_BACKEND", "NONE")
	t.Setenv("RESUMATCH_DEBUG", "true")
	_, path := writeConfig(t, "server:\n  port: 8000\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want env override 9191", cfg.Server.Port)
	}
	if cfg.Embedding.Backend != "none" {
		t.Errorf("backend = %s", cfg.Embedding.Backend)
	}
	if !cfg.Debug {
		t.Error("debug should be set from env")
	}
}

func TestLoad_dotEnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(EnvPrefix + "STORAGE_DRIVER")
	os.Unsetenv(EnvPrefix + "DATABASE_DSN")
	dir, path := writeConfig(t, "server:\n  port: 8000\n")
	env := "RESUMATCH_STORAGE_DRIVER=postgres\nRESUMATCH_DATABASE_DSN=postgres://localhost/resumatch?sslmode=disable\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv(EnvPrefix + "STORAGE_DRIVER")
		os.Unsetenv(EnvPrefix + "DATABASE_DSN")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Driver != "postgres" || !strings.HasPrefix(cfg.Storage.DSN, "postgres://") {
		t.Errorf("storage = %+v", cfg.Storage)
	}
}

func TestLoad_invalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"driver", "storage:\n  driver: mongo\n", "Storage.Driver"},
		{"backend", "embedding:\n  backend: gpu\n", "Embedding.Backend"},
		{"thresholds", "evaluation:\n  high_threshold: 40\n  medium_threshold: 60\n", "Evaluation.MediumThreshold"},
		{"postgres without dsn", "storage:\n  driver: postgres\n", "storage.dsn"},
		{"yaml", "server: [", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestApplyEnv_invalidPort(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "RESUMATCH_PORT" {
			return "eighty", true
		}
		return "", false
	}
	if err := ApplyEnv(&Config{}, lookup); err == nil {
		t.Error("expected error for non-numeric port")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Server.MaxUploadBytes != 8<<20 {
		t.Errorf("default max upload: got %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("default driver: got %s", cfg.Storage.Driver)
	}
	if cfg.Embedding.Backend != "auto" || cfg.Embedding.Dimensions != 384 || cfg.Embedding.MaxTokens != 256 {
		t.Errorf("default embedding: %+v", cfg.Embedding)
	}
	if cfg.Evaluation.HighThreshold != 75 || cfg.Evaluation.MediumThreshold != 50 {
		t.Errorf("default thresholds: %+v", cfg.Evaluation)
	}
	if strings.Join(cfg.Extract.AllowedExtensions, ",") != "pdf,docx,txt" {
		t.Errorf("default extensions: %v", cfg.Extract.AllowedExtensions)
	}
	if cfg.Intake.Debounce != 400*time.Millisecond {
		t.Errorf("default debounce: %v", cfg.Intake.Debounce)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSave(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "etc", "saved.yaml")
	cfg := Default()
	cfg.Server.Port = 9090
	cfg.Intake.Debounce = 2 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Intake.Debounce != 2*time.Second {
		t.Errorf("loaded debounce: got %v", loaded.Intake.Debounce)
	}
}
