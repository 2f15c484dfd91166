package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/resumatch/internal/config"
	"github.com/hyperjump/resumatch/internal/storage"
)

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 9090
storage:
  driver: json
  json_path: "./db.json"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(oldWd) }()

	cfg, loadedPath, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("loadConfig(default) = %v", err)
	}
	if !cfg.Debug || cfg.Server.Port != 9090 {
		t.Errorf("cwd config not used: debug=%v port=%d", cfg.Debug, cfg.Server.Port)
	}
	wantPath, _ := filepath.EvalSymlinks(configPath)
	gotPath, _ := filepath.EvalSymlinks(loadedPath)
	if gotPath != wantPath {
		t.Errorf("loadConfig path = %q, want %q", loadedPath, configPath)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 7070\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, loadedPath, err := loadConfig(configPath)
	if err != nil {
		t.Fatalf("loadConfig = %v", err)
	}
	if loadedPath != configPath {
		t.Errorf("loadConfig path = %q, want %q", loadedPath, configPath)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
}

func TestRun_versionHelpUnknown(t *testing.T) {
	var buf bytes.Buffer
	if err := run("version", nil, &buf); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(buf.String(), "resumatch version") {
		t.Errorf("version output = %q", buf.String())
	}

	buf.Reset()
	if err := run("help", nil, &buf); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(buf.String(), "resumatch evaluate") {
		t.Errorf("help output missing commands:\n%s", buf.String())
	}

	buf.Reset()
	if err := run("frobnicate", nil, &buf); !errors.Is(err, errUsage) {
		t.Errorf("unknown command err = %v, want errUsage", err)
	}
	if !strings.Contains(buf.String(), "Unknown command: frobnicate") {
		t.Errorf("unknown output = %q", buf.String())
	}
}

func TestRun_usageErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  string
		args []string
	}{
		{"evaluate needs two files", "evaluate", []string{"only-one.txt"}},
		{"ingest needs an owner", "ingest", []string{"cv.txt"}},
		{"ingest rejects both owners", "ingest", []string{"--user", "1", "--admin", "1", "cv.txt"}},
		{"ingest needs files", "ingest", []string{"--user", "1"}},
		{"compare needs ids", "compare", []string{"--user", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := run(tt.cmd, tt.args, &buf)
			if !errors.Is(err, errUsage) {
				t.Errorf("run(%s %v) err = %v, want errUsage", tt.cmd, tt.args, err)
			}
		})
	}
}

func TestDataPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = storage.DriverJSON
	paths := dataPaths(cfg)
	if paths["database"] != cfg.Storage.JSONPath {
		t.Errorf("json database path = %q, want %q", paths["database"], cfg.Storage.JSONPath)
	}
	if paths["uploads"] != cfg.Storage.UploadDir || paths["keyword_index"] != cfg.Storage.BleveIndexPath {
		t.Errorf("paths = %v", paths)
	}

	cfg.Storage.Driver = storage.DriverPostgres
	if _, ok := dataPaths(cfg)["database"]; ok {
		t.Error("postgres should not report a database path")
	}
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")
	var buf bytes.Buffer
	if err := run("init", []string{"--config", path}, &buf); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(init output): %v", err)
	}
	if cfg.Storage.Driver != storage.DriverSQLite {
		t.Errorf("driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if err := run("init", []string{"--config", path}, &buf); err == nil {
		t.Error("init over an existing config should fail without --force")
	}
	if err := run("init", []string{"--config", path, "--force"}, &buf); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

// writeTestConfig writes a config using the JSON store and no semantic model,
// with every data path inside dir.
func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	content := `
storage:
  driver: json
  json_path: ./data/db.json
  bleve_index_path: ./data/bleve
  upload_dir: ./data/uploads
embedding:
  backend: none
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunEvaluate(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	resume := writeFile(t, dir, "cv.txt", "Python Flask developer with SQL experience")
	jd := writeFile(t, dir, "jd.txt", "Looking for a Python Django developer who knows SQL")

	var buf bytes.Buffer
	if err := run("evaluate", []string{"--config", cfgPath, "--output", "json", resume, jd}, &buf); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var res struct {
		Score         int      `json:"score"`
		Verdict       string   `json:"verdict"`
		MissingSkills []string `json:"missing_skills"`
	}
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("evaluate output is not JSON: %v\n%s", err, buf.String())
	}
	if res.Score < 0 || res.Score > 100 || res.Verdict == "" {
		t.Errorf("result = %+v", res)
	}

	exe := writeFile(t, dir, "cv.exe", "binary")
	if err := run("evaluate", []string{"--config", cfgPath, exe, jd}, &buf); err == nil {
		t.Error("evaluate should reject unsupported file types")
	}
}

func TestIngestCompareReportStatus(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	resume := writeFile(t, dir, "cv.txt", "Python Flask developer with SQL experience")
	jd := writeFile(t, dir, "backend.txt", "Looking for a Python Django developer who knows SQL")

	var buf bytes.Buffer
	if err := run("ingest", []string{"--config", cfgPath, "--user", "1", resume}, &buf); err != nil {
		t.Fatalf("ingest resume: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "resume 1:") {
		t.Errorf("ingest output = %q", buf.String())
	}
	buf.Reset()
	if err := run("ingest", []string{"--config", cfgPath, "--admin", "1", jd}, &buf); err != nil {
		t.Fatalf("ingest jd: %v\n%s", err, buf.String())
	}
	if !strings.Contains(buf.String(), "job description 1: backend.txt") {
		t.Errorf("ingest output = %q", buf.String())
	}

	buf.Reset()
	missing := filepath.Join(dir, "missing.txt")
	if err := run("ingest", []string{"--config", cfgPath, "--user", "1", missing}, &buf); err == nil {
		t.Error("ingest of a missing file should fail")
	}

	buf.Reset()
	if err := run("compare", []string{"--config", cfgPath, "--user", "1", "--jd", "1", "--output", "json"}, &buf); err != nil {
		t.Fatalf("compare: %v", err)
	}
	var evs []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &evs); err != nil {
		t.Fatalf("compare output is not JSON: %v\n%s", err, buf.String())
	}
	if len(evs) != 1 {
		t.Fatalf("compare returned %d evaluations, want 1", len(evs))
	}

	// the pair is already evaluated, so a second run adds nothing
	buf.Reset()
	if err := run("compare", []string{"--config", cfgPath, "--user", "1", "--jd", "1"}, &buf); err != nil {
		t.Fatalf("compare again: %v", err)
	}
	if !strings.Contains(buf.String(), "No new evaluations") {
		t.Errorf("second compare output = %q", buf.String())
	}

	out := filepath.Join(dir, "report.xlsx")
	buf.Reset()
	if err := run("report", []string{"--config", cfgPath, "--admin", "1", "--out", out}, &buf); err != nil {
		t.Fatalf("report: %v", err)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Errorf("report file not written: %v", err)
	}

	buf.Reset()
	if err := run("status", []string{"--config", cfgPath, "--output", "json"}, &buf); err != nil {
		t.Fatalf("status: %v", err)
	}
	var st struct {
		Resumes          int64  `json:"resumes"`
		JDs              int64  `json:"jds"`
		Evaluations      int64  `json:"evaluations"`
		EmbeddingBackend string `json:"embedding_backend"`
		StorageDriver    string `json:"storage_driver"`
		DiskUsageBytes   int64  `json:"disk_usage_bytes"`
	}
	if err := json.Unmarshal(buf.Bytes(), &st); err != nil {
		t.Fatalf("status output is not JSON: %v\n%s", err, buf.String())
	}
	if st.Resumes != 1 || st.JDs != 1 || st.Evaluations != 1 {
		t.Errorf("counts = %+v", st)
	}
	if st.EmbeddingBackend != "none" || st.StorageDriver != "json" || st.DiskUsageBytes == 0 {
		t.Errorf("status = %+v", st)
	}
}
