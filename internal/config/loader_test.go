package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nollama_host: http://gpu:11434\nmodel: m1\nmax_sessions: 4\ncors_origins: [\"http://a\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.OllamaHost != "http://gpu:11434" || cfg.Model != "m1" || cfg.MaxSessions != 4 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://a" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
	// unspecified keys keep defaults
	if cfg.ReadTimeoutSec != 30 || cfg.HistoryLimit != 50 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","db_path":"/data/gen.db","read_timeout_sec":60}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.DBPath != "/data/gen.db" || cfg.ReadTimeoutSec != 60 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nfrontend_dir=\"/srv/frontend\"\nlog_pretty=true\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.FrontendDir != "/srv/frontend" || !cfg.LogPretty {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OLLAMA_HOST":          "http://remote:11434",
		"MODEL_NAME":           "codellama:7b",
		"CODEGEN_ADDR":         ":9000",
		"CODEGEN_DB_PATH":      "/tmp/x.db",
		"CODEGEN_FRONTEND_DIR": "./frontend",
		"CODEGEN_LOG_LEVEL":    "debug",
		"CODEGEN_MAX_SESSIONS": "3",
	}
	cfg := Defaults()
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.OllamaHost != "http://remote:11434" || cfg.Model != "codellama:7b" || cfg.Addr != ":9000" ||
		cfg.DBPath != "/tmp/x.db" || cfg.FrontendDir != "./frontend" || cfg.LogLevel != "debug" || cfg.MaxSessions != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}

	env = map[string]string{"CODEGEN_MAX_SESSIONS": "many"}
	if err := ApplyEnv(&cfg, func(k string) string { return env[k] }); err == nil {
		t.Fatalf("expected error for non-numeric max sessions")
	}
}

func TestLoadDotEnv(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, ".env", "CODEGEN_TEST_DOTENV=from-file\n")
	t.Setenv("CODEGEN_TEST_DOTENV", "")
	os.Unsetenv("CODEGEN_TEST_DOTENV")
	if err := LoadDotEnv(filepath.Join(d, "missing.env"), p); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("CODEGEN_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("got %q", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg := Defaults()
	cfg.OllamaHost = "localhost:11434"
	cfg.MaxSessions = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}
