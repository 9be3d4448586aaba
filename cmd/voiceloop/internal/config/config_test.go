package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
	if !cfg.STT.Mock || cfg.Respond.Backend != BackendStub {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
stt:
  mock: true
respond:
  backend: pipeline
  pipeline_url: https://example.com/pipeline
  api_key: k
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.Respond.Backend != BackendPipeline {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Respond.RulesFile != filepath.Join(filepath.Dir(path), "rules.json") {
		t.Fatalf("rules file = %q", cfg.Respond.RulesFile)
	}
}

func TestEnvOverridesKey(t *testing.T) {
	t.Setenv("VOICELOOP_STT_API_KEY", "from-env")
	path := writeConfig(t, `
stt:
  mock: false
  base_url: https://stt.example.com
  api_key: from-file
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.STT.APIKey != "from-env" {
		t.Fatalf("api key = %q", cfg.STT.APIKey)
	}
}

func TestValidateRejectsMissingSTTKey(t *testing.T) {
	path := writeConfig(t, `
stt:
  mock: false
  base_url: https://stt.example.com
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
respond:
  backend: frobnicate
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown respond backend") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateRejectsS3WithoutBucket(t *testing.T) {
	path := writeConfig(t, `
archive:
  backend: s3
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRedactedMasksKeys(t *testing.T) {
	path := writeConfig(t, `
respond:
  backend: pipeline
  pipeline_url: https://example.com/p
  api_key: super-secret-key-value
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	out := cfg.Redacted()
	if strings.Contains(out, "super-secret-key-value") {
		t.Fatalf("key leaked:\n%s", out)
	}
	if !strings.Contains(out, "supe") {
		t.Fatalf("mask dropped prefix:\n%s", out)
	}
}
