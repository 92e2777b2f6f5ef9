package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Anthropic.Model == "" {
		t.Error("default model should be set")
	}
	if cfg.Run.MaxToolRounds != 10 {
		t.Errorf("max_tool_rounds = %d, want 10", cfg.Run.MaxToolRounds)
	}
	if cfg.Workspace.CommandTimeout != 2*time.Minute {
		t.Errorf("command_timeout = %v, want 2m", cfg.Workspace.CommandTimeout)
	}
	if cfg.Planner.Mode != "classify" {
		t.Errorf("planner mode = %q, want classify", cfg.Planner.Mode)
	}
}

func TestLoadFromPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
anthropic:
  api_key: sk-ant-test
  model: claude-test
  use_bedrock: true
  aws_region: us-west-2
run:
  max_tool_rounds: 5
  debug_log: true
workspace:
  auto_approve: true
  command_timeout: 30s
planner:
  mode: decompose
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.Model != "claude-test" {
		t.Errorf("model = %q", cfg.Anthropic.Model)
	}
	if !cfg.Anthropic.UseBedrock {
		t.Error("use_bedrock should be true")
	}
	if cfg.Run.MaxToolRounds != 5 {
		t.Errorf("max_tool_rounds = %d", cfg.Run.MaxToolRounds)
	}
	if cfg.Workspace.CommandTimeout != 30*time.Second {
		t.Errorf("command_timeout = %v", cfg.Workspace.CommandTimeout)
	}
	if cfg.Planner.Mode != "decompose" {
		t.Errorf("planner mode = %q", cfg.Planner.Mode)
	}
	// Values absent from the file keep their defaults.
	if cfg.Workspace.MaxOutputBytes != 30000 {
		t.Errorf("max_output_bytes = %d, want default 30000", cfg.Workspace.MaxOutputBytes)
	}
}

func TestLoadFromPathExpandsEnvInAPIKey(t *testing.T) {
	t.Setenv("LOOM_TEST_KEY", "sk-ant-from-env")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("anthropic:\n  api_key: ${LOOM_TEST_KEY}\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("api_key = %q", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file should error")
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("written default should round-trip: %v", err)
	}
	if cfg.Run.MaxToolRounds != 10 {
		t.Errorf("max_tool_rounds = %d", cfg.Run.MaxToolRounds)
	}

	// Never clobber an existing config.
	if err := WriteDefault(path); err == nil {
		t.Fatal("WriteDefault should refuse to overwrite")
	}
}

func TestGetAPIKeyPrecedence(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env-wins")

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-from-config"

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-env-wins" {
		t.Errorf("key = %q, env should win", key)
	}
}

func TestGetAPIKeyFromConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-from-config"

	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-from-config" {
		t.Errorf("key = %q", key)
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if _, err := GetAPIKey(Default()); err != ErrNoAPIKey {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestValidateAPIKey(t *testing.T) {
	cases := []struct {
		key     string
		wantErr bool
	}{
		{"", true},
		{"not-a-key", true},
		{"sk-ant-short", true},
		{"sk-ant-REDACTED", false},
	}
	for _, tc := range cases {
		err := ValidateAPIKey(tc.key)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateAPIKey(%q) = %v, wantErr %v", tc.key, err, tc.wantErr)
		}
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("empty key mask = %q", got)
	}
	if got := MaskAPIKey("sk-ant-short"); got != "****" {
		t.Errorf("short key mask = %q", got)
	}
	masked := MaskAPIKey("sk-ant-REDACTED")
	if !strings.HasPrefix(masked, "sk-ant-") || !strings.HasSuffix(masked, "mnop") {
		t.Errorf("mask = %q", masked)
	}
	if strings.Contains(masked, "abcdefghijkl") {
		t.Errorf("mask leaks key body: %q", masked)
	}
}
