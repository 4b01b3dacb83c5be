package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(t *testing.T, yml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yml != "" {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(yml)); err != nil {
			t.Fatal(err)
		}
	}
	return v
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	v := newViper(t, `
ai:
  language: en
  max_tokens: 200
speech:
  engine: piper
  speed: 1.5
archive:
  directory: /tmp/narrations
`)

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AI.Language != "en" || cfg.AI.MaxTokens != 200 || cfg.AI.Provider != "openai" {
		t.Errorf("Unexpected AI config %+v", cfg.AI)
	}
	if cfg.AI.APIKey != "sk-test" {
		t.Errorf("Expected key from OPENAI_API_KEY, got %q", cfg.AI.APIKey)
	}
	if cfg.Speech.Engine != "piper" || cfg.Speech.Speed != 1.5 || !cfg.Speech.Enabled {
		t.Errorf("Unexpected speech config %+v", cfg.Speech)
	}
	if cfg.Archive.Directory != "/tmp/narrations" {
		t.Errorf("Unexpected archive directory %q", cfg.Archive.Directory)
	}
	if cfg.DoubleTapWindow() != 300*time.Millisecond || cfg.SpeechTimeout() != 30*time.Second {
		t.Error("Expected default durations")
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("HANDGUIDE_SPEECH_ENGINE", "mock")
	t.Setenv("GEMINI_API_KEY", "g-key")

	v := newViper(t, "ai:\n  provider: gemini\n")
	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Speech.Engine != "mock" {
		t.Errorf("Expected engine from environment, got %q", cfg.Speech.Engine)
	}
	if cfg.AI.APIKey != "g-key" {
		t.Errorf("Expected key from GEMINI_API_KEY, got %q", cfg.AI.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"provider", func(c *Config) { c.AI.Provider = "palm" }, "Provider"},
		{"language", func(c *Config) { c.AI.Language = "" }, "Language"},
		{"speed", func(c *Config) { c.Speech.Speed = 3 }, "Speed"},
		{"engine", func(c *Config) { c.Speech.Engine = "espeak" }, "Engine"},
		{"postgres without dsn", func(c *Config) { c.Archive.Backend = "postgres" }, "DSN"},
		{"bucket without name", func(c *Config) { c.Share.Backend = "bucket"; c.Share.Endpoint = "s3:9000" }, "Bucket"},
		{"double tap", func(c *Config) { c.Narration.DoubleTapMillis = 5 }, "DoubleTapMillis"},
		{"base url", func(c *Config) { c.AI.BaseURL = "not a url" }, "BaseURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Expected error naming %s, got %v", tt.field, err)
			}
		})
	}
}

func TestSaveOmitsSecrets(t *testing.T) {
	cfg := Default()
	cfg.AI.APIKey = "sk-secret"
	cfg.Share.SecretKey = "s3-secret"

	path := filepath.Join(t.TempDir(), "nested", "handguide.yml")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("Expected secrets left out, got:\n%s", data)
	}
	if cfg.AI.APIKey != "sk-secret" {
		t.Error("Expected Save to leave the config untouched")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	if v.GetString("speech.engine") != "gtts" {
		t.Errorf("Expected saved file readable, got engine %q", v.GetString("speech.engine"))
	}
}

func TestExample(t *testing.T) {
	example := Example()
	if !strings.HasPrefix(example, "# handguide configuration") {
		t.Error("Expected a header comment")
	}
	for _, key := range []string{"provider: openai", "engine: gtts", "double_tap_ms: 300"} {
		if !strings.Contains(example, key) {
			t.Errorf("Expected %q in example", key)
		}
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	os.WriteFile(envFile, []byte("HANDGUIDE_TEST_KEY=from-file\n"), 0o600)
	t.Cleanup(func() { os.Unsetenv("HANDGUIDE_TEST_KEY") })

	if err := LoadEnv(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("HANDGUIDE_TEST_KEY"); got != "from-file" {
		t.Errorf("Expected variable from .env, got %q", got)
	}
}
