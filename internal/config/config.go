// Package config holds the typed handguide configuration loaded through
// viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AppName names the config file, the env prefix and the app directories.
const AppName = "handguide"

// Config is the whole configuration file.
type Config struct {
	AI        AIConfig        `yaml:"ai" mapstructure:"ai"`
	Speech    SpeechConfig    `yaml:"speech" mapstructure:"speech"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Archive   ArchiveConfig   `yaml:"archive" mapstructure:"archive"`
	Share     ShareConfig     `yaml:"share" mapstructure:"share"`
	Narration NarrationConfig `yaml:"narration" mapstructure:"narration"`
}

// AIConfig selects the model that writes the narration.
type AIConfig struct {
	Provider            string `yaml:"provider" mapstructure:"provider" validate:"oneof=openai gemini"`
	Model               string `yaml:"model" mapstructure:"model"`
	APIKey              string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL             string `yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
	Language            string `yaml:"language" mapstructure:"language" validate:"required,bcp47_language_tag"`
	ImageInstruction    string `yaml:"image_instruction,omitempty" mapstructure:"image_instruction"`
	QuestionInstruction string `yaml:"question_instruction,omitempty" mapstructure:"question_instruction"`
	MaxTokens           int    `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=16,lte=8192"`
	RequestsPerMinute   int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute" validate:"gte=1,lte=600"`
}

// SpeechConfig selects the synthesis engine.
type SpeechConfig struct {
	Enabled bool    `yaml:"enabled" mapstructure:"enabled"`
	Engine  string  `yaml:"engine" mapstructure:"engine" validate:"oneof=gtts piper mock"`
	Speed   float64 `yaml:"speed" mapstructure:"speed" validate:"gte=0.5,lte=2"`
	// Piper voice model (.onnx). Searched in the usual places when empty.
	PiperModel string `yaml:"piper_model,omitempty" mapstructure:"piper_model"`
	// Synthesis timeout per sentence in seconds
	TimeoutSeconds int `yaml:"timeout_seconds" mapstructure:"timeout_seconds" validate:"gte=1,lte=300"`
}

// CacheConfig sizes the synthesized audio cache.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	Directory        string `yaml:"directory,omitempty" mapstructure:"directory"`
	MemoryMB         int    `yaml:"memory_mb" mapstructure:"memory_mb" validate:"gte=1,lte=1024"`
	MaxSizeMB        int    `yaml:"max_size_mb" mapstructure:"max_size_mb" validate:"gte=1,lte=10000"`
	ExpirationHours  int    `yaml:"expiration_hours" mapstructure:"expiration_hours" validate:"gte=0"`
	CompressionLevel int    `yaml:"compression_level" mapstructure:"compression_level" validate:"gte=0,lte=4"`
}

// ArchiveConfig chooses where finished narrations are kept.
type ArchiveConfig struct {
	AutoSave  bool   `yaml:"auto_save" mapstructure:"auto_save"`
	Backend   string `yaml:"backend" mapstructure:"backend" validate:"oneof=file postgres"`
	Directory string `yaml:"directory,omitempty" mapstructure:"directory"`
	DSN       string `yaml:"dsn,omitempty" mapstructure:"dsn" validate:"required_if=Backend postgres"`
}

// ShareConfig chooses where shared pages go.
type ShareConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend" validate:"oneof=file bucket"`
	Directory   string `yaml:"directory,omitempty" mapstructure:"directory"`
	Endpoint    string `yaml:"endpoint,omitempty" mapstructure:"endpoint" validate:"required_if=Backend bucket"`
	Bucket      string `yaml:"bucket,omitempty" mapstructure:"bucket" validate:"required_if=Backend bucket"`
	AccessKey   string `yaml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey   string `yaml:"secret_key,omitempty" mapstructure:"secret_key"`
	UseSSL      bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
	ExpiryHours int    `yaml:"expiry_hours" mapstructure:"expiry_hours" validate:"gte=1,lte=168"`
}

// NarrationConfig tunes the playback gesture.
type NarrationConfig struct {
	DoubleTapMillis int `yaml:"double_tap_ms" mapstructure:"double_tap_ms" validate:"gte=100,lte=1000"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Provider:          "openai",
			Language:          "ko",
			MaxTokens:         400,
			RequestsPerMinute: 20,
		},
		Speech: SpeechConfig{
			Enabled:        true,
			Engine:         "gtts",
			Speed:          1.0,
			TimeoutSeconds: 30,
		},
		Cache: CacheConfig{
			Enabled:          true,
			MemoryMB:         32,
			MaxSizeMB:        200,
			ExpirationHours:  24 * 30,
			CompressionLevel: 2,
		},
		Archive: ArchiveConfig{
			AutoSave: true,
			Backend:  "file",
		},
		Share: ShareConfig{
			Backend:     "file",
			UseSSL:      true,
			ExpiryHours: 168,
		},
		Narration: NarrationConfig{
			DoubleTapMillis: 300,
		},
	}
}

// SetDefaults registers every default key with v so that environment
// variables can override keys that no file sets.
func SetDefaults(v *viper.Viper) {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	setDefaults(v, "", tree)
	for _, key := range []string{"ai.api_key", "ai.base_url", "ai.model", "speech.piper_model",
		"cache.directory", "archive.directory", "archive.dsn", "share.directory",
		"share.endpoint", "share.bucket", "share.access_key", "share.secret_key"} {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// Load decodes v into a Config, fills derived values and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolve fills API keys from the provider's usual variables, expands ~ and
// picks default directories.
func (c *Config) resolve() error {
	if c.AI.APIKey == "" {
		switch c.AI.Provider {
		case "gemini":
			c.AI.APIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
		default:
			c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	scope := gap.NewScope(gap.User, AppName)
	var err error
	if c.Cache.Directory, err = dir(c.Cache.Directory, cacheDir(scope)); err != nil {
		return err
	}
	if c.Archive.Directory, err = dir(c.Archive.Directory, dataDir(scope, "archive")); err != nil {
		return err
	}
	if c.Share.Directory, err = dir(c.Share.Directory, dataDir(scope, "shared")); err != nil {
		return err
	}
	if c.Speech.PiperModel != "" {
		if c.Speech.PiperModel, err = homedir.Expand(c.Speech.PiperModel); err != nil {
			return err
		}
	}
	return nil
}

func dir(configured string, fallback func() (string, error)) (string, error) {
	if configured != "" {
		expanded, err := homedir.Expand(configured)
		if err != nil {
			return "", fmt.Errorf("failed to expand %s: %w", configured, err)
		}
		return expanded, nil
	}
	d, err := fallback()
	if err != nil {
		log.Debug("No default directory", "error", err)
		return "", nil
	}
	return d, nil
}

func cacheDir(scope *gap.Scope) func() (string, error) {
	return func() (string, error) {
		d, err := scope.CacheDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(d, "audio"), nil
	}
}

func dataDir(scope *gap.Scope, name string) func() (string, error) {
	return func() (string, error) {
		dirs, err := scope.DataDirs()
		if err != nil {
			return "", err
		}
		if len(dirs) == 0 {
			return "", errors.New("no data directory")
		}
		return filepath.Join(dirs[0], name), nil
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// SpeechTimeout returns the synthesis timeout.
func (c *Config) SpeechTimeout() time.Duration {
	return time.Duration(c.Speech.TimeoutSeconds) * time.Second
}

// DoubleTapWindow returns the double tap window.
func (c *Config) DoubleTapWindow() time.Duration {
	return time.Duration(c.Narration.DoubleTapMillis) * time.Millisecond
}

// Save writes c as YAML. Secrets are not written.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	out := *c
	out.AI.APIKey = ""
	out.Share.SecretKey = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	log.Debug("Saved configuration", "path", path)
	return nil
}

// Example returns a commented default configuration file.
func Example() string {
	data, _ := yaml.Marshal(Default())
	header := `# handguide configuration
#
# API keys are read from OPENAI_API_KEY or GEMINI_API_KEY, from a .env file
# in the working directory, or from ai.api_key below.
#
# ai.image_instruction and ai.question_instruction replace the built-in
# prompts; {language} is replaced with the narration language.
# Set archive.backend to "postgres" and archive.dsn to keep narrations in a
# database, or share.backend to "bucket" to upload shared pages to S3/MinIO.

`
	return header + string(data)
}

// LoadEnv loads .env files into the environment. Missing files are
// ignored and variables that are already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		path, err := homedir.Expand(f)
		if err != nil {
			return err
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
		log.Debug("Loaded environment file", "path", path)
	}
	return nil
}
