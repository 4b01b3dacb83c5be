// Package llm streams guide narrations from a language model. A Source turns
// a photo or a question into the fragment stream the narration controller
// consumes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/handguide/narration"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Default models per provider.
const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// Default instructions. {language} is replaced with the English name of the
// configured language.
const (
	DefaultImageInstruction = "You are a friendly travel guide. Look at the photo and " +
		"explain the landmark, artwork or scene it shows to a visitor standing in front " +
		"of it. Use a few short spoken sentences, no lists and no markdown. Answer in {language}."
	DefaultQuestionInstruction = "You are a friendly travel guide. Answer the visitor's " +
		"question in a few short spoken sentences, no lists and no markdown. Answer in {language}."
)

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNoAPIKey        = errors.New("no API key configured")
	ErrNoImage         = errors.New("image source has no data")
	ErrNoPrompt        = errors.New("question is empty")
)

// Config selects and tunes the model behind a Source.
type Config struct {
	Provider            string
	Model               string
	APIKey              string
	BaseURL             string // OpenAI-compatible endpoint, optional
	Language            string // BCP 47 tag, e.g. "ko"
	ImageInstruction    string
	QuestionInstruction string
	MaxTokens           int
	RequestsPerMinute   int
}

// DefaultConfig returns a Korean-speaking OpenAI configuration.
func DefaultConfig() Config {
	return Config{
		Provider:            ProviderOpenAI,
		Language:            "ko",
		ImageInstruction:    DefaultImageInstruction,
		QuestionInstruction: DefaultQuestionInstruction,
		MaxTokens:           400,
		RequestsPerMinute:   20,
	}
}

// request is what a provider needs to open one response stream.
type request struct {
	Instruction string
	Prompt      string
	Image       []byte
	MIME        string
}

// provider opens response streams against one model API.
type provider interface {
	Open(ctx context.Context, req request) (textStream, error)
	Close() error
}

// textStream yields response text. Recv returns io.EOF at the end.
type textStream interface {
	Recv() (string, error)
	Close() error
}

// Source implements narration.FragmentSource.
type Source struct {
	provider provider
	config   Config
	limiter  *rate.Limiter
}

// New creates a source for the configured provider.
func New(ctx context.Context, cfg Config) (*Source, error) {
	cfg = withDefaults(cfg)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, ErrNoAPIKey)
	}

	var (
		p   provider
		err error
	)
	switch cfg.Provider {
	case ProviderOpenAI:
		p = newOpenAI(cfg)
	case ProviderGemini:
		p, err = newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}
	return newSource(p, cfg), nil
}

func newSource(p provider, cfg Config) *Source {
	cfg = withDefaults(cfg)
	return &Source{
		provider: p,
		config:   cfg,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Provider == "" {
		cfg.Provider = def.Provider
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
		if cfg.Provider == ProviderGemini {
			cfg.Model = DefaultGeminiModel
		}
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.ImageInstruction == "" {
		cfg.ImageInstruction = def.ImageInstruction
	}
	if cfg.QuestionInstruction == "" {
		cfg.QuestionInstruction = def.QuestionInstruction
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	return cfg
}

// Config returns the effective configuration.
func (s *Source) Config() Config {
	return s.config
}

// Stream opens a response for src. A failure to open is returned directly.
// A failure after the first fragment arrives as a final fragment carrying
// the error.
func (s *Source) Stream(ctx context.Context, src narration.Source) (<-chan narration.Fragment, error) {
	req, err := s.request(src)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	stream, err := s.provider.Open(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s stream: %w", s.config.Provider, err)
	}
	log.Debug("LLM: stream opened", "provider", s.config.Provider, "model", s.config.Model, "source", src.Kind)

	out := make(chan narration.Fragment)
	go func() {
		defer close(out)
		defer stream.Close()

		send := func(f narration.Fragment) bool {
			select {
			case out <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			text, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Debug("LLM: stream failed", "provider", s.config.Provider, "error", err)
				send(narration.Fragment{Err: fmt.Errorf("%s stream: %w", s.config.Provider, err)})
				return
			}
			if text == "" {
				continue
			}
			if !send(narration.Fragment{Text: text}) {
				return
			}
		}
	}()
	return out, nil
}

// Close releases the provider client.
func (s *Source) Close() error {
	return s.provider.Close()
}

func (s *Source) request(src narration.Source) (request, error) {
	switch src.Kind {
	case narration.SourceImage:
		if len(src.Image) == 0 {
			return request{}, ErrNoImage
		}
		mime := src.MIME
		if mime == "" {
			mime = mimetype.Detect(src.Image).String()
		}
		return request{
			Instruction: s.instruction(s.config.ImageInstruction),
			Image:       src.Image,
			MIME:        mime,
		}, nil
	case narration.SourcePrompt:
		prompt := strings.TrimSpace(src.Prompt)
		if prompt == "" {
			return request{}, ErrNoPrompt
		}
		return request{
			Instruction: s.instruction(s.config.QuestionInstruction),
			Prompt:      prompt,
		}, nil
	default:
		return request{}, fmt.Errorf("unsupported source kind %s", src.Kind)
	}
}

func (s *Source) instruction(template string) string {
	return strings.ReplaceAll(template, "{language}", LanguageName(s.config.Language))
}

// LanguageName returns the English name of a BCP 47 tag, or the tag itself
// when it cannot be parsed.
func LanguageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Languages().Name(t); name != "" {
		return name
	}
	return tag
}
