package llm

import (
	"context"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type geminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func newGemini(ctx context.Context, cfg Config) (*geminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}
	return &geminiProvider{client: client, model: cfg.Model, maxTokens: cfg.MaxTokens}, nil
}

func (p *geminiProvider) Open(ctx context.Context, req request) (textStream, error) {
	model := p.client.GenerativeModel(p.model)
	model.SetMaxOutputTokens(int32(p.maxTokens))
	model.SystemInstruction = genai.NewUserContent(genai.Text(req.Instruction))

	return &geminiStream{iter: model.GenerateContentStream(ctx, geminiParts(req)...)}, nil
}

func (p *geminiProvider) Close() error {
	return p.client.Close()
}

func geminiParts(req request) []genai.Part {
	var parts []genai.Part
	if len(req.Image) > 0 {
		parts = append(parts, genai.ImageData(imageFormat(req.MIME), req.Image))
	}
	if req.Prompt != "" {
		parts = append(parts, genai.Text(req.Prompt))
	}
	return parts
}

// imageFormat turns "image/jpeg" into "jpeg".
func imageFormat(mime string) string {
	format := strings.TrimPrefix(mime, "image/")
	if i := strings.IndexByte(format, ';'); i >= 0 {
		format = format[:i]
	}
	if format == "" {
		return "jpeg"
	}
	return format
}

type geminiStream struct {
	iter *genai.GenerateContentResponseIterator
}

func (s *geminiStream) Recv() (string, error) {
	resp, err := s.iter.Next()
	if err == iterator.Done {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		break
	}
	return b.String(), nil
}

func (s *geminiStream) Close() error {
	return nil
}
