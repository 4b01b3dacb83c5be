package llm

import (
	"context"
	"encoding/base64"

	openai "github.com/sashabaranov/go-openai"
)

type openAIProvider struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func newOpenAI(cfg Config) *openAIProvider {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return &openAIProvider{
		client:    openai.NewClientWithConfig(c),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

func (p *openAIProvider) Open(ctx context.Context, req request) (textStream, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  openAIMessages(req),
		MaxTokens: p.maxTokens,
		Stream:    true,
	})
	if err != nil {
		return nil, err
	}
	return &openAIStream{stream: stream}, nil
}

func (p *openAIProvider) Close() error {
	return nil
}

func openAIMessages(req request) []openai.ChatCompletionMessage {
	system := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.Instruction,
	}
	if len(req.Image) == 0 {
		return []openai.ChatCompletionMessage{system, {
			Role:    openai.ChatMessageRoleUser,
			Content: req.Prompt,
		}}
	}

	var parts []openai.ChatMessagePart
	if req.Prompt != "" {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: req.Prompt,
		})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    dataURL(req.MIME, req.Image),
			Detail: openai.ImageURLDetailAuto,
		},
	})
	return []openai.ChatCompletionMessage{system, {
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	}}
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *openAIStream) Close() error {
	s.stream.Close()
	return nil
}
