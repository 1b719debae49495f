package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"agentchat/config"
	"agentchat/metrics"
)

// ProviderKind identifies one of the interchangeable LLM backends. All
// three speak the OpenAI chat-completion protocol; they differ only in
// base URL and credential requirements.
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai"
	ProviderGroq   ProviderKind = "groq"
	ProviderOllama ProviderKind = "ollama"
)

// DetectProvider classifies a free-form model string. The classification
// is total: anything unrecognized falls through to the local Ollama
// backend, which is also the default.
func DetectProvider(model string) ProviderKind {
	m := strings.ToLower(model)
	if strings.HasPrefix(m, "gpt-") || strings.Contains(m, "openai") {
		return ProviderOpenAI
	}
	if strings.Contains(m, "groq") || strings.Contains(m, "llama3-") ||
		strings.Contains(m, "mixtral") || strings.Contains(m, "gemma") {
		return ProviderGroq
	}
	return ProviderOllama
}

// ProviderService resolves models to backends and runs completions
// against them.
type ProviderService interface {
	Resolve(model string) ProviderKind
	// Generate runs a blocking completion and returns the trimmed text.
	Generate(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (string, error)
	// Stream runs a streaming completion, invoking onChunk for every
	// delta as it arrives, and returns the full accumulated text. On a
	// mid-stream error the text gathered so far is returned alongside it.
	Stream(ctx context.Context, model string, messages []openai.ChatCompletionMessage, onChunk func(chunk string) error) (string, error)
}

type providerService struct {
	cfg    config.ProvidersConfig
	logger *zap.Logger
}

// NewProviderService creates a new instance of ProviderService.
func NewProviderService(cfg config.ProvidersConfig, logger *zap.Logger) ProviderService {
	return &providerService{cfg: cfg, logger: logger}
}

func (s *providerService) Resolve(model string) ProviderKind {
	return DetectProvider(model)
}

func (s *providerService) clientFor(model string) (*openai.Client, ProviderKind, error) {
	kind := DetectProvider(model)
	switch kind {
	case ProviderOpenAI:
		if s.cfg.OpenAI.APIKey == "" {
			return nil, kind, fmt.Errorf("openai: %w", ErrMissingCredential)
		}
		clientCfg := openai.DefaultConfig(s.cfg.OpenAI.APIKey)
		if s.cfg.OpenAI.BaseURL != "" {
			clientCfg.BaseURL = s.cfg.OpenAI.BaseURL
		}
		return openai.NewClientWithConfig(clientCfg), kind, nil

	case ProviderGroq:
		if s.cfg.Groq.APIKey == "" {
			return nil, kind, fmt.Errorf("groq: %w", ErrMissingCredential)
		}
		clientCfg := openai.DefaultConfig(s.cfg.Groq.APIKey)
		clientCfg.BaseURL = s.cfg.Groq.BaseURL
		return openai.NewClientWithConfig(clientCfg), kind, nil

	default:
		// The local backend accepts any token.
		clientCfg := openai.DefaultConfig("ollama")
		clientCfg.BaseURL = s.cfg.Ollama.BaseURL
		return openai.NewClientWithConfig(clientCfg), kind, nil
	}
}

func (s *providerService) Generate(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (string, error) {
	client, kind, err := s.clientFor(model)
	if err != nil {
		return "", err
	}
	metrics.ProviderRequests.WithLabelValues(string(kind)).Inc()

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		metrics.ProviderFailures.WithLabelValues(string(kind)).Inc()
		return "", fmt.Errorf("completion failed for model %s: %w", model, err)
	}
	if len(resp.Choices) == 0 {
		metrics.ProviderFailures.WithLabelValues(string(kind)).Inc()
		return "", fmt.Errorf("completion for model %s returned no choices", model)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (s *providerService) Stream(ctx context.Context, model string, messages []openai.ChatCompletionMessage, onChunk func(chunk string) error) (string, error) {
	client, kind, err := s.clientFor(model)
	if err != nil {
		return "", err
	}
	metrics.ProviderRequests.WithLabelValues(string(kind)).Inc()

	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		metrics.ProviderFailures.WithLabelValues(string(kind)).Inc()
		return "", fmt.Errorf("stream start failed for model %s: %w", model, err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		resp, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			metrics.ProviderFailures.WithLabelValues(string(kind)).Inc()
			return full.String(), fmt.Errorf("stream receive failed for model %s: %w", model, recvErr)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		chunk := resp.Choices[0].Delta.Content
		if chunk == "" {
			continue
		}
		full.WriteString(chunk)
		if onChunk != nil {
			if err := onChunk(chunk); err != nil {
				return full.String(), fmt.Errorf("stream write failed: %w", err)
			}
		}
	}
	return full.String(), nil
}
