package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"google.golang.org/api/option"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// DefaultTemperature keeps replies close to deterministic.
const DefaultTemperature = 0.2

// Config selects and configures the analysis backend.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string // endpoint override
	Model       string
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
}

// DefaultConfig returns the OpenAI-compatible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:    ProviderOpenAI,
		Model:       DefaultModel(ProviderOpenAI),
		Temperature: DefaultTemperature,
		MaxTokens:   4096,
		Timeout:     90 * time.Second,
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	case ProviderGemini:
		return "gemini-1.5-flash"
	default:
		return "gpt-4o-mini"
	}
}

// NewCompleter constructs the backend client for cfg.Provider.
func NewCompleter(ctx context.Context, cfg Config) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("analysis API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return newOpenAICompleter(cfg), nil
	case ProviderAnthropic:
		return newAnthropicCompleter(cfg), nil
	case ProviderGemini:
		c, err := newGeminiCompleter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: openai, anthropic, gemini)", cfg.Provider)
	}
}

type openAICompleter struct {
	client openai.Client
	cfg    Config
}

func newOpenAICompleter(cfg Config) *openAICompleter {
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(cfg.APIKey),
		openaioption.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openaioption.WithBaseURL(cfg.BaseURL))
	}
	return &openAICompleter{client: openai.NewClient(opts...), cfg: cfg}
}

func (c *openAICompleter) Name() string { return ProviderOpenAI }

func (c *openAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

type anthropicCompleter struct {
	client anthropic.Client
	cfg    Config
}

func newAnthropicCompleter(cfg Config) *anthropicCompleter {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(cfg.APIKey),
		anthropicoption.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicCompleter{client: anthropic.NewClient(opts...), cfg: cfg}
}

func (c *anthropicCompleter) Name() string { return ProviderAnthropic }

func (c *anthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Temperature: anthropic.Float(c.cfg.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

type geminiCompleter struct {
	client *genai.Client
	cfg    Config
}

func newGeminiCompleter(ctx context.Context, cfg Config) (*geminiCompleter, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &geminiCompleter{client: client, cfg: cfg}, nil
}

func (c *geminiCompleter) Name() string { return ProviderGemini }

func (c *geminiCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(float32(c.cfg.Temperature))
	model.SetMaxOutputTokens(int32(c.cfg.MaxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}

func (c *geminiCompleter) Close() error { return c.client.Close() }
