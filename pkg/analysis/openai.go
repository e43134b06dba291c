package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

const (
	providerOpenAI     = "openai"
	defaultOpenAIModel = "gpt-4o"
)

// OpenAI analyzes photos with OpenAI-compatible chat completion APIs.
type OpenAI struct {
	client *openai.Client
	config *Config
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Model = defaultOpenAIModel
	cfg.Apply(opts...)

	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, WrapError(providerOpenAI, ErrNoAPIKey)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		logger: cfg.Logger.With("component", "analysis.openai"),
	}, nil
}

// Name implements Provider.
func (o *OpenAI) Name() string { return providerOpenAI }

// Analyze implements Provider.
func (o *OpenAI) Analyze(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	content := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: BuildPrompt(req)},
	}
	for _, p := range req.Photos {
		content = append(content,
			openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: fmt.Sprintf("[%s]", p.Type)},
			openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    p.Preview,
					Detail: openai.ImageURLDetailHigh,
				},
			},
		)
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       o.config.Model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, MultiContent: content}},
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	res, err := withRetry(ctx, o.config, o.logger, func(ctx context.Context) (*Result, error) {
		resp, err := o.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return nil, o.wrap(err)
		}
		if len(resp.Choices) == 0 {
			return nil, WrapError(providerOpenAI, ErrEmptyResponse)
		}
		res, err := ParseResult(resp.Choices[0].Message.Content)
		if err != nil {
			return nil, WrapError(providerOpenAI, err)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	res.Provider = providerOpenAI
	o.logger.Info("analysis complete", "norwood", res.NorwoodStage, "confidence", res.Confidence)
	return res, nil
}

func (o *OpenAI) wrap(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Provider: providerOpenAI}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Provider: providerOpenAI}
	}
	return WrapError(providerOpenAI, err)
}

// Close implements Provider.
func (o *OpenAI) Close() error { return nil }

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
