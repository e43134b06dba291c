package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

const (
	providerGemini     = "gemini"
	defaultGeminiModel = "gemini-2.0-flash"
	geminiScope        = "https://www.googleapis.com/auth/generative-language"
)

// Gemini analyzes photos with Google's Gemini models.
type Gemini struct {
	client *genai.Client
	config *Config
	logger *slog.Logger
}

// NewGemini creates a Gemini provider. Without an API key or token source,
// Application Default Credentials are used.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Model = defaultGeminiModel
	cfg.Apply(opts...)

	var clientOpt option.ClientOption
	switch {
	case cfg.APIKey != "":
		clientOpt = option.WithAPIKey(cfg.APIKey)
	case cfg.TokenSource != nil:
		clientOpt = option.WithTokenSource(cfg.TokenSource)
	default:
		ts, err := google.DefaultTokenSource(ctx, geminiScope)
		if err != nil {
			return nil, WrapError(providerGemini, fmt.Errorf("%w: %v", ErrNoAPIKey, err))
		}
		clientOpt = option.WithTokenSource(ts)
	}

	client, err := genai.NewClient(ctx, clientOpt)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	return &Gemini{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "analysis.gemini"),
	}, nil
}

// Name implements Provider.
func (g *Gemini) Name() string { return providerGemini }

// Analyze implements Provider.
func (g *Gemini) Analyze(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	model := g.client.GenerativeModel(g.config.Model)
	model.SetTemperature(g.config.Temperature)
	model.SetTopK(1)
	model.SetMaxOutputTokens(int32(g.config.MaxTokens))
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = resultSchema()

	parts := []genai.Part{genai.Text(BuildPrompt(req))}
	for _, p := range req.Photos {
		mime, data, err := scan.DecodeDataURI(p.Preview)
		if err != nil {
			return nil, err
		}
		parts = append(parts, genai.Text(fmt.Sprintf("[%s]", p.Type)))
		parts = append(parts, genai.ImageData(strings.TrimPrefix(mime, "image/"), data))
	}

	res, err := withRetry(ctx, g.config, g.logger, func(ctx context.Context) (*Result, error) {
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return nil, g.wrap(err)
		}

		var text strings.Builder
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
		res, err := ParseResult(text.String())
		if err != nil {
			return nil, WrapError(providerGemini, err)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	res.Provider = providerGemini
	g.logger.Info("analysis complete", "norwood", res.NorwoodStage, "confidence", res.Confidence)
	return res, nil
}

func (g *Gemini) wrap(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message, Provider: providerGemini}
	}
	return WrapError(providerGemini, err)
}

// Close implements Provider.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func resultSchema() *genai.Schema {
	scores := make(map[string]*genai.Schema, len(Regions))
	for _, r := range Regions {
		scores[r] = &genai.Schema{Type: genai.TypeInteger}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"norwood_stage": {Type: genai.TypeInteger},
			"scores": {
				Type:       genai.TypeObject,
				Properties: scores,
				Required:   Regions,
			},
			"density":          {Type: genai.TypeString, Enum: []string{"low", "medium", "high"}},
			"donor_quality":    {Type: genai.TypeString},
			"estimated_grafts": {Type: genai.TypeInteger},
			"recommendations":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"summary":          {Type: genai.TypeString},
			"confidence":       {Type: genai.TypeNumber},
		},
		Required: []string{"norwood_stage", "scores", "density", "recommendations", "summary", "confidence"},
	}
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
