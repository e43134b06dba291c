package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

func testPhotos() []scan.CapturedPhoto {
	uri := scan.EncodeDataURI("image/jpeg", []byte{0xff, 0xd8, 0xff})
	var out []scan.CapturedPhoto
	for _, typ := range []string{"front", "left", "right", "back"} {
		out = append(out, scan.CapturedPhoto{ID: typ + "-1", Preview: uri, Type: typ})
	}
	return out
}

func TestChainFallback(t *testing.T) {
	ctx := context.Background()

	failing := WithError(errors.New("provider 1 failed"))
	working := NewMock()

	chain, err := NewChain(failing, working)
	if err != nil {
		t.Fatalf("Failed to create chain: %v", err)
	}
	defer chain.Close()

	res, err := chain.Analyze(ctx, &Request{Photos: testPhotos()})
	if err != nil {
		t.Fatalf("Chain analyze failed: %v", err)
	}
	if res.NorwoodStage != 3 || res.Provider != "mock" {
		t.Errorf("Unexpected result: %+v", res)
	}
	if failing.Calls() != 1 || working.Calls() != 1 {
		t.Errorf("Expected one call each, got %d and %d", failing.Calls(), working.Calls())
	}
}

func TestChainAllFail(t *testing.T) {
	chain, _ := NewChain(WithError(errors.New("p1")), WithError(errors.New("p2")))
	defer chain.Close()

	_, err := chain.Analyze(context.Background(), &Request{Photos: testPhotos()})
	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("Expected ChainError, got %T", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(chainErr.Errors))
	}
}

func TestChainEmpty(t *testing.T) {
	if _, err := NewChain(); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestRequestValidate(t *testing.T) {
	if err := (&Request{}).Validate(); !errors.Is(err, ErrNoPhotos) {
		t.Errorf("Expected ErrNoPhotos, got %v", err)
	}

	bad := testPhotos()
	bad[1].Preview = "data:image/jpeg;base64,%%%"
	if err := (&Request{Photos: bad}).Validate(); err == nil {
		t.Error("Expected undecodable photo to fail")
	}

	m := NewMock()
	if _, err := m.Analyze(context.Background(), &Request{}); !errors.Is(err, ErrNoPhotos) {
		t.Errorf("Expected mock to validate, got %v", err)
	}
}

func TestParseResult(t *testing.T) {
	text := "```json\n" + `{
  "norwood_stage": 9,
  "scores": {"hairline": 120, "crown": -5, "donor": 80},
  "density": "sparse",
  "estimated_grafts": -10,
  "summary": "Advanced loss.",
  "confidence": 1.4
}` + "\n```"

	r, err := ParseResult(text)
	if err != nil {
		t.Fatalf("ParseResult: %v", err)
	}
	if r.NorwoodStage != 7 {
		t.Errorf("Expected stage clamped to 7, got %d", r.NorwoodStage)
	}
	if r.Scores["hairline"] != 100 || r.Scores["crown"] != 0 {
		t.Errorf("Expected clamped scores, got %v", r.Scores)
	}
	if r.Density != DensityMedium {
		t.Errorf("Expected density derived from scores, got %s", r.Density)
	}
	if r.EstimatedGrafts != 0 || r.Confidence != 1 {
		t.Errorf("Expected grafts 0 and confidence 1, got %d %v", r.EstimatedGrafts, r.Confidence)
	}
	if r.Recommendations == nil {
		t.Error("Expected non-nil recommendations")
	}
}

func TestParseResult_Errors(t *testing.T) {
	tests := []struct {
		text string
		want error
	}{
		{"", ErrEmptyResponse},
		{"   ", ErrEmptyResponse},
		{"not json", ErrMalformedResult},
		{`{"unrelated": true}`, ErrMalformedResult},
	}
	for _, tt := range tests {
		if _, err := ParseResult(tt.text); !errors.Is(err, tt.want) {
			t.Errorf("ParseResult(%q): expected %v, got %v", tt.text, tt.want, err)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(&Request{
		Photos: testPhotos(),
		Subject: &Subject{
			Age:           41,
			FamilyHistory: true,
			Concerns:      []string{"temples", "crown"},
		},
	})

	for _, want := range []string{"Age: 41", "Family history", "temples, crown", "front, left, right, back"} {
		if !strings.Contains(p, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

func TestWithRetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond

	calls := 0
	res, err := withRetry(context.Background(), cfg, cfg.Logger, func(context.Context) (*Result, error) {
		calls++
		if calls < 3 {
			return nil, &APIError{StatusCode: 503, Provider: "test"}
		}
		return &Result{NorwoodStage: 2}, nil
	})
	if err != nil || res.NorwoodStage != 2 || calls != 3 {
		t.Errorf("Expected success on third attempt, got %v %v after %d calls", res, err, calls)
	}

	calls = 0
	_, err = withRetry(context.Background(), cfg, cfg.Logger, func(context.Context) (*Result, error) {
		calls++
		return nil, &APIError{StatusCode: 401, Provider: "test"}
	})
	if calls != 1 {
		t.Errorf("Expected no retry on 401, got %d calls", calls)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsUnauthorized() {
		t.Errorf("Expected unauthorized APIError, got %v", err)
	}

	calls = 0
	withRetry(context.Background(), cfg, cfg.Logger, func(context.Context) (*Result, error) {
		calls++
		return nil, WrapError("test", ErrMalformedResult)
	})
	if calls != 1 {
		t.Errorf("Expected no retry on malformed output, got %d calls", calls)
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAI(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got %v", err)
	}
	p, err := NewOpenAI(WithAPIKey("sk-test"), WithModel("gpt-4o-mini"))
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	if p.Name() != "openai" || p.config.Model != "gpt-4o-mini" {
		t.Errorf("Unexpected provider config %+v", p.config)
	}
}
