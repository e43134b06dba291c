package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const systemPrompt = `You are assisting a hair restoration clinic. You receive scalp photos taken
in a fixed order and must assess the pattern and extent of hair loss.

Return only a JSON object with these fields:
- norwood_stage: integer 1-7 (Hamilton-Norwood scale)
- scores: object with integer 0-100 coverage per region: hairline, temples, mid_scalp, crown, donor
- density: "low", "medium" or "high"
- donor_quality: short description of the donor area
- estimated_grafts: integer estimate of grafts needed to restore the affected areas, 0 if none
- recommendations: array of short next steps
- summary: two or three plain sentences for the patient
- confidence: number 0-1

This is a preliminary visual estimate, not a diagnosis. If a photo is unusable, say so in summary
and lower confidence.`

// BuildPrompt renders the text part of a request: instructions, patient
// context and the photo order.
func BuildPrompt(req *Request) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")

	if s := req.Subject; s != nil {
		b.WriteString("Patient context:\n")
		if s.Age > 0 {
			fmt.Fprintf(&b, "- Age: %d\n", s.Age)
		}
		if s.Sex != "" {
			fmt.Fprintf(&b, "- Sex: %s\n", s.Sex)
		}
		if s.LossDuration != "" {
			fmt.Fprintf(&b, "- Noticed loss for: %s\n", s.LossDuration)
		}
		if s.FamilyHistory {
			b.WriteString("- Family history of hair loss: yes\n")
		}
		if len(s.Concerns) > 0 {
			fmt.Fprintf(&b, "- Main concerns: %s\n", strings.Join(s.Concerns, ", "))
		}
		if len(s.Treatments) > 0 {
			fmt.Fprintf(&b, "- Previous treatments: %s\n", strings.Join(s.Treatments, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("Photos follow in this order: ")
	types := make([]string, len(req.Photos))
	for i, p := range req.Photos {
		types[i] = p.Type
	}
	b.WriteString(strings.Join(types, ", "))
	b.WriteString(".")
	return b.String()
}

// ParseResult decodes model output into a Result. Markdown code fences are
// stripped and out-of-range values are clamped.
func ParseResult(text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	text = stripFences(text)

	var r Result
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if r.NorwoodStage == 0 && len(r.Scores) == 0 && r.Summary == "" {
		return nil, fmt.Errorf("%w: no assessment fields", ErrMalformedResult)
	}

	r.NorwoodStage = clamp(r.NorwoodStage, 1, 7)
	if r.Scores == nil {
		r.Scores = make(map[string]int)
	}
	for k, v := range r.Scores {
		r.Scores[k] = clamp(v, 0, 100)
	}
	switch r.Density {
	case DensityLow, DensityMedium, DensityHigh:
	default:
		r.Density = densityFromScores(r.Scores)
	}
	if r.EstimatedGrafts < 0 {
		r.EstimatedGrafts = 0
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	} else if r.Confidence > 1 {
		r.Confidence = 1
	}
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
	return &r, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // drop language tag
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func densityFromScores(scores map[string]int) Density {
	if len(scores) == 0 {
		return DensityMedium
	}
	sum := 0
	for _, v := range scores {
		sum += v
	}
	avg := sum / len(scores)
	switch {
	case avg < 40:
		return DensityLow
	case avg < 70:
		return DensityMedium
	default:
		return DensityHigh
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// withRetry runs fn until it succeeds, returns a non-retryable error or the
// attempts run out.
func withRetry(ctx context.Context, cfg *Config, logger *slog.Logger, fn func(context.Context) (*Result, error)) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc = func() {}
		if cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		res, err := fn(callCtx)
		cancel()
		if err == nil {
			return res, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) {
			return nil, err
		}
		logger.Warn("analysis request failed, retrying",
			"attempt", attempt+1,
			"error", err,
		)
	}
	return nil, lastErr
}
