// Package analysis turns a completed capture set into a hair-loss assessment.
//
// Providers send the ordered photos plus patient context to a vision model
// and decode a structured Result. A Chain tries providers in order:
//
//	gemini, _ := analysis.NewGemini(ctx, analysis.WithAPIKey(key))
//	openai, _ := analysis.NewOpenAI(analysis.WithAPIKey(okey))
//	chain, _ := analysis.NewChain(gemini, openai)
//	defer chain.Close()
//
//	res, err := chain.Analyze(ctx, &analysis.Request{Photos: photos})
package analysis

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

// Provider analyzes a photo set.
type Provider interface {
	// Analyze returns the assessment for req.
	Analyze(ctx context.Context, req *Request) (*Result, error)

	// Name identifies the provider in logs and results.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// Subject is the patient context sent with the photos.
type Subject struct {
	Age           int      `json:"age,omitempty" yaml:"age,omitempty"`
	Sex           string   `json:"sex,omitempty" yaml:"sex,omitempty"`
	LossDuration  string   `json:"loss_duration,omitempty" yaml:"loss_duration,omitempty"`
	FamilyHistory bool     `json:"family_history,omitempty" yaml:"family_history,omitempty"`
	Concerns      []string `json:"concerns,omitempty" yaml:"concerns,omitempty"`
	Treatments    []string `json:"treatments,omitempty" yaml:"treatments,omitempty"`
}

// Request is one analysis call.
type Request struct {
	// Photos in step order. Preview must be a data URI.
	Photos  []scan.CapturedPhoto
	Subject *Subject
}

// Validate checks the request has decodable photos.
func (r *Request) Validate() error {
	if r == nil || len(r.Photos) == 0 {
		return ErrNoPhotos
	}
	for _, p := range r.Photos {
		if _, _, err := scan.DecodeDataURI(p.Preview); err != nil {
			return fmt.Errorf("analysis: photo %s: %w", p.Type, err)
		}
	}
	return nil
}

// Density is a coarse hair density class.
type Density string

const (
	DensityLow    Density = "low"
	DensityMedium Density = "medium"
	DensityHigh   Density = "high"
)

// Result is a structured assessment.
type Result struct {
	// NorwoodStage is the Hamilton-Norwood classification, 1-7.
	NorwoodStage int `json:"norwood_stage" yaml:"norwood_stage"`

	// Scores are per-region coverage scores, 0-100 (higher is fuller).
	Scores map[string]int `json:"scores" yaml:"scores"`

	Density         Density  `json:"density" yaml:"density"`
	DonorQuality    string   `json:"donor_quality,omitempty" yaml:"donor_quality,omitempty"`
	EstimatedGrafts int      `json:"estimated_grafts,omitempty" yaml:"estimated_grafts,omitempty"`
	Recommendations []string `json:"recommendations" yaml:"recommendations"`
	Summary         string   `json:"summary" yaml:"summary"`
	Confidence      float64  `json:"confidence" yaml:"confidence"`

	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// Regions scored in every result.
var Regions = []string{"hairline", "temples", "mid_scalp", "crown", "donor"}
