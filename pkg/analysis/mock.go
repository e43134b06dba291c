package analysis

import (
	"context"
	"sync"
)

// Mock implements Provider for testing and offline demos.
type Mock struct {
	// AnalyzeFunc is called when Analyze is invoked.
	AnalyzeFunc func(ctx context.Context, req *Request) (*Result, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock provider returning a fixed mid-stage result.
func NewMock() *Mock {
	return &Mock{
		AnalyzeFunc: func(ctx context.Context, req *Request) (*Result, error) {
			return &Result{
				NorwoodStage: 3,
				Scores: map[string]int{
					"hairline":  55,
					"temples":   40,
					"mid_scalp": 70,
					"crown":     65,
					"donor":     85,
				},
				Density:         DensityMedium,
				DonorQuality:    "Good density in the occipital zone",
				EstimatedGrafts: 2200,
				Recommendations: []string{"Book an in-person consultation", "Discuss medical therapy to stabilize loss"},
				Summary:         "Moderate recession at the temples with a healthy donor area.",
				Confidence:      0.5,
			}, nil
		},
	}
}

// WithError returns a mock whose Analyze always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		AnalyzeFunc: func(context.Context, *Request) (*Result, error) {
			return nil, WrapError("mock", err)
		},
	}
}

// Name implements Provider.
func (m *Mock) Name() string { return "mock" }

// Analyze calls AnalyzeFunc and records the call.
func (m *Mock) Analyze(ctx context.Context, req *Request) (*Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if m.AnalyzeFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	res, err := m.AnalyzeFunc(ctx, req)
	if res != nil && res.Provider == "" {
		res.Provider = "mock"
	}
	return res, err
}

// Close calls CloseFunc if set.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns the number of Analyze invocations.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
