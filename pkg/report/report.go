// Package report assembles captured photos and an analysis result into a
// patient report. Details stay locked until the patient submits the intake
// form; a locked report only exposes a preview.
package report

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-scalpscan/pkg/analysis"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

var (
	// ErrLocked is returned when a locked report's details are requested.
	ErrLocked = errors.New("report: locked until intake is submitted")

	// ErrNotFound is returned for an unknown report ID.
	ErrNotFound = errors.New("report: not found")
)

// Report is the assessment shown to a patient after a scan.
type Report struct {
	ID        string               `json:"id" yaml:"id"`
	SessionID string               `json:"session_id" yaml:"session_id"`
	CreatedAt time.Time            `json:"created_at" yaml:"created_at"`
	Photos    []scan.CapturedPhoto `json:"photos" yaml:"-"`
	Analysis  *analysis.Result     `json:"analysis" yaml:"analysis"`
	LeadID    string               `json:"lead_id,omitempty" yaml:"lead_id,omitempty"`
	Unlocked  bool                 `json:"unlocked" yaml:"-"`
}

// New creates a locked report.
func New(sessionID string, photos []scan.CapturedPhoto, result *analysis.Result) *Report {
	return &Report{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
		Photos:    photos,
		Analysis:  result,
	}
}

// Unlock attaches the lead that unlocked the report.
func (r *Report) Unlock(leadID string) {
	r.LeadID = leadID
	r.Unlocked = true
}

// PhotoRef identifies a photo without its image data.
type PhotoRef struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
}

// View is what the API returns for a report. Locked views carry the stage
// and photo list only.
type View struct {
	ID           string           `json:"id"`
	Locked       bool             `json:"locked"`
	NorwoodStage int              `json:"norwood_stage,omitempty"`
	Photos       []PhotoRef       `json:"photos"`
	Analysis     *analysis.Result `json:"analysis,omitempty"`
	Previews     []string         `json:"previews,omitempty"`
}

// View returns the gated representation of r.
func (r *Report) View() View {
	v := View{
		ID:     r.ID,
		Locked: !r.Unlocked,
		Photos: r.refs(),
	}
	if r.Analysis != nil {
		v.NorwoodStage = r.Analysis.NorwoodStage
	}
	if r.Unlocked {
		v.Analysis = r.Analysis
		for _, p := range r.Photos {
			v.Previews = append(v.Previews, p.Preview)
		}
	}
	return v
}

func (r *Report) refs() []PhotoRef {
	refs := make([]PhotoRef, len(r.Photos))
	for i, p := range r.Photos {
		refs[i] = PhotoRef{ID: p.ID, Type: p.Type}
	}
	return refs
}

// MemoryStore keeps reports in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*Report)}
}

// Save stores r, replacing any report with the same ID.
func (s *MemoryStore) Save(r *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
}

// Get returns a copy of the report with the given ID.
func (s *MemoryStore) Get(id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *r
	return &cp, nil
}

// Unlock marks a stored report unlocked by leadID.
func (s *MemoryStore) Unlock(id, leadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.Unlock(leadID)
	return nil
}
