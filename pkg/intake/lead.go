package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidPatient is returned when a lead is submitted with an invalid form.
var ErrInvalidPatient = errors.New("intake: invalid patient")

// Lead is a submitted intake form tied to a scan session and its report.
type Lead struct {
	ID        string    `json:"id"`
	Patient   Patient   `json:"patient"`
	SessionID string    `json:"session_id,omitempty"`
	ReportID  string    `json:"report_id,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Forwarded is set once every sink accepted the lead.
	Forwarded bool `json:"forwarded"`
}

// Sink receives leads after they are stored locally.
type Sink interface {
	Send(ctx context.Context, lead *Lead) error
	Name() string
}

// Recorder validates, stores and forwards leads.
type Recorder struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to store and forwarding to sinks.
func NewRecorder(store Store, logger *slog.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		sinks:  sinks,
		logger: logger.With("component", "intake"),
	}
}

// Submit records a lead. The lead is always stored locally before any sink
// is tried; a sink failure is logged and leaves Forwarded false.
func (r *Recorder) Submit(ctx context.Context, p Patient, sessionID, reportID string) (*Lead, error) {
	if errs := p.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPatient, strings.Join(errs, "; "))
	}

	lead := &Lead{
		ID:        uuid.NewString(),
		Patient:   p,
		SessionID: sessionID,
		ReportID:  reportID,
		Source:    "scan",
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.Save(lead); err != nil {
		return nil, fmt.Errorf("intake: save lead: %w", err)
	}

	forwarded := len(r.sinks) > 0
	for _, s := range r.sinks {
		if err := s.Send(ctx, lead); err != nil {
			forwarded = false
			r.logger.Warn("lead forward failed", "sink", s.Name(), "lead_id", lead.ID, "error", err)
		}
	}
	if forwarded {
		lead.Forwarded = true
		if err := r.store.Save(lead); err != nil {
			r.logger.Warn("failed to mark lead forwarded", "lead_id", lead.ID, "error", err)
		}
	}

	r.logger.Info("lead recorded", "lead_id", lead.ID, "session_id", sessionID, "forwarded", lead.Forwarded)
	return lead, nil
}

// Store returns the underlying store.
func (r *Recorder) Store() Store {
	return r.store
}
