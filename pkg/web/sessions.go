package web

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

// Session modes. A session is driven either by a live frame stream or by
// manual uploads, never both.
const (
	modeIdle   = ""
	modeStream = "stream"
	modeUpload = "upload"
)

var (
	errSessionNotFound = errors.New("session not found")
	errModeConflict    = errors.New("session is already in use by another capture mode")
	errNotComplete     = errors.New("session has not captured every step")
)

// entry tracks one capture session known to the server.
type entry struct {
	id      string
	steps   []scan.Step
	created time.Time

	mu       sync.Mutex
	mode     string
	session  *scan.Session
	uploads  *scan.Sequencer
	photos   []scan.CapturedPhoto
	reportID string
	ended    bool
}

// SessionInfo is the API view of a session.
type SessionInfo struct {
	ID        string      `json:"id"`
	Mode      string      `json:"mode,omitempty"`
	Steps     []scan.Step `json:"steps"`
	StepIndex int         `json:"step_index"`
	Status    scan.Status `json:"status,omitempty"`
	Progress  int         `json:"progress"`
	Degraded  bool        `json:"degraded,omitempty"`
	Complete  bool        `json:"complete"`
	Photos    int         `json:"photos"`
	ReportID  string      `json:"report_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func (e *entry) info() SessionInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	info := SessionInfo{
		ID:        e.id,
		Mode:      e.mode,
		Steps:     e.steps,
		Complete:  e.photos != nil,
		Photos:    len(e.photos),
		ReportID:  e.reportID,
		CreatedAt: e.created,
	}
	switch {
	case e.session != nil:
		idx, st := e.session.Snapshot()
		info.StepIndex = idx
		info.Status = st.Status
		info.Progress = st.Progress
		info.Degraded = e.session.Degraded()
	case e.uploads != nil:
		info.StepIndex = e.uploads.Index()
		if !info.Complete {
			info.Photos = len(e.uploads.Photos())
		}
	}
	return info
}

// claim switches the entry into mode, failing if another mode owns it.
func (e *entry) claim(mode string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return scan.ErrCancelled
	}
	if e.mode != modeIdle && e.mode != mode {
		return errModeConflict
	}
	e.mode = mode
	return nil
}

// complete records the final photo set.
func (e *entry) complete(photos []scan.CapturedPhoto) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.photos = photos
}

// result returns the completed photos.
func (e *entry) result() ([]scan.CapturedPhoto, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.photos == nil {
		return nil, errNotComplete
	}
	out := make([]scan.CapturedPhoto, len(e.photos))
	copy(out, e.photos)
	return out, nil
}

// cancel stops a running stream and discards uncommitted uploads.
func (e *entry) cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ended = true
	if e.session != nil {
		e.session.Cancel()
	}
	if e.photos == nil && e.uploads != nil {
		e.uploads.Reset()
	}
}

// upload offers a manually captured photo for the step with stepID.
func (e *entry) upload(stepID, preview string, now time.Time) (scan.CapturedPhoto, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.uploads == nil {
		seq, err := scan.NewSequencer(e.steps)
		if err != nil {
			return scan.CapturedPhoto{}, false, err
		}
		e.uploads = seq
	}
	photo := scan.CapturedPhoto{
		ID:         uuid.NewString(),
		Preview:    preview,
		Type:       stepID,
		CapturedAt: now,
	}
	done, err := e.uploads.Accept(photo)
	if err != nil {
		return scan.CapturedPhoto{}, false, err
	}
	if done {
		e.photos = e.uploads.Photos()
	}
	return photo, done, nil
}

// registry holds the server's sessions.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	max      int
}

func newRegistry(max int) *registry {
	return &registry{sessions: make(map[string]*entry), max: max}
}

func (r *registry) create(steps []scan.Step) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && len(r.sessions) >= r.max {
		r.evictLocked()
		if len(r.sessions) >= r.max {
			return nil, fmt.Errorf("too many sessions (%d)", r.max)
		}
	}
	e := &entry{id: uuid.NewString(), steps: steps, created: time.Now().UTC()}
	r.sessions[e.id] = e
	return e, nil
}

// evictLocked drops the oldest ended session.
func (r *registry) evictLocked() {
	var oldest *entry
	for _, e := range r.sessions {
		e.mu.Lock()
		ended := e.ended || e.photos != nil
		e.mu.Unlock()
		if ended && (oldest == nil || e.created.Before(oldest.created)) {
			oldest = e
		}
	}
	if oldest != nil {
		delete(r.sessions, oldest.id)
	}
}

func (r *registry) get(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	return e, nil
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// cancelAll stops every running session.
func (r *registry) cancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.sessions {
		e.cancel()
	}
}

// startStream starts a scan.Session for e fed by frames.
func (s *Server) startStream(ctx context.Context, e *entry, frames <-chan scan.Frame, overlay scan.OverlaySink) (<-chan scan.Update, error) {
	if err := e.claim(modeStream); err != nil {
		return nil, err
	}

	sess := scan.New(s.profile.Config, scan.Deps{
		LoadDetector:  s.deps.LoadDetector,
		LoadSegmenter: s.deps.LoadSegmenter,
		Snapshotter:   s.deps.Snapshotter,
		Overlay:       overlay,
		Logger:        s.logger.With("session_id", e.id),
	})

	e.mu.Lock()
	if e.session != nil {
		// A stream that ended without completing may be retried.
		select {
		case <-e.session.Done():
		default:
			e.mu.Unlock()
			return nil, scan.ErrAlreadyStarted
		}
		if e.photos != nil {
			e.mu.Unlock()
			return nil, scan.ErrSequenceComplete
		}
	}
	e.session = sess
	e.mu.Unlock()

	updates, err := sess.Start(ctx, e.steps, frames)
	if err != nil {
		e.mu.Lock()
		e.session = nil
		e.mode = modeIdle
		e.mu.Unlock()
		return nil, err
	}
	return updates, nil
}
