package scan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// FrameSource produces frames until its context is cancelled or the
// device stops. Close releases the device.
type FrameSource interface {
	Open(ctx context.Context) (<-chan Frame, error)
	Close() error
}

// Deps are the external collaborators of a Session. Only Snapshotter is
// required; a session without LoadDetector relies on frames that carry
// their own detection results.
type Deps struct {
	// Source is opened during setup when Start is called without a frame channel.
	Source FrameSource

	LoadDetector  func(ctx context.Context) (LandmarkDetector, error)
	LoadSegmenter func(ctx context.Context) (Segmenter, error)

	Snapshotter Snapshotter
	Overlay     OverlaySink

	NewID  func() string
	Now    func() time.Time
	Logger *slog.Logger
}

// Session owns one capture flow: setup, the frame loop and teardown.
// Updates are delivered on the channel returned by Start; the channel is
// closed after exactly one terminal update.
type Session struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	photos   []CapturedPhoto
	err      error
	degraded bool
	progress State
	index    int
}

// New creates an idle session.
func New(cfg Config, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "scan.session"),
		done:   make(chan struct{}),
	}
}

// Start runs setup synchronously and then processes frames on a single
// goroutine. If frames is nil, Deps.Source is opened. A setup failure is
// returned as *SetupError after releasing anything already acquired.
func (s *Session) Start(ctx context.Context, steps []Step, frames <-chan Frame) (<-chan Update, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if err := ValidateSteps(steps); err != nil {
		s.finish(nil, err)
		return nil, err
	}
	if s.deps.Snapshotter == nil {
		s.finish(nil, ErrNoSnapshotter)
		return nil, ErrNoSnapshotter
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	select {
	case <-s.done:
		cancel()
		return nil, ErrCancelled
	default:
	}

	var releasers []func()
	release := func() {
		for i := len(releasers) - 1; i >= 0; i-- {
			releasers[i]()
		}
		releasers = nil
	}
	fail := func(err error) (<-chan Update, error) {
		release()
		cancel()
		s.finish(nil, err)
		return nil, err
	}

	if frames == nil {
		if s.deps.Source == nil {
			return fail(&SetupError{Resource: "camera", Err: errors.New("no frame source")})
		}
		ch, err := s.deps.Source.Open(runCtx)
		if err != nil {
			return fail(&SetupError{Resource: "camera", Err: err})
		}
		src := s.deps.Source
		releasers = append(releasers, func() {
			if err := src.Close(); err != nil {
				s.logger.Warn("frame source close failed", "error", err)
			}
		})
		frames = ch
	}

	var detector LandmarkDetector
	degraded := false
	if s.deps.LoadDetector != nil {
		d, err := s.deps.LoadDetector(runCtx)
		switch {
		case err == nil:
			detector = d
			releasers = append(releasers, closer("detector", d, s.logger))
		case s.cfg.DegradeOnDetectorFailure:
			degraded = true
			s.logger.Warn("landmark detector unavailable, face steps degraded to manual", "error", err)
		default:
			return fail(&SetupError{Resource: "detector", Err: err})
		}
	}

	var segmenter Segmenter
	if s.cfg.Overlay.Enabled && s.deps.LoadSegmenter != nil {
		seg, err := s.deps.LoadSegmenter(runCtx)
		if err != nil {
			s.logger.Warn("segmenter unavailable, overlay disabled", "error", err)
		} else {
			segmenter = seg
			releasers = append(releasers, closer("segmenter", seg, s.logger))
		}
	}

	ctrl, err := NewController(s.cfg, steps, ControllerOptions{
		Detector:    detector,
		Degraded:    degraded,
		Segmenter:   segmenter,
		Snapshotter: s.deps.Snapshotter,
		Overlay:     s.deps.Overlay,
		NewID:       s.deps.NewID,
		Now:         s.deps.Now,
		Logger:      s.logger,
	})
	if err != nil {
		return fail(err)
	}

	s.mu.Lock()
	s.degraded = degraded
	s.progress = ctrl.State()
	s.mu.Unlock()

	updates := make(chan Update, s.cfg.UpdateBuffer)
	go s.run(runCtx, ctrl, frames, updates, release)

	s.logger.Info("session started", "steps", len(steps), "degraded", degraded, "overlay", segmenter != nil)
	return updates, nil
}

func (s *Session) run(ctx context.Context, ctrl *Controller, frames <-chan Frame, updates chan<- Update, release func()) {
	defer s.Cancel()
	defer close(updates)
	defer release()

	for {
		select {
		case <-ctx.Done():
			s.cancelled(ctrl, updates)
			return

		case f, ok := <-frames:
			// A cancel that raced with a ready frame wins.
			if ctx.Err() != nil {
				s.cancelled(ctrl, updates)
				return
			}
			if !ok {
				s.finish(nil, ErrIncomplete)
				s.emitFinal(updates, Update{
					Kind:      UpdateError,
					StepIndex: ctrl.StepIndex(),
					Error:     ErrIncomplete.Error(),
				})
				s.logger.Warn("frame stream ended early", "step_index", ctrl.StepIndex())
				return
			}

			out, done := ctrl.HandleFrame(f)
			s.mu.Lock()
			s.progress = ctrl.State()
			s.index = ctrl.StepIndex()
			s.mu.Unlock()

			for _, u := range out {
				if u.Terminal() {
					break
				}
				select {
				case updates <- u:
				case <-ctx.Done():
				}
			}
			if ctx.Err() != nil {
				s.cancelled(ctrl, updates)
				return
			}

			if done {
				photos := ctrl.Photos()
				s.finish(photos, nil)
				s.emitFinal(updates, out[len(out)-1])
				s.logger.Info("session complete", "photos", len(photos))
				return
			}
		}
	}
}

// cancelled discards any captured photos and emits the cancel update.
func (s *Session) cancelled(ctrl *Controller, updates chan<- Update) {
	s.finish(nil, ErrCancelled)
	s.emitFinal(updates, Update{
		Kind:      UpdateCancelled,
		StepIndex: ctrl.StepIndex(),
		Error:     ErrCancelled.Error(),
	})
	s.logger.Info("session cancelled", "step_index", ctrl.StepIndex())
}

// emitFinal delivers the terminal update, giving a slow consumer a short
// grace period before dropping it.
func (s *Session) emitFinal(updates chan<- Update, u Update) {
	select {
	case updates <- u:
		return
	default:
	}
	t := time.NewTimer(time.Second)
	defer t.Stop()
	select {
	case updates <- u:
	case <-t.C:
		s.logger.Warn("dropped terminal update", "kind", u.Kind)
	}
}

func (s *Session) finish(photos []CapturedPhoto, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return
	default:
	}
	s.photos = photos
	s.err = err
	close(s.done)
}

// Cancel stops the session and discards any photos not yet delivered.
// It is safe to call at any time and more than once.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		return
	}
	s.finish(nil, ErrCancelled)
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result waits for the session to finish and returns the photos in step
// order. It returns ErrCancelled or ErrIncomplete when the flow did not
// complete, or ctx.Err() if ctx ends first.
func (s *Session) Result(ctx context.Context) ([]CapturedPhoto, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]CapturedPhoto, len(s.photos))
	copy(out, s.photos)
	return out, nil
}

// Snapshot returns the current step index and machine state.
func (s *Session) Snapshot() (int, State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, s.progress
}

// Degraded reports whether face steps are running as manual steps.
func (s *Session) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func closer(name string, v any, logger *slog.Logger) func() {
	return func() {
		c, ok := v.(io.Closer)
		if !ok {
			return
		}
		if err := c.Close(); err != nil {
			logger.Warn("close failed", "resource", name, "error", err)
		}
	}
}
