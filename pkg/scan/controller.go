package scan

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // frame decoding
	_ "image/png"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/teslashibe/go-scalpscan/pkg/debug"
	"github.com/teslashibe/go-scalpscan/pkg/facemesh"
)

// LandmarkDetector finds at most one face in an image. A nil result with a
// nil error means no face.
type LandmarkDetector interface {
	DetectLandmarks(img image.Image) (*facemesh.Landmarks, error)
}

// Segmenter produces a per-pixel category mask.
type Segmenter interface {
	Segment(img image.Image) (*facemesh.Mask, error)
}

// Snapshotter turns a frame into a still image data URI, mirrored to match
// the live preview with any configured filters baked in.
type Snapshotter interface {
	Snapshot(f Frame) (string, error)
}

// OverlaySink receives the composited guidance layer for a frame.
type OverlaySink func(seq uint64, layer *image.RGBA)

// Controller is the synchronous capture core: quality, pose, state machine,
// sequencer and overlay for one ordered step list. It is not safe for
// concurrent use; Session drives it from a single goroutine.
type Controller struct {
	cfg        Config
	machine    Machine
	monitor    *QualityMonitor
	compositor *Compositor
	seq        *Sequencer
	state      State

	detector  LandmarkDetector
	degraded  bool
	segmenter Segmenter
	limiter   *rate.Limiter
	lastMask  *facemesh.Mask

	snap    Snapshotter
	overlay OverlaySink
	newID   func() string
	now     func() time.Time
	logger  *slog.Logger
}

// ControllerOptions carries the collaborators of a Controller.
type ControllerOptions struct {
	Detector    LandmarkDetector
	Degraded    bool // detector unavailable: face steps run as manual
	Segmenter   Segmenter
	Snapshotter Snapshotter
	Overlay     OverlaySink
	NewID       func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewController creates a controller positioned at the first step.
func NewController(cfg Config, steps []Step, opts ControllerOptions) (*Controller, error) {
	if err := cfg.validateErr(); err != nil {
		return nil, err
	}
	if opts.Snapshotter == nil {
		return nil, ErrNoSnapshotter
	}
	seq, err := NewSequencer(steps)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		cfg:        cfg,
		machine:    NewMachine(cfg.Machine),
		monitor:    NewQualityMonitor(cfg.Quality),
		compositor: NewCompositor(cfg.Overlay),
		seq:        seq,
		detector:   opts.Detector,
		degraded:   opts.Degraded,
		segmenter:  opts.Segmenter,
		snap:       opts.Snapshotter,
		overlay:    opts.Overlay,
		newID:      opts.NewID,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	c.state = c.machine.Initial()

	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "scan.controller")

	if cfg.Overlay.Enabled && c.segmenter != nil {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Overlay.SegmentPerSec), 1)
	}
	return c, nil
}

// State returns the machine state of the current step.
func (c *Controller) State() State { return c.state }

// StepIndex returns the index of the step awaiting capture.
func (c *Controller) StepIndex() int { return c.seq.Index() }

// Done reports whether every step has been captured.
func (c *Controller) Done() bool { return c.seq.Done() }

// Photos returns the photos accepted so far.
func (c *Controller) Photos() []CapturedPhoto { return c.seq.Photos() }

// Steps returns the configured steps.
func (c *Controller) Steps() []Step { return c.seq.Steps() }

// Degraded reports whether face steps are running without a detector.
func (c *Controller) Degraded() bool { return c.degraded }

// HandleFrame runs one frame through quality, pose, the state machine and
// (when due) capture. It never returns an error: per-frame failures reset
// or skip state locally. The returned updates are in emission order; done
// is true once the final step has been captured.
func (c *Controller) HandleFrame(f Frame) ([]Update, bool) {
	step, ok := c.seq.Current()
	if !ok {
		return nil, true
	}

	img := f.Image
	if img == nil {
		if len(f.JPEG) == 0 {
			debug.FrameLog("frame %d: no image data\n", f.Seq)
			return nil, false
		}
		decoded, _, err := image.Decode(bytes.NewReader(f.JPEG))
		if err != nil {
			c.logger.Debug("frame decode failed", "seq", f.Seq, "error", err)
			return nil, false
		}
		img = decoded
		f.Image = decoded
	}

	lm, detected := c.detect(f, img)

	var posePtr *Pose
	pose, poseOK := Pose{}, false
	if lm != nil {
		pose, poseOK = EstimatePose(lm, c.cfg.Pose)
		if poseOK {
			posePtr = &pose
		}
	}

	quality := c.monitor.Evaluate(img, lm != nil, posePtr)
	obs := Observation{Quality: quality, Pose: pose, PoseKnown: poseOK}

	// Without any detection a face step can only be judged on lighting.
	effective := step
	degraded := !detected && !step.Manual()
	if degraded {
		effective.Guide = GuideManual
		effective.Target = nil
	}

	next, decision := c.machine.Advance(c.state, effective, obs)
	c.state = next

	c.composeOverlay(f.Seq, img, lm)

	if posePtr != nil {
		debug.FrameLog("frame %d [%s] yaw=%.1f pitch=%.1f roll=%.1f light=%s → %s %d%%\n",
			f.Seq, step.ID, pose.Yaw, pose.Pitch, pose.Roll, quality.Lighting, next.Status, next.Progress)
	}

	updates := []Update{c.update(UpdateFrame, f.Seq, step, posePtr, quality, degraded)}

	if decision != DecisionCapture {
		return updates, false
	}

	if err := c.machine.Validate(effective, obs); err != nil {
		c.state = c.machine.Reject(c.state)
		u := c.update(UpdateRejected, f.Seq, step, posePtr, quality, degraded)
		if re, ok := err.(*RejectError); ok {
			u.Hint = re.Hint
		}
		c.logger.Info("capture rejected", "step", step.ID, "error", err)
		return append(updates, u), false
	}

	c.state.Status = StatusCapturing
	photo, err := c.capture(f, step)
	if err != nil {
		c.state = c.machine.Reject(c.state)
		u := c.update(UpdateRejected, f.Seq, step, posePtr, quality, degraded)
		u.Hint = HintHoldStill
		u.Error = err.Error()
		c.logger.Warn("capture failed", "step", step.ID, "error", err)
		return append(updates, u), false
	}

	// Built before Accept so StepIndex still names the captured step.
	captured := c.update(UpdateCaptured, f.Seq, step, posePtr, quality, degraded)
	captured.Photo = &photo

	complete, err := c.seq.Accept(photo)
	if err != nil {
		c.state = c.machine.Reject(c.state)
		c.logger.Error("sequencer refused photo", "step", step.ID, "error", err)
		return updates, false
	}

	updates = append(updates, captured)
	c.logger.Info("step captured", "step", step.ID, "index", captured.StepIndex)

	if complete {
		photos := c.seq.Photos()
		updates = append(updates, Update{
			Kind:      UpdateComplete,
			Seq:       f.Seq,
			StepIndex: c.seq.Index(),
			Progress:  100,
			Photos:    photos,
		})
		return updates, true
	}

	c.state = c.machine.Initial()
	return updates, false
}

// detect returns the frame's landmarks and whether any detection result is
// available for this frame. Detector errors count as "no face".
func (c *Controller) detect(f Frame, img image.Image) (*facemesh.Landmarks, bool) {
	if f.DetectionIncluded {
		return f.Landmarks, true
	}
	if c.detector == nil || c.degraded {
		return nil, false
	}
	lm, err := c.detector.DetectLandmarks(img)
	if err != nil {
		debug.FrameLog("frame %d: detector error: %v\n", f.Seq, err)
		return nil, true
	}
	return lm, true
}

func (c *Controller) capture(f Frame, step Step) (CapturedPhoto, error) {
	preview, err := c.snap.Snapshot(f)
	if err != nil {
		return CapturedPhoto{}, fmt.Errorf("snapshot: %w", err)
	}
	if preview == "" {
		return CapturedPhoto{}, fmt.Errorf("snapshot: empty image")
	}
	return CapturedPhoto{
		ID:         c.newID(),
		Preview:    preview,
		Type:       step.ID,
		CapturedAt: c.now(),
	}, nil
}

// composeOverlay refreshes the segmentation mask at the configured rate
// and draws the guidance layer. Any failure, including a panic in a
// collaborator, is logged and dropped.
func (c *Controller) composeOverlay(seq uint64, img image.Image, lm *facemesh.Landmarks) {
	if c.limiter == nil || c.overlay == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("overlay panicked", "seq", seq, "panic", r)
		}
	}()

	if c.limiter.Allow() {
		mask, err := c.segmenter.Segment(img)
		if err != nil {
			debug.FrameLog("frame %d: segmentation error: %v\n", seq, err)
		} else if mask != nil {
			c.lastMask = mask
		}
	}
	if c.lastMask == nil {
		return
	}

	layer := image.NewRGBA(img.Bounds())
	if err := c.compositor.Compose(layer, c.lastMask, lm); err != nil {
		debug.FrameLog("frame %d: overlay error: %v\n", seq, err)
		return
	}
	c.overlay(seq, layer)
}

func (c *Controller) update(kind UpdateKind, seq uint64, step Step, pose *Pose, q QualitySignal, degraded bool) Update {
	return Update{
		Kind:      kind,
		Seq:       seq,
		StepIndex: c.seq.Index(),
		StepID:    step.ID,
		Status:    c.state.Status,
		Progress:  c.state.Progress,
		Pose:      pose,
		Quality:   q,
		Degraded:  degraded,
	}
}
