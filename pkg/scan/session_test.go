package scan

import (
	"context"
	"errors"
	"testing"
	"time"
)

type chanSource struct {
	frames  chan Frame
	openErr error
	closed  int
}

func (s *chanSource) Open(context.Context) (<-chan Frame, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.frames, nil
}

func (s *chanSource) Close() error {
	s.closed++
	return nil
}

func drain(t *testing.T, updates <-chan Update) []Update {
	t.Helper()
	var out []Update
	timeout := time.After(5 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return out
			}
			out = append(out, u)
		case <-timeout:
			t.Fatal("timed out waiting for updates to close")
		}
	}
}

func TestSession_CompletesAndDelivers(t *testing.T) {
	frames := make(chan Frame, 100)
	s := New(DefaultConfig(), Deps{Snapshotter: &fakeSnapshotter{}})

	updates, err := s.Start(context.Background(), sessionSteps(), frames)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() {
		seq := uint64(0)
		send := func(f Frame, n int) {
			for i := 0; i < n; i++ {
				seq++
				f.Seq = seq
				frames <- f
			}
		}
		send(poseFrame(0, Pose{}), 13)
		send(poseFrame(0, Pose{Yaw: -40}), 13)
		send(poseFrame(0, Pose{Yaw: 40}), 13)
		send(noFaceFrame(0, 128), 13)
	}()

	all := drain(t, updates)
	last := all[len(all)-1]
	if last.Kind != UpdateComplete {
		t.Fatalf("Expected complete, got %s", last.Kind)
	}
	terminal := 0
	for _, u := range all {
		if u.Terminal() {
			terminal++
		}
	}
	if terminal != 1 {
		t.Errorf("Expected exactly one terminal update, got %d", terminal)
	}

	photos, err := s.Result(context.Background())
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if err := VerifySequence(sessionSteps(), photos); err != nil {
		t.Errorf("VerifySequence: %v", err)
	}
}

func TestSession_CancelDiscardsPhotos(t *testing.T) {
	frames := make(chan Frame, 100)
	det := &fakeDetector{}
	src := &chanSource{frames: frames}
	s := New(DefaultConfig(), Deps{
		Source:       src,
		Snapshotter:  &fakeSnapshotter{},
		LoadDetector: func(context.Context) (LandmarkDetector, error) { return det, nil },
	})

	updates, err := s.Start(context.Background(), sessionSteps(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 1; i <= 13; i++ {
		frames <- poseFrame(uint64(i), Pose{})
	}

	// Wait for the front capture before cancelling.
	deadline := time.Now().Add(5 * time.Second)
	for {
		idx, _ := s.Snapshot()
		if idx == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("front step never captured")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Cancel()
	all := drain(t, updates)
	if last := all[len(all)-1]; last.Kind != UpdateCancelled {
		t.Errorf("Expected cancelled, got %s", last.Kind)
	}

	photos, err := s.Result(context.Background())
	if !errors.Is(err, ErrCancelled) || photos != nil {
		t.Errorf("Expected ErrCancelled with no photos, got %v %v", photos, err)
	}
	if src.closed != 1 || det.closed != 1 {
		t.Errorf("Expected resources released once, source=%d detector=%d", src.closed, det.closed)
	}

	s.Cancel()
	if src.closed != 1 {
		t.Error("Expected second cancel to be a no-op")
	}
}

func TestSession_StreamEndsEarly(t *testing.T) {
	frames := make(chan Frame)
	s := New(DefaultConfig(), Deps{Snapshotter: &fakeSnapshotter{}})

	updates, err := s.Start(context.Background(), sessionSteps(), frames)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	close(frames)

	all := drain(t, updates)
	if last := all[len(all)-1]; last.Kind != UpdateError {
		t.Errorf("Expected error update, got %s", last.Kind)
	}
	if _, err := s.Result(context.Background()); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Expected ErrIncomplete, got %v", err)
	}
}

func TestSession_SetupFailures(t *testing.T) {
	t.Run("camera", func(t *testing.T) {
		src := &chanSource{openErr: errors.New("permission denied")}
		s := New(DefaultConfig(), Deps{Source: src, Snapshotter: &fakeSnapshotter{}})

		_, err := s.Start(context.Background(), sessionSteps(), nil)
		var se *SetupError
		if !errors.As(err, &se) || se.Resource != "camera" {
			t.Fatalf("Expected camera SetupError, got %v", err)
		}
		if src.closed != 0 {
			t.Error("Expected unopened source not to be closed")
		}
	})

	t.Run("detector strict", func(t *testing.T) {
		src := &chanSource{frames: make(chan Frame)}
		s := New(StrictConfig(), Deps{
			Source:       src,
			Snapshotter:  &fakeSnapshotter{},
			LoadDetector: func(context.Context) (LandmarkDetector, error) { return nil, errors.New("model missing") },
		})

		_, err := s.Start(context.Background(), sessionSteps(), nil)
		var se *SetupError
		if !errors.As(err, &se) || se.Resource != "detector" {
			t.Fatalf("Expected detector SetupError, got %v", err)
		}
		if src.closed != 1 {
			t.Errorf("Expected source released on setup failure, closed=%d", src.closed)
		}
		if _, err := s.Result(context.Background()); err == nil {
			t.Error("Expected Result to report the setup failure")
		}
	})

	t.Run("detector degraded", func(t *testing.T) {
		frames := make(chan Frame)
		s := New(DefaultConfig(), Deps{
			Snapshotter:  &fakeSnapshotter{},
			LoadDetector: func(context.Context) (LandmarkDetector, error) { return nil, errors.New("model missing") },
		})

		updates, err := s.Start(context.Background(), sessionSteps(), frames)
		if err != nil {
			t.Fatalf("Expected degraded start, got %v", err)
		}
		if !s.Degraded() {
			t.Error("Expected session to be degraded")
		}
		s.Cancel()
		drain(t, updates)
	})

	t.Run("segmenter", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Overlay.Enabled = true
		frames := make(chan Frame)
		s := New(cfg, Deps{
			Snapshotter:   &fakeSnapshotter{},
			LoadSegmenter: func(context.Context) (Segmenter, error) { return nil, errors.New("no model") },
		})

		updates, err := s.Start(context.Background(), sessionSteps(), frames)
		if err != nil {
			t.Fatalf("Expected segmenter failure to be non-fatal, got %v", err)
		}
		s.Cancel()
		drain(t, updates)
	})
}

func TestSession_StartTwice(t *testing.T) {
	frames := make(chan Frame)
	s := New(DefaultConfig(), Deps{Snapshotter: &fakeSnapshotter{}})

	updates, err := s.Start(context.Background(), sessionSteps(), frames)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Start(context.Background(), sessionSteps(), frames); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Expected ErrAlreadyStarted, got %v", err)
	}
	s.Cancel()
	drain(t, updates)
}

func TestSession_CancelBeforeStart(t *testing.T) {
	s := New(DefaultConfig(), Deps{Snapshotter: &fakeSnapshotter{}})
	s.Cancel()

	if _, err := s.Start(context.Background(), sessionSteps(), make(chan Frame)); !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled, got %v", err)
	}
}

func TestSession_ParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(DefaultConfig(), Deps{Snapshotter: &fakeSnapshotter{}})

	updates, err := s.Start(ctx, sessionSteps(), make(chan Frame))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	drain(t, updates)

	if _, err := s.Result(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled, got %v", err)
	}
}

func TestSession_CancelWhileBlockedOnUpdates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Machine.Increment = 100
	cfg.UpdateBuffer = 0
	steps := []Step{{ID: "top", Label: "Top", Guide: GuideManual}}

	frames := make(chan Frame, 1)
	s := New(cfg, Deps{Snapshotter: &fakeSnapshotter{}})
	updates, err := s.Start(context.Background(), steps, frames)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// The frame completes the only step, but nobody reads the updates yet.
	frames <- noFaceFrame(1, 128)
	time.Sleep(100 * time.Millisecond)
	s.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	photos, err := s.Result(ctx)
	if !errors.Is(err, ErrCancelled) || photos != nil {
		t.Fatalf("Expected ErrCancelled with no photos, got %d photos, err %v", len(photos), err)
	}

	all := drain(t, updates)
	for _, u := range all {
		if u.Kind == UpdateComplete {
			t.Error("Cancelled session must not emit complete")
		}
	}
	if len(all) == 0 || all[len(all)-1].Kind != UpdateCancelled {
		t.Errorf("Expected a final cancelled update, got %v", all)
	}
}
