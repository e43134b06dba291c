package camera

import "github.com/teslashibe/go-scalpscan/pkg/scan"

// Snapshotter renders stills from frames streamed by browsers without
// native image libraries. It reads the manager's settings on every
// call, so updates through the camera API apply to the next capture.
type Snapshotter struct {
	manager *Manager
}

// NewSnapshotter creates a snapshotter backed by manager.
func NewSnapshotter(manager *Manager) *Snapshotter {
	return &Snapshotter{manager: manager}
}

// Snapshot implements scan.Snapshotter.
func (s *Snapshotter) Snapshot(f scan.Frame) (string, error) {
	cfg := s.manager.GetConfig()
	return scan.ImageSnapshotter{
		Mirror:     cfg.Mirror,
		Quality:    cfg.Quality,
		Brightness: cfg.Brightness,
		Contrast:   cfg.Contrast,
	}.Snapshot(f)
}
