// Package webcam captures frames from a local camera with OpenCV.
package webcam

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-scalpscan/pkg/camera"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

// Device is a scan.FrameSource backed by an OpenCV VideoCapture.
type Device struct {
	manager *camera.Manager
	leases  *camera.Leases
	owner   string
	logger  *slog.Logger

	mu      sync.Mutex
	capture *gocv.VideoCapture
	release func()
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewDevice creates a device for the manager's current config. owner
// identifies the session in the lease registry; leases may be nil.
func NewDevice(manager *camera.Manager, leases *camera.Leases, owner string, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		manager: manager,
		leases:  leases,
		owner:   owner,
		logger:  logger.With("component", "webcam"),
	}
}

// Open claims the camera and starts the capture loop.
func (d *Device) Open(ctx context.Context) (<-chan scan.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.capture != nil {
		return nil, fmt.Errorf("webcam: already open")
	}

	cfg := d.manager.GetConfig()
	name := "cam" + strconv.Itoa(cfg.Device)

	release := func() {}
	if d.leases != nil {
		r, err := d.leases.Acquire(name, d.owner)
		if err != nil {
			return nil, err
		}
		release = r
	}

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		release()
		return nil, fmt.Errorf("webcam: open device %d: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		release()
		return nil, fmt.Errorf("webcam: device %d not available", cfg.Device)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	runCtx, cancel := context.WithCancel(ctx)
	d.capture = vc
	d.release = release
	d.stop = cancel

	frames := make(chan scan.Frame, 2)
	d.wg.Add(1)
	go d.loop(runCtx, vc, frames)

	d.logger.Info("camera opened", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height)
	return frames, nil
}

func (d *Device) loop(ctx context.Context, vc *gocv.VideoCapture, frames chan<- scan.Frame) {
	defer d.wg.Done()
	defer close(frames)

	mat := gocv.NewMat()
	defer mat.Close()

	var seq uint64
	misses := 0
	for ctx.Err() == nil {
		if ok := vc.Read(&mat); !ok || mat.Empty() {
			misses++
			if misses > 50 {
				d.logger.Warn("camera stopped delivering frames")
				return
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}
		misses = 0

		img, err := mat.ToImage()
		if err != nil {
			continue
		}
		seq++

		f := scan.Frame{Seq: seq, Timestamp: time.Now(), Image: img}
		select {
		case frames <- f:
		case <-ctx.Done():
			return
		default:
			// Consumer is behind; drop rather than queue stale frames.
		}
	}
}

// Close stops the capture loop and releases the camera. It is idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	stop, vc, release := d.stop, d.capture, d.release
	d.stop, d.capture, d.release = nil, nil, nil
	d.mu.Unlock()

	if vc == nil {
		return nil
	}
	stop()
	d.wg.Wait()
	err := vc.Close()
	release()
	d.logger.Info("camera closed")
	return err
}
