package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-scalpscan/internal/config"
	"github.com/teslashibe/go-scalpscan/internal/log"
	"github.com/teslashibe/go-scalpscan/pkg/analysis"
	"github.com/teslashibe/go-scalpscan/pkg/camera"
	"github.com/teslashibe/go-scalpscan/pkg/camera/webcam"
	"github.com/teslashibe/go-scalpscan/pkg/report"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
	"github.com/teslashibe/go-scalpscan/pkg/scanclient"
)

func newScanCmd(g *globalFlags) *cobra.Command {
	var (
		device       int
		preset       string
		server       string
		steps        []string
		outDir       string
		analyze      bool
		mockAnalysis bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a guided capture from a local camera",
		Long: `Opens a local camera and runs the guided capture. By default frames
are processed in-process with the YuNet detector; with --server they are
streamed to a running scalpscan server instead.`,
		Example: `  # Local capture, photos written to ./scan-out
  scalpscan scan --out scan-out

  # Stream to a remote server and analyze the result
  scalpscan scan --server http://clinic.local:8080 --analyze`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := log.L()

			camCfg := camera.DefaultConfig()
			if preset != "" {
				p := camera.GetPreset(preset)
				if p == nil {
					return fmt.Errorf("unknown camera preset %q (available: %v)", preset, camera.PresetNames())
				}
				camCfg = *p
			}
			camCfg.Device = device
			manager := camera.NewManager(camCfg)
			dev := webcam.NewDevice(manager, camera.NewLeases(), "scalpscan-cli", logger)

			var photos []scan.CapturedPhoto
			var err error
			if server != "" {
				photos, err = scanRemote(ctx, server, steps, dev)
			} else {
				photos, err = scanLocal(ctx, g, steps, manager, dev)
			}
			if err != nil {
				return err
			}

			paths, err := writePhotos(outDir, photos)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}

			if !analyze {
				return nil
			}
			analyzer, err := buildAnalyzer(ctx, mockAnalysis)
			if err != nil {
				return err
			}
			defer analyzer.Close()
			return analyzeAndWrite(ctx, analyzer, photos, nil, outDir)
		},
	}

	cmd.Flags().IntVar(&device, "device", config.CameraDevice(), "Camera device index (env CAMERA_DEVICE)")
	cmd.Flags().StringVar(&preset, "camera-preset", "", "Camera preset: default, legacy, 1080p, lowlight, bright, rear")
	cmd.Flags().StringVar(&server, "server", "", "Stream to a remote scalpscan server instead of processing locally")
	cmd.Flags().StringSliceVar(&steps, "steps", nil, "Restrict the capture to these step IDs")
	cmd.Flags().StringVarP(&outDir, "out", "o", "scan-out", "Directory for captured photos")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Analyze the photos after capture")
	cmd.Flags().BoolVar(&mockAnalysis, "mock-analysis", false, "Use the offline mock analyzer")

	return cmd
}

func scanLocal(ctx context.Context, g *globalFlags, ids []string, manager *camera.Manager, dev *webcam.Device) ([]scan.CapturedPhoto, error) {
	profile, err := g.loadProfile()
	if err != nil {
		return nil, err
	}
	steps, err := scan.SelectSteps(profile.Steps, ids)
	if err != nil {
		return nil, err
	}

	vcfg := g.visionConfig()
	cfg := profile.Config
	// YuNet keypoints sit lower on the face than mesh landmarks.
	cfg.Pose.PitchBias = vcfg.PitchBias

	sess := scan.New(cfg, scan.Deps{
		Source:        dev,
		LoadDetector:  detectorLoader(vcfg),
		LoadSegmenter: segmenterLoader(vcfg),
		Snapshotter:   webcam.NewSnapshotter(manager),
		Logger:        log.L(),
	})
	updates, err := sess.Start(ctx, steps, nil)
	if err != nil {
		return nil, err
	}

	printer := newProgressPrinter(steps)
	for u := range updates {
		printer.Print(u)
	}
	return sess.Result(ctx)
}

func scanRemote(ctx context.Context, server string, ids []string, dev *webcam.Device) ([]scan.CapturedPhoto, error) {
	client := scanclient.New(server, log.L())
	id, err := client.CreateSession(ctx, ids)
	if err != nil {
		return nil, err
	}

	frames, err := dev.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	printer := newProgressPrinter(nil)
	client.OnUpdate = printer.Print
	return client.Stream(ctx, id, frames)
}

// progressPrinter renders updates as one status line per change.
type progressPrinter struct {
	steps []scan.Step
	last  string
}

func newProgressPrinter(steps []scan.Step) *progressPrinter {
	return &progressPrinter{steps: steps}
}

func (p *progressPrinter) Print(u scan.Update) {
	var line string
	switch u.Kind {
	case scan.UpdateFrame:
		line = fmt.Sprintf("[%s] %s %3d%%", u.StepID, u.Status, u.Progress)
		if p.instruction(u.StepID) != "" {
			line += "  " + p.instruction(u.StepID)
		}
		if u.Quality.Lighting != scan.LightingGood && u.Quality.Lighting != "" {
			line += fmt.Sprintf("  (lighting: %s)", u.Quality.Lighting)
		}
		if u.Degraded {
			line += "  (manual)"
		}
	case scan.UpdateRejected:
		line = fmt.Sprintf("[%s] retrying: %s", u.StepID, u.Hint)
	case scan.UpdateCaptured:
		line = fmt.Sprintf("[%s] captured at %s", u.StepID, time.Now().Format("15:04:05"))
	case scan.UpdateComplete:
		line = fmt.Sprintf("complete: %d photos", len(u.Photos))
	case scan.UpdateCancelled, scan.UpdateError:
		line = fmt.Sprintf("stopped: %s", u.Error)
	}
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(os.Stderr, line)
}

func (p *progressPrinter) instruction(stepID string) string {
	for _, s := range p.steps {
		if s.ID == stepID {
			return s.Instruction
		}
	}
	return ""
}

// analyzeAndWrite runs the analyzer and writes report.yaml and report.pdf
// next to the photos.
func analyzeAndWrite(ctx context.Context, analyzer analysis.Provider, photos []scan.CapturedPhoto, subject *analysis.Subject, dir string) error {
	result, err := analyzer.Analyze(ctx, &analysis.Request{Photos: photos, Subject: subject})
	if err != nil {
		return err
	}

	r := report.New("", photos, result)
	r.Unlock("local")

	yf, err := os.Create(filepath.Join(dir, "report.yaml"))
	if err != nil {
		return err
	}
	defer yf.Close()
	if err := report.WriteYAML(yf, r); err != nil {
		return err
	}

	pf, err := os.Create(filepath.Join(dir, "report.pdf"))
	if err != nil {
		return err
	}
	defer pf.Close()
	if err := report.WritePDF(pf, r); err != nil {
		return err
	}

	fmt.Printf("Norwood stage %d, density %s (confidence %.0f%%)\n%s\n",
		result.NorwoodStage, result.Density, result.Confidence*100, result.Summary)
	return nil
}
