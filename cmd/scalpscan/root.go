package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-scalpscan/internal/config"
	"github.com/teslashibe/go-scalpscan/internal/log"
	"github.com/teslashibe/go-scalpscan/pkg/analysis"
	"github.com/teslashibe/go-scalpscan/pkg/debug"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
	"github.com/teslashibe/go-scalpscan/pkg/vision"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logLevel     string
	profile      string
	faceModel    string
	segmentModel string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "scalpscan",
		Short: "Pose-guided scalp photo capture for hair-loss assessment",
		Long: `scalpscan guides a patient through a fixed sequence of head poses,
captures a photo at each one and hands the set to a vision model for a
preliminary hair-loss assessment.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			if debug.Enabled && g.logLevel == "info" {
				g.logLevel = "debug"
			}
			log.Init(g.logLevel)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVar(&debug.Enabled, "debug", false, "Enable debug logging")
	pf.BoolVar(&debug.Frames, "debug-frames", false, "Log pose, lighting and progress for every frame")
	pf.StringVar(&g.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&g.profile, "profile", "", "Scan profile YAML (default: built-in profile)")
	pf.StringVar(&g.faceModel, "face-model", "", "YuNet face model path (env FACE_MODEL_PATH)")
	pf.StringVar(&g.segmentModel, "segment-model", "", "Hair segmentation model path (env SEGMENT_MODEL_PATH)")

	cmd.AddCommand(
		newServeCmd(g),
		newScanCmd(g),
		newAnalyzeCmd(g),
		newLeadsCmd(g),
	)
	return cmd
}

// loadProfile returns the selected profile or the built-in default.
func (g *globalFlags) loadProfile() (scan.Profile, error) {
	if g.profile == "" {
		return scan.DefaultProfile(), nil
	}
	return scan.LoadProfile(g.profile)
}

// visionConfig resolves model paths from flags and environment.
func (g *globalFlags) visionConfig() vision.Config {
	cfg := vision.DefaultConfig()
	cfg.FaceModelPath = config.FaceModelPath()
	cfg.SegmentModelPath = config.SegmentModelPath()
	if g.faceModel != "" {
		cfg.FaceModelPath = g.faceModel
	}
	if g.segmentModel != "" {
		cfg.SegmentModelPath = g.segmentModel
	}
	return cfg
}

// detectorLoader opens a YuNet detector per session.
func detectorLoader(cfg vision.Config) func(context.Context) (scan.LandmarkDetector, error) {
	return func(context.Context) (scan.LandmarkDetector, error) {
		return vision.NewYuNet(cfg)
	}
}

// segmenterLoader opens the hair segmenter per session.
func segmenterLoader(cfg vision.Config) func(context.Context) (scan.Segmenter, error) {
	return func(context.Context) (scan.Segmenter, error) {
		return vision.NewHairSegmenter(cfg)
	}
}

// buildAnalyzer chains every provider with credentials, Gemini first. With
// mock set it returns the offline mock instead.
func buildAnalyzer(ctx context.Context, mock bool) (analysis.Provider, error) {
	if mock {
		return analysis.NewMock(), nil
	}

	logger := log.L()
	var providers []analysis.Provider
	if key := config.GeminiAPIKey(); key != "" {
		p, err := analysis.NewGemini(ctx, analysis.WithAPIKey(key), analysis.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if key := config.OpenAIAPIKey(); key != "" {
		p, err := analysis.NewOpenAI(analysis.WithAPIKey(key), analysis.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no analysis provider: set GEMINI_API_KEY or OPENAI_API_KEY, or use --mock-analysis")
	}
	chain, err := analysis.NewChainWithLogger(logger, providers...)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// writePhotos saves each photo as <dir>/<index>-<type>.<ext>.
func writePhotos(dir string, photos []scan.CapturedPhoto) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var paths []string
	for i, p := range photos {
		mimeType, data, err := scan.DecodeDataURI(p.Preview)
		if err != nil {
			return nil, fmt.Errorf("photo %s: %w", p.Type, err)
		}
		ext := ".jpg"
		if mimeType == "image/png" {
			ext = ".png"
		}
		path := filepath.Join(dir, fmt.Sprintf("%d-%s%s", i+1, p.Type, ext))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
