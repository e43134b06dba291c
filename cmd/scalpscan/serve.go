package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-scalpscan/internal/config"
	"github.com/teslashibe/go-scalpscan/internal/log"
	"github.com/teslashibe/go-scalpscan/pkg/camera"
	"github.com/teslashibe/go-scalpscan/pkg/intake"
	"github.com/teslashibe/go-scalpscan/pkg/web"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		port         string
		static       string
		leadsPath    string
		mockAnalysis bool
		serverDetect bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scan API and websocket server",
		Long: `Starts the scan server. Browsers create a session, stream frames over
/ws/scan/:id and receive live guidance updates. Completed sessions can be
analyzed, turned into a report and unlocked by submitting the intake form.`,
		Example: `  # Start on the default port with Gemini analysis
  GEMINI_API_KEY=... scalpscan serve

  # Offline demo with the mock analyzer
  scalpscan serve --mock-analysis --static ./web`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := log.L()

			profile, err := g.loadProfile()
			if err != nil {
				return err
			}

			analyzer, err := buildAnalyzer(ctx, mockAnalysis)
			if err != nil {
				logger.Warn("analysis disabled", "error", err)
			}
			if analyzer != nil {
				defer analyzer.Close()
			}

			store, err := intake.NewJSONStore(leadsPath)
			if err != nil {
				return err
			}
			var sinks []intake.Sink
			if url, key := config.Supabase(); url != "" && key != "" {
				sinks = append(sinks, intake.NewSupabaseSink(url, key))
			}

			cfg := web.DefaultConfig()
			cfg.Port = port
			cfg.StaticDir = static
			cfg.Profile = profile

			// Stills from streamed and uploaded frames follow the camera
			// settings exposed at /api/camera.
			manager := camera.NewManager(camera.DefaultConfig())
			deps := web.Deps{
				Snapshotter: camera.NewSnapshotter(manager),
				Analyzer:    analyzer,
				Leads:       intake.NewRecorder(store, logger, sinks...),
				Camera:      manager,
				Logger:      logger,
			}
			if serverDetect {
				vcfg := g.visionConfig()
				deps.LoadDetector = detectorLoader(vcfg)
				deps.LoadSegmenter = segmenterLoader(vcfg)
			}

			logger.Info("scalpscan server starting",
				"port", port,
				"profile", profile.Name,
				"steps", len(profile.Steps),
				"server_detection", serverDetect,
				"lead_sinks", len(sinks),
			)
			return web.NewServer(cfg, deps).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", config.Port(), "Port to listen on (env SCALPSCAN_PORT)")
	cmd.Flags().StringVar(&static, "static", "", "Directory of static files to serve at /")
	cmd.Flags().StringVar(&leadsPath, "leads", config.LeadsPath(), "Lead store JSON file (env LEADS_PATH)")
	cmd.Flags().BoolVar(&mockAnalysis, "mock-analysis", false, "Use the offline mock analyzer")
	cmd.Flags().BoolVar(&serverDetect, "server-detection", true, "Run face detection on frames that arrive without landmarks")

	return cmd
}
