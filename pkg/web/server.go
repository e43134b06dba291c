// Package web serves the scan API, the scan frame websocket and the
// dashboard event stream.
package web

import (
	"context"
	"log/slog"
	"net"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fws "github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-scalpscan/pkg/analysis"
	"github.com/teslashibe/go-scalpscan/pkg/camera"
	"github.com/teslashibe/go-scalpscan/pkg/hub"
	"github.com/teslashibe/go-scalpscan/pkg/intake"
	"github.com/teslashibe/go-scalpscan/pkg/report"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

// Config configures the server.
type Config struct {
	Port        string
	StaticDir   string // Served at / when set
	Profile     scan.Profile
	MaxSessions int
	BodyLimit   int // Bytes; bounds photo uploads
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:        "8080",
		Profile:     scan.DefaultProfile(),
		MaxSessions: 256,
		BodyLimit:   16 * 1024 * 1024,
	}
}

// Deps are the server's collaborators. Snapshotter is required; the others
// disable their routes' functionality when nil.
type Deps struct {
	Snapshotter   scan.Snapshotter
	LoadDetector  func(ctx context.Context) (scan.LandmarkDetector, error)
	LoadSegmenter func(ctx context.Context) (scan.Segmenter, error)

	Analyzer analysis.Provider
	Leads    *intake.Recorder
	Reports  *report.MemoryStore
	Camera   *camera.Manager

	Logger *slog.Logger
}

// Server is the scan web server
type Server struct {
	app     *fiber.App
	cfg     Config
	profile scan.Profile
	deps    Deps
	logger  *slog.Logger

	sessions *registry
	events   *hub.Hub
}

// NewServer creates a new web server
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Snapshotter == nil {
		if deps.Camera != nil {
			deps.Snapshotter = camera.NewSnapshotter(deps.Camera)
		} else {
			deps.Snapshotter = scan.ImageSnapshotter{Mirror: true}
		}
	}
	if deps.Reports == nil {
		deps.Reports = report.NewMemoryStore()
	}
	if len(cfg.Profile.Steps) == 0 {
		cfg.Profile = scan.DefaultProfile()
	}

	s := &Server{
		cfg:      cfg,
		profile:  cfg.Profile,
		deps:     deps,
		logger:   deps.Logger.With("component", "web"),
		sessions: newRegistry(cfg.MaxSessions),
		events:   hub.New("events", deps.Logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "scalpscan",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/steps", s.handleSteps)

	api.Post("/sessions", s.handleCreateSession)
	api.Get("/sessions/:id", s.handleGetSession)
	api.Delete("/sessions/:id", s.handleDeleteSession)
	api.Get("/sessions/:id/photos", s.handleGetPhotos)
	api.Post("/sessions/:id/photos/:step", s.handleUploadPhoto)
	api.Post("/sessions/:id/analysis", s.handleAnalyze)

	api.Post("/leads", s.handleCreateLead)

	api.Get("/reports/:id", s.handleGetReport)
	api.Get("/reports/:id/pdf", s.handleReportPDF)
	api.Get("/reports/:id/yaml", s.handleReportYAML)

	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleUpdateCamera)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/scan/:id", websocket.New(s.handleScanWS, websocket.Config{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
	}))
	app.Get("/ws/events", fws.New(s.handleEventsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Events returns the dashboard event hub.
func (s *Server) Events() *hub.Hub {
	return s.events
}

// Run serves on the configured port until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.cfg.Port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then cancels running sessions and
// shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.events.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.sessions.cancelAll()
	if err := s.app.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}
