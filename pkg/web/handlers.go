package web

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-scalpscan/pkg/analysis"
	"github.com/teslashibe/go-scalpscan/pkg/camera"
	"github.com/teslashibe/go-scalpscan/pkg/hub"
	"github.com/teslashibe/go-scalpscan/pkg/intake"
	"github.com/teslashibe/go-scalpscan/pkg/report"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

const analysisTimeout = 3 * time.Minute

// handleError renders errors as {"error": "..."} with a mapped status.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	var re *scan.RejectError
	var apiErr *analysis.APIError
	var se *scan.SetupError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, errSessionNotFound), errors.Is(err, report.ErrNotFound), errors.Is(err, intake.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errModeConflict), errors.Is(err, errNotComplete),
		errors.Is(err, scan.ErrWrongStep), errors.Is(err, scan.ErrDuplicatePhoto),
		errors.Is(err, scan.ErrSequenceComplete), errors.Is(err, scan.ErrAlreadyStarted),
		errors.Is(err, scan.ErrCancelled):
		return fiber.StatusConflict
	case errors.Is(err, report.ErrLocked):
		return fiber.StatusForbidden
	case errors.Is(err, intake.ErrInvalidPatient), errors.As(err, &re):
		return fiber.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.IsRateLimited():
		return fiber.StatusTooManyRequests
	case errors.As(err, &se):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"profile":   s.profile.Name,
		"analysis":  s.deps.Analyzer != nil,
		"leads":     s.deps.Leads != nil,
		"camera":    s.deps.Camera != nil,
		"dashboard": s.events.ClientCount(),
	})
}

func (s *Server) handleSteps(c *fiber.Ctx) error {
	return c.JSON(s.profile.Steps)
}

// CreateSessionRequest selects a subset of the profile's steps.
type CreateSessionRequest struct {
	Steps []string `json:"steps"`
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	steps, err := scan.SelectSteps(s.profile.Steps, req.Steps)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := scan.ValidateSteps(steps); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	e, err := s.sessions.create(steps)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	s.logger.Info("session created", "session_id", e.id, "steps", len(steps))
	return c.Status(fiber.StatusCreated).JSON(e.info())
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	e, err := s.sessions.get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(e.info())
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	e, err := s.sessions.get(c.Params("id"))
	if err != nil {
		return err
	}
	e.cancel()
	s.sessions.remove(e.id)
	s.events.Publish(hub.EventSessionEnded, e.id, fiber.Map{"reason": "deleted"})
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleGetPhotos(c *fiber.Ctx) error {
	e, err := s.sessions.get(c.Params("id"))
	if err != nil {
		return err
	}
	photos, err := e.result()
	if err != nil {
		return err
	}
	return c.JSON(photos)
}

// handleUploadPhoto accepts a still for one step, as a multipart "photo"
// field or a raw image body. Uploads go through the same ordering checks as
// live capture.
func (s *Server) handleUploadPhoto(c *fiber.Ctx) error {
	e, err := s.sessions.get(c.Params("id"))
	if err != nil {
		return err
	}
	if err := e.claim(modeUpload); err != nil {
		return err
	}

	data, err := uploadedImage(c)
	if err != nil {
		return err
	}
	mimeType := http.DetectContentType(data)
	if mimeType != "image/jpeg" && mimeType != "image/png" {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, "photo must be JPEG or PNG")
	}

	for _, st := range e.steps {
		if st.ID != c.Params("step") || !st.RejectFace {
			continue
		}
		faced, err := s.faceInUpload(c.UserContext(), data)
		if err != nil {
			return err
		}
		if faced {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": "face visible in back-of-head photo",
				"hint":  scan.HintTurnAround,
			})
		}
	}

	photo, done, err := e.upload(c.Params("step"), scan.EncodeDataURI(mimeType, data), time.Now().UTC())
	if err != nil {
		return err
	}

	s.events.Publish(hub.EventSessionUpdate, e.id, fiber.Map{"kind": scan.UpdateCaptured, "step_id": photo.Type})
	if done {
		s.events.Publish(hub.EventSessionEnded, e.id, fiber.Map{"reason": "complete"})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"photo":    photo,
		"complete": done,
		"session":  e.info(),
	})
}

// faceInUpload runs the landmark detector once over an uploaded still.
// Without a detector nothing can be checked; a detector that fails to load
// is tolerated only when the profile degrades face checks.
func (s *Server) faceInUpload(ctx context.Context, data []byte) (bool, error) {
	if s.deps.LoadDetector == nil {
		return false, nil
	}
	det, err := s.deps.LoadDetector(ctx)
	if err != nil {
		if s.profile.Config.DegradeOnDetectorFailure {
			s.logger.Warn("detector unavailable, upload not checked for faces", "error", err)
			return false, nil
		}
		return false, &scan.SetupError{Resource: "detector", Err: err}
	}
	if cl, ok := det.(io.Closer); ok {
		defer cl.Close()
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return false, fiber.NewError(fiber.StatusBadRequest, "photo could not be decoded")
	}
	lm, err := det.DetectLandmarks(img)
	if err != nil {
		return false, err
	}
	return lm != nil, nil
}

func uploadedImage(c *fiber.Ctx) ([]byte, error) {
	if fh, err := c.FormFile("photo"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	body := c.Body()
	if len(body) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "no photo in request")
	}
	return bytes.Clone(body), nil
}

// AnalyzeRequest carries optional patient context for analysis.
type AnalyzeRequest struct {
	Subject *analysis.Subject `json:"subject"`
}

func (s *Server) handleAnalyze(c *fiber.Ctx) error {
	if s.deps.Analyzer == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "analysis is not configured")
	}
	e, err := s.sessions.get(c.Params("id"))
	if err != nil {
		return err
	}
	photos, err := e.result()
	if err != nil {
		return err
	}
	var req AnalyzeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), analysisTimeout)
	defer cancel()
	result, err := s.deps.Analyzer.Analyze(ctx, &analysis.Request{Photos: photos, Subject: req.Subject})
	if err != nil {
		return err
	}

	r := report.New(e.id, photos, result)
	s.deps.Reports.Save(r)
	e.mu.Lock()
	e.reportID = r.ID
	e.mu.Unlock()

	s.events.Publish(hub.EventAnalysisReady, e.id, fiber.Map{"report_id": r.ID, "norwood_stage": result.NorwoodStage})
	s.logger.Info("analysis complete", "session_id", e.id, "report_id", r.ID, "provider", result.Provider)
	return c.Status(fiber.StatusCreated).JSON(r.View())
}

// CreateLeadRequest submits the intake form.
type CreateLeadRequest struct {
	Patient   intake.Patient `json:"patient"`
	SessionID string         `json:"session_id"`
	ReportID  string         `json:"report_id"`
}

func (s *Server) handleCreateLead(c *fiber.Ctx) error {
	if s.deps.Leads == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "lead capture is not configured")
	}
	var req CreateLeadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.ReportID != "" {
		if _, err := s.deps.Reports.Get(req.ReportID); err != nil {
			return err
		}
	}

	lead, err := s.deps.Leads.Submit(c.UserContext(), req.Patient, req.SessionID, req.ReportID)
	if err != nil {
		return err
	}

	resp := fiber.Map{"lead_id": lead.ID, "forwarded": lead.Forwarded}
	if req.ReportID != "" {
		if err := s.deps.Reports.Unlock(req.ReportID, lead.ID); err != nil {
			return err
		}
		r, err := s.deps.Reports.Get(req.ReportID)
		if err != nil {
			return err
		}
		resp["report"] = r.View()
	}

	s.events.Publish(hub.EventLeadCreated, req.SessionID, fiber.Map{"lead_id": lead.ID})
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) handleGetReport(c *fiber.Ctx) error {
	r, err := s.deps.Reports.Get(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(r.View())
}

func (s *Server) handleReportPDF(c *fiber.Ctx) error {
	return s.exportReport(c, "application/pdf", "pdf", report.WritePDF)
}

func (s *Server) handleReportYAML(c *fiber.Ctx) error {
	return s.exportReport(c, "application/yaml", "yaml", report.WriteYAML)
}

func (s *Server) exportReport(c *fiber.Ctx, contentType, ext string, write func(io.Writer, *report.Report) error) error {
	r, err := s.deps.Reports.Get(c.Params("id"))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := write(&buf, r); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Attachment("scalp-report-" + r.ID + "." + ext)
	return c.Send(buf.Bytes())
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "no local camera")
	}
	return c.JSON(fiber.Map{
		"config":       s.deps.Camera.GetConfigJSON(),
		"capabilities": camera.Capabilities(),
	})
}

func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.deps.Camera == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "no local camera")
	}
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.deps.Camera.UpdateConfig(params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(s.deps.Camera.GetConfigJSON())
}
