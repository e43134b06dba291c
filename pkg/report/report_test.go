package report

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-scalpscan/pkg/analysis"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

func testJPEG(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 90, B: 70, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return scan.EncodeDataURI("image/jpeg", buf.Bytes())
}

func testReport(t *testing.T) *Report {
	t.Helper()
	uri := testJPEG(t)
	photos := []scan.CapturedPhoto{
		{ID: "p1", Type: "front", Preview: uri},
		{ID: "p2", Type: "left", Preview: uri},
		{ID: "p3", Type: "right", Preview: uri},
		{ID: "p4", Type: "back", Preview: uri},
	}
	return New("sess-1", photos, &analysis.Result{
		NorwoodStage:    4,
		Scores:          map[string]int{"hairline": 40, "crown": 30, "donor": 80},
		Density:         analysis.DensityMedium,
		EstimatedGrafts: 2800,
		Recommendations: []string{"Consultation"},
		Summary:         "Recession at the hairline and crown thinning.",
		Confidence:      0.7,
	})
}

func TestViewGated(t *testing.T) {
	r := testReport(t)

	v := r.View()
	if !v.Locked {
		t.Error("new report should be locked")
	}
	if v.NorwoodStage != 4 || len(v.Photos) != 4 {
		t.Errorf("locked view should expose stage and photo list, got %+v", v)
	}
	if v.Analysis != nil || len(v.Previews) != 0 {
		t.Error("locked view must not expose analysis details or images")
	}

	r.Unlock("lead-1")
	v = r.View()
	if v.Locked || v.Analysis == nil || len(v.Previews) != 4 {
		t.Errorf("unlocked view should expose details, got %+v", v)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	r := testReport(t)
	s.Save(r)

	if err := s.Unlock(r.ID, "lead-7"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	got, err := s.Get(r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Unlocked || got.LeadID != "lead-7" {
		t.Errorf("expected unlocked report, got %+v", got)
	}
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Unlock("nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExportLocked(t *testing.T) {
	r := testReport(t)
	var buf bytes.Buffer
	if err := WriteYAML(&buf, r); !errors.Is(err, ErrLocked) {
		t.Errorf("WriteYAML: expected ErrLocked, got %v", err)
	}
	if err := WritePDF(&buf, r); !errors.Is(err, ErrLocked) {
		t.Errorf("WritePDF: expected ErrLocked, got %v", err)
	}
}

func TestWriteYAML(t *testing.T) {
	r := testReport(t)
	r.Unlock("lead-1")

	var buf bytes.Buffer
	if err := WriteYAML(&buf, r); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	if strings.Contains(buf.String(), "base64") {
		t.Error("YAML export must not embed image data")
	}

	var doc struct {
		Report struct {
			Analysis struct {
				NorwoodStage int `yaml:"norwood_stage"`
			} `yaml:"analysis"`
		} `yaml:"report"`
		Photos []PhotoRef `yaml:"photos"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if doc.Report.Analysis.NorwoodStage != 4 || len(doc.Photos) != 4 || doc.Photos[3].Type != "back" {
		t.Errorf("unexpected YAML document %+v", doc)
	}
}

func TestWritePDF(t *testing.T) {
	r := testReport(t)
	r.Unlock("lead-1")

	var buf bytes.Buffer
	if err := WritePDF(&buf, r); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}

	r.Photos[0].Preview = "data:image/jpeg;base64,%%%"
	if err := WritePDF(&buf, r); err == nil {
		t.Error("expected error for undecodable photo")
	}
}
