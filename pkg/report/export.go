package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-scalpscan/pkg/analysis"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

const disclaimer = "This report is a preliminary visual estimate based on photos. " +
	"It is not a medical diagnosis. Book a consultation for a clinical assessment."

// yamlDoc is the YAML export layout.
type yamlDoc struct {
	Report     *Report    `yaml:"report"`
	Photos     []PhotoRef `yaml:"photos"`
	Disclaimer string     `yaml:"disclaimer"`
}

// WriteYAML writes an unlocked report as YAML. Image data is omitted.
func WriteYAML(w io.Writer, r *Report) error {
	if !r.Unlocked {
		return ErrLocked
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(yamlDoc{Report: r, Photos: r.refs(), Disclaimer: disclaimer}); err != nil {
		return fmt.Errorf("report: encode yaml: %w", err)
	}
	return enc.Close()
}

// WritePDF renders an unlocked report as a one-page PDF with the photos.
func WritePDF(w io.Writer, r *Report) error {
	if !r.Unlocked {
		return ErrLocked
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Hair Assessment Report", true)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Hair Assessment Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 5, fmt.Sprintf("Report %s  |  %s", r.ID, r.CreatedAt.Format("2 Jan 2006 15:04 MST")), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	if err := pdfPhotos(pdf, r.Photos); err != nil {
		return err
	}

	if a := r.Analysis; a != nil {
		pdfAnalysis(pdf, a)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(110, 110, 110)
	pdf.MultiCell(0, 4, disclaimer, "", "L", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("report: render pdf: %w", err)
	}
	return nil
}

// pdfPhotos lays the captured photos out in one row.
func pdfPhotos(pdf *fpdf.Fpdf, photos []scan.CapturedPhoto) error {
	if len(photos) == 0 {
		return nil
	}
	const gap = 4.0
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	cellW := (pageW - left - right - gap*float64(len(photos)-1)) / float64(len(photos))
	y := pdf.GetY()

	for i, p := range photos {
		mimeType, data, err := scan.DecodeDataURI(p.Preview)
		if err != nil {
			return fmt.Errorf("report: photo %s: %w", p.Type, err)
		}
		imgType := "JPG"
		if mimeType == "image/png" {
			imgType = "PNG"
		}
		name := "photo-" + p.ID
		opts := fpdf.ImageOptions{ImageType: imgType}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if pdf.Err() {
			return fmt.Errorf("report: photo %s: %w", p.Type, pdf.Error())
		}
		x := left + float64(i)*(cellW+gap)
		pdf.ImageOptions(name, x, y, cellW, 0, false, opts, 0, "")
		pdf.SetXY(x, y+cellW*0.75+1)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(cellW, 4, strings.ToUpper(p.Type), "", 0, "C", false, 0, "")
	}
	pdf.SetXY(left, y+cellW*0.75+8)
	return nil
}

func pdfAnalysis(pdf *fpdf.Fpdf, a *analysis.Result) {
	heading := func(s string) {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
	}

	heading(fmt.Sprintf("Norwood stage %d  |  density %s", a.NorwoodStage, a.Density))
	pdf.MultiCell(0, 5, a.Summary, "", "L", false)

	heading("Regional coverage")
	regions := make([]string, 0, len(a.Scores))
	for k := range a.Scores {
		regions = append(regions, k)
	}
	sort.Strings(regions)
	for _, k := range regions {
		pdf.CellFormat(50, 5, strings.ReplaceAll(k, "_", " "), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("%d / 100", a.Scores[k]), "", 1, "L", false, 0, "")
	}

	if a.DonorQuality != "" || a.EstimatedGrafts > 0 {
		heading("Donor area")
		if a.DonorQuality != "" {
			pdf.MultiCell(0, 5, a.DonorQuality, "", "L", false)
		}
		if a.EstimatedGrafts > 0 {
			pdf.MultiCell(0, 5, fmt.Sprintf("Estimated grafts: %d", a.EstimatedGrafts), "", "L", false)
		}
	}

	if len(a.Recommendations) > 0 {
		heading("Recommendations")
		for _, rec := range a.Recommendations {
			pdf.MultiCell(0, 5, "- "+rec, "", "L", false)
		}
	}
}
