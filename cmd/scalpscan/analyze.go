package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-scalpscan/pkg/analysis"
	"github.com/teslashibe/go-scalpscan/pkg/scan"
)

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	var (
		subjectPath  string
		mockAnalysis bool
	)

	cmd := &cobra.Command{
		Use:   "analyze DIR",
		Short: "Analyze a directory of captured photos",
		Long: `Loads one photo per profile step from DIR and runs the analysis chain.
Files are matched by step ID anywhere in the name, e.g. front.jpg or
2-left.jpg. report.yaml and report.pdf are written into DIR.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := args[0]

			profile, err := g.loadProfile()
			if err != nil {
				return err
			}
			photos, err := loadPhotos(dir, profile.Steps)
			if err != nil {
				return err
			}

			var subject *analysis.Subject
			if subjectPath != "" {
				data, err := os.ReadFile(subjectPath)
				if err != nil {
					return err
				}
				subject = &analysis.Subject{}
				if err := yaml.Unmarshal(data, subject); err != nil {
					return fmt.Errorf("parse subject: %w", err)
				}
			}

			analyzer, err := buildAnalyzer(ctx, mockAnalysis)
			if err != nil {
				return err
			}
			defer analyzer.Close()
			return analyzeAndWrite(ctx, analyzer, photos, subject, dir)
		},
	}

	cmd.Flags().StringVar(&subjectPath, "subject", "", "YAML file with patient context (age, sex, loss_duration, ...)")
	cmd.Flags().BoolVar(&mockAnalysis, "mock-analysis", false, "Use the offline mock analyzer")
	return cmd
}

// loadPhotos finds one image per step in dir, in step order. Steps without
// a file are skipped; the result must still satisfy the step ordering.
func loadPhotos(dir string, steps []scan.Step) ([]scan.CapturedPhoto, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var photos []scan.CapturedPhoto
	var used []scan.Step
	for _, st := range steps {
		for _, e := range entries {
			name := strings.ToLower(e.Name())
			ext := filepath.Ext(name)
			if e.IsDir() || (ext != ".jpg" && ext != ".jpeg" && ext != ".png") {
				continue
			}
			if !matchesStep(strings.TrimSuffix(name, ext), st.ID) {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, err
			}
			mimeType := "image/jpeg"
			if ext == ".png" {
				mimeType = "image/png"
			}
			photos = append(photos, scan.CapturedPhoto{
				ID:      e.Name(),
				Type:    st.ID,
				Preview: scan.EncodeDataURI(mimeType, data),
			})
			used = append(used, st)
			break
		}
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("no photos matching the profile steps in %s", dir)
	}
	if err := scan.VerifySequence(used, photos); err != nil {
		return nil, err
	}
	return photos, nil
}

// matchesStep reports whether a file stem names the step, either exactly or
// as the last dash-separated token.
func matchesStep(stem, stepID string) bool {
	if stem == stepID {
		return true
	}
	return strings.HasSuffix(stem, "-"+stepID)
}
