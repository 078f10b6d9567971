/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: html.go
Description: Static HTML rendering of model reports. Renders a ModelReport through the
embedded template and writes it to an output directory.
*/

package reporting

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var htmlFuncs = template.FuncMap{
	"deref":      func(s *string) string { return *s },
	"derefFloat": func(f *float64) float64 { return *f },
	"confidenceClass": func(f *float64) string {
		if *f >= 1 {
			return "perfect"
		}
		return "partial"
	},
}

var modelPage = template.Must(template.New("model").Funcs(htmlFuncs).Parse(modelTemplate))

// WriteHTML renders the report as a standalone HTML page
func (r *ModelReport) WriteHTML(w io.Writer) error {
	if err := modelPage.Execute(w, r); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// HTMLGenerator writes HTML model reports into a directory
type HTMLGenerator struct {
	outputDir string
	logger    *logrus.Logger
}

// NewHTMLGenerator creates a new generator
func NewHTMLGenerator(outputDir string, logger *logrus.Logger) *HTMLGenerator {
	if logger == nil {
		logger = logrus.New()
	}
	return &HTMLGenerator{outputDir: outputDir, logger: logger}
}

// Generate writes <target>.html and returns its path
func (g *HTMLGenerator) Generate(report *ModelReport) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(g.outputDir, filepath.Base(report.Target)+".html")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := report.WriteHTML(file); err != nil {
		return "", err
	}

	g.logger.WithField("path", path).Info("Model report generated")
	return path, nil
}
