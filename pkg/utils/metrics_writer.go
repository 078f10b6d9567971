/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics_writer.go
Description: Utility for writing run results to a metrics directory. Results are stored as
JSON under <dir>/<kind>/ with a timestamped, target-specific file name so successive fuzzing
and model runs can be compared.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// WriteMetricsResult writes result to dir/kind/<timestamp>_<kind>_<name>.json and returns the path
func WriteMetricsResult(dir, kind, name string, result interface{}) (string, error) {
	metricsDir := filepath.Join(dir, kind)
	if err := os.MkdirAll(metricsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create metrics directory: %w", err)
	}

	// 2024-06-11_01-30-00.000_model_triangle.json
	timestamp := time.Now().Format("2006-01-02_15-04-05.000")
	filename := fmt.Sprintf("%s_%s_%s.json", timestamp, kind, unsafeName.ReplaceAllString(name, "_"))
	filePath := filepath.Join(metricsDir, filename)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write metrics file: %w", err)
	}

	return filePath, nil
}
