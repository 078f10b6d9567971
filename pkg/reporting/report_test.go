/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report_test.go
Description: Tests for model report rendering in text, JSON, YAML, table and HTML form.
*/

package reporting_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kleascm/akaylee-cfm/pkg/analysis"
	"github.com/kleascm/akaylee-cfm/pkg/core"
	"github.com/kleascm/akaylee-cfm/pkg/reporting"
	"github.com/kleascm/akaylee-cfm/pkg/targets"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func sampleReport() *reporting.ModelReport {
	formula := "x[2] == 'c'"
	one, half := 1.0, 0.5
	partial := "len(x) != 0"
	return &reporting.ModelReport{
		Target:     "length3",
		Signatures: 2,
		Branches:   []string{"length3:1"},
		ContextMap: []reporting.ContextEntry{{CallSite: "main:4", Lo: 3, Hi: 6}},
		Edges: []reporting.EdgeReport{
			{Source: "length3:1", Dest: "length3:2", Formula: &formula, Confidence: &one, Accepts: 1, Rejects: 2, Trials: 5},
			{Source: "length3:1", Dest: "length3:3", Formula: &partial, Confidence: &half, Accepts: 2, Rejects: 1, Trials: 1000},
			{Source: "main:2", Dest: "main:3", Accepts: 3},
		},
	}
}

// TestParseFormat tests format names
func TestParseFormat(t *testing.T) {
	for _, name := range []string{"text", "JSON", "yaml", "table", "html"} {
		_, err := reporting.ParseFormat(name)
		assert.NoError(t, err, name)
	}
	_, err := reporting.ParseFormat("pdf")
	assert.Error(t, err)
}

// TestEdgeLine tests the text line of decided and undecided edges
func TestEdgeLine(t *testing.T) {
	edges := sampleReport().Edges
	assert.Equal(t, "E<length3:1 -> length3:2> := x[2] == 'c' (conf=1)", edges[0].Line())
	assert.Equal(t, "E<length3:1 -> length3:3> := len(x) != 0 (conf=0.5)", edges[1].Line())
	assert.Equal(t, "E<main:2 -> main:3> := none (conf=none)", edges[2].Line())
}

// TestWriteText tests one line per edge
func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, reporting.FormatText))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "E<length3:1 -> length3:2>"))
}

// TestWriteJSON tests that undecided edges serialize as null
func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, reporting.FormatJSON))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "length3", decoded["target"])
	assert.NotContains(t, decoded, "stats")

	edges := decoded["edges"].([]interface{})
	require.Len(t, edges, 3)
	last := edges[2].(map[string]interface{})
	assert.Nil(t, last["formula"])
	assert.Nil(t, last["confidence"])
	assert.Equal(t, 1.0, edges[0].(map[string]interface{})["confidence"])
}

// TestWriteYAML tests the YAML rendering
func TestWriteYAML(t *testing.T) {
	report := sampleReport().WithSession("session-1", core.FuzzerStats{Executions: 10})
	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, reporting.FormatYAML))

	var decoded reporting.ModelReport
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "session-1", decoded.SessionID)
	require.NotNil(t, decoded.Stats)
	assert.Equal(t, int64(10), decoded.Stats.Executions)
	require.Len(t, decoded.Edges, 3)
	assert.Nil(t, decoded.Edges[2].Formula)
	assert.Equal(t, "x[2] == 'c'", *decoded.Edges[0].Formula)
	assert.Equal(t, []reporting.ContextEntry{{CallSite: "main:4", Lo: 3, Hi: 6}}, decoded.ContextMap)
}

// TestWriteTable tests the edge and context tables
func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, reporting.FormatTable))
	out := buf.String()
	assert.Contains(t, out, "x[2] == 'c'")
	assert.Contains(t, out, "1.000")
	assert.Contains(t, out, "none")
	assert.Contains(t, out, "main:4")
}

// TestWriteHTML tests the HTML page and the file generator
func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Write(&buf, reporting.FormatHTML))
	out := buf.String()
	assert.Contains(t, out, "<title>length3 - Akaylee Control-Flow Model</title>")
	assert.Contains(t, out, "x[2] ==")
	assert.Contains(t, out, `class="perfect"`)
	assert.Contains(t, out, `class="partial"`)
	assert.Contains(t, out, "[3, 6)")

	dir := t.TempDir()
	report := sampleReport()
	report.Target = "/usr/local/bin/demo"
	path, err := reporting.NewHTMLGenerator(dir, quietLogger()).Generate(report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "demo.html"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "demo")
}

// TestNewModelReport tests collecting a report from a model run
func TestNewModelReport(t *testing.T) {
	spec, err := targets.Lookup("same2")
	require.NoError(t, err)
	target := spec.Target(0)

	fuzz := core.DefaultFuzzerConfig()
	fuzz.Seeds = spec.Seeds
	fuzz.Trials = 4
	session, err := core.NewSession(fuzz, target, quietLogger())
	require.NoError(t, err)
	require.NoError(t, session.Run(context.Background()))

	config := analysis.DefaultModelConfig()
	config.Workers = 1
	model, err := analysis.NewControlFlowModel(session.Record(), target, config, quietLogger())
	require.NoError(t, err)
	_, err = model.Run(context.Background())
	require.NoError(t, err)

	report := reporting.NewModelReport("same2", model, session.Record().Len()).
		WithConfig(config).
		WithSession(session.ID, session.GetStats())

	assert.Equal(t, 2, report.Signatures)
	assert.Equal(t, []string{"same2:3"}, report.Branches)
	assert.Empty(t, report.ContextMap)
	require.Len(t, report.Edges, 2)
	assert.Equal(t, "same2:3", report.Edges[0].Source)
	assert.Equal(t, "same2:4", report.Edges[0].Dest)
	require.NotNil(t, report.Edges[0].Formula)
	assert.Equal(t, 1.0, *report.Edges[0].Confidence)
	assert.Same(t, config, report.Config)
	assert.Equal(t, session.ID, report.SessionID)
}
