/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report.go
Description: Model reports for the Akaylee control-flow model inferrer. Collects the modeled
edges, branches, context map and fuzzing statistics into one ModelReport and renders it as
plain text lines, JSON, YAML or a terminal table.
*/

package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kleascm/akaylee-cfm/pkg/analysis"
	"github.com/kleascm/akaylee-cfm/pkg/core"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format selects a report rendering
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTable Format = "table"
	FormatHTML  Format = "html"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML, FormatTable, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported report format: %s", s)
	}
}

// EdgeReport is one modeled edge
type EdgeReport struct {
	Source     string   `json:"source" yaml:"source"`
	Dest       string   `json:"dest" yaml:"dest"`
	Formula    *string  `json:"formula" yaml:"formula"`
	Confidence *float64 `json:"confidence" yaml:"confidence"`
	Accepts    int      `json:"accepts" yaml:"accepts"`
	Rejects    int      `json:"rejects" yaml:"rejects"`
	Trials     int      `json:"trials" yaml:"trials"`
}

// Line renders the edge as E<src -> dest> := formula (conf=confidence)
func (e EdgeReport) Line() string {
	formula, confidence := "none", "none"
	if e.Formula != nil {
		formula = *e.Formula
	}
	if e.Confidence != nil {
		confidence = strconv.FormatFloat(*e.Confidence, 'g', -1, 64)
	}
	return fmt.Sprintf("E<%s -> %s> := %s (conf=%s)", e.Source, e.Dest, formula, confidence)
}

// ContextEntry is one context map window
type ContextEntry struct {
	CallSite string `json:"call_site" yaml:"call_site"`
	Lo       int    `json:"lo" yaml:"lo"`
	Hi       int    `json:"hi" yaml:"hi"`
}

// ModelReport is the complete result of a model run
type ModelReport struct {
	Target      string                `json:"target" yaml:"target"`
	SessionID   string                `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	GeneratedAt time.Time             `json:"generated_at" yaml:"generated_at"`
	Signatures  int                   `json:"signatures" yaml:"signatures"`
	Branches    []string              `json:"branches" yaml:"branches"`
	ContextMap  []ContextEntry        `json:"context_map" yaml:"context_map"`
	Edges       []EdgeReport          `json:"edges" yaml:"edges"`
	Stats       *core.FuzzerStats     `json:"stats,omitempty" yaml:"stats,omitempty"`
	Config      *analysis.ModelConfig `json:"config,omitempty" yaml:"config,omitempty"`
}

// NewModelReport collects the state of a model after Run
func NewModelReport(target string, model *analysis.ControlFlowModel, signatures int) *ModelReport {
	r := &ModelReport{
		Target:      target,
		GeneratedAt: time.Now(),
		Signatures:  signatures,
		Branches:    []string{},
		ContextMap:  []ContextEntry{},
		Edges:       []EdgeReport{},
	}
	for _, b := range model.Branches() {
		r.Branches = append(r.Branches, b.Label().String())
	}
	for _, cr := range model.ContextMap().Sorted() {
		r.ContextMap = append(r.ContextMap, ContextEntry{
			CallSite: cr.CallSite.String(),
			Lo:       cr.Range.Lo,
			Hi:       cr.Range.Hi,
		})
	}
	for _, res := range model.Conditions() {
		r.Edges = append(r.Edges, EdgeReport{
			Source:     res.Edge.Src.String(),
			Dest:       res.Edge.Dest.String(),
			Formula:    res.Condition.Formula,
			Confidence: res.Condition.Confidence,
			Accepts:    res.Condition.Accepts,
			Rejects:    res.Condition.Rejects,
			Trials:     res.Condition.Trials,
		})
	}
	return r
}

// WithSession attaches fuzzing statistics
func (r *ModelReport) WithSession(id string, stats core.FuzzerStats) *ModelReport {
	r.SessionID = id
	r.Stats = &stats
	return r
}

// WithConfig attaches the model configuration
func (r *ModelReport) WithConfig(config *analysis.ModelConfig) *ModelReport {
	r.Config = config
	return r
}

// Write renders the report in the given format
func (r *ModelReport) Write(w io.Writer, format Format) error {
	switch format {
	case FormatText:
		return r.WriteText(w)
	case FormatJSON:
		return r.WriteJSON(w)
	case FormatYAML:
		return r.WriteYAML(w)
	case FormatTable:
		return r.WriteTable(w)
	case FormatHTML:
		return r.WriteHTML(w)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// WriteText writes one line per edge
func (r *ModelReport) WriteText(w io.Writer) error {
	for _, e := range r.Edges {
		if _, err := fmt.Fprintln(w, e.Line()); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes the report as indented JSON
func (r *ModelReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteYAML writes the report as YAML
func (r *ModelReport) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// WriteTable writes the edges and the context map as terminal tables
func (r *ModelReport) WriteTable(w io.Writer) error {
	edges := tablewriter.NewWriter(w)
	edges.SetHeader([]string{"source", "dest", "formula", "confidence", "accepts", "rejects", "trials"})
	for _, e := range r.Edges {
		formula, confidence := "none", "none"
		if e.Formula != nil {
			formula = *e.Formula
		}
		if e.Confidence != nil {
			confidence = fmt.Sprintf("%.3f", *e.Confidence)
		}
		edges.Append([]string{
			e.Source,
			e.Dest,
			formula,
			confidence,
			strconv.Itoa(e.Accepts),
			strconv.Itoa(e.Rejects),
			strconv.Itoa(e.Trials),
		})
	}
	edges.Render()

	if len(r.ContextMap) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	ranges := tablewriter.NewWriter(w)
	ranges.SetHeader([]string{"call site", "lo", "hi"})
	for _, c := range r.ContextMap {
		ranges.Append([]string{c.CallSite, strconv.Itoa(c.Lo), strconv.Itoa(c.Hi)})
	}
	ranges.Render()
	return nil
}
