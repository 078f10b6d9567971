/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: formatter.go
Description: Custom log formatter for the Akaylee control-flow model inferrer. Renders
colored, compact lines and tags analysis messages with a stage prefix such as FUZZ,
SIGNATURE, BRANCH, CONTEXT, PREDICATE or LP.
*/

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// stagePrefixes maps message keywords to their display prefix, checked in order
var stagePrefixes = []struct {
	keyword string
	prefix  string
}{
	{"SIGNATURE", "SIGNATURE"},
	{"BRANCH", "BRANCH"},
	{"CONTEXT", "CONTEXT"},
	{"PREDICATE", "PREDICATE"},
	{"LP ", "LP"},
	{"FUZZ", "FUZZ"},
	{"Fuzzing session", "FUZZ"},
	{"seed added", "FUZZ"},
}

// CustomFormatter provides structured, human-oriented logging output
type CustomFormatter struct {
	Timestamp bool
	Caller    bool
	Colors    bool
}

// Format formats a log entry
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var output strings.Builder

	if f.Timestamp {
		f.write(&output, 36, entry.Time.Format("2006-01-02 15:04:05.000"))
		output.WriteString(" ")
	}

	f.write(&output, f.getLevelColor(entry.Level), strings.ToUpper(entry.Level.String()))
	output.WriteString(" ")

	if prefix := StagePrefix(entry.Message); prefix != "" {
		f.write(&output, 35, "["+prefix+"]")
		output.WriteString(" ")
	}

	if f.Caller && entry.HasCaller() {
		f.write(&output, 33, fmt.Sprintf("[%s:%d]", entry.Caller.File, entry.Caller.Line))
		output.WriteString(" ")
	}

	output.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		output.WriteString(" ")
		output.WriteString(f.formatFields(entry.Data))
	}

	output.WriteString("\n")
	return []byte(output.String()), nil
}

// StagePrefix returns the analysis stage a message belongs to, or "" if none
func StagePrefix(message string) string {
	for _, sp := range stagePrefixes {
		if strings.Contains(message, sp.keyword) {
			return sp.prefix
		}
	}
	return ""
}

func (f *CustomFormatter) write(b *strings.Builder, color int, s string) {
	if f.Colors {
		fmt.Fprintf(b, "\033[%dm%s\033[0m", color, s)
		return
	}
	b.WriteString(s)
}

// getLevelColor returns the ANSI color code for a log level
func (f *CustomFormatter) getLevelColor(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return 37 // White
	case logrus.InfoLevel:
		return 32 // Green
	case logrus.WarnLevel:
		return 33 // Yellow
	case logrus.ErrorLevel:
		return 31 // Red
	default:
		return 35 // Magenta
	}
}

// formatFields renders fields sorted by key
func (f *CustomFormatter) formatFields(fields logrus.Fields) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		value := f.formatValue(key, fields[key])
		if f.Colors {
			parts = append(parts, fmt.Sprintf("\033[34m%s\033[0m=\033[32m%s\033[0m", key, value)) // Blue key, Green value
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", key, value))
		}
	}
	return strings.Join(parts, " ")
}

// formatValue formats a field value appropriately
func (f *CustomFormatter) formatValue(key string, value interface{}) string {
	switch key {
	case "executions_per_sec":
		if v, ok := value.(float64); ok {
			return fmt.Sprintf("%.2f/sec", v)
		}
	case "confidence":
		if v, ok := value.(float64); ok {
			return fmt.Sprintf("%.3f", v)
		}
	case "signature", "seed_id", "session_id":
		if s, ok := value.(string); ok && len(s) > 8 {
			return s[:8] + "..."
		}
	}

	switch v := value.(type) {
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format("15:04:05.000")
	case string:
		if len(v) > 50 {
			return fmt.Sprintf("%q...", v[:50])
		}
		return fmt.Sprintf("%q", v)
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}
