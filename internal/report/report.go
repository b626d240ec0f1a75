// Package report renders a suite result as text, JSON or YAML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/storyspoiler/spoilercheck/internal/scenario"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml (case-insensitive). Empty means
// text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json or yaml)", s)
	}
}

// Options controls rendering.
type Options struct {
	Format Format
	// Color enables ANSI colors in text output. Callers set it only when
	// writing to a terminal.
	Color bool
}

// Summary is the structured form written for json and yaml.
type Summary struct {
	Suite      string        `json:"suite" yaml:"suite"`
	Passed     bool          `json:"passed" yaml:"passed"`
	Total      int           `json:"total" yaml:"total"`
	PassCount  int           `json:"pass_count" yaml:"pass_count"`
	FailCount  int           `json:"fail_count" yaml:"fail_count"`
	DurationMS int64         `json:"duration_ms" yaml:"duration_ms"`
	Steps      []StepSummary `json:"steps" yaml:"steps"`
}

// StepSummary is one step in a Summary.
type StepSummary struct {
	Order      int    `json:"order" yaml:"order"`
	Name       string `json:"name" yaml:"name"`
	Passed     bool   `json:"passed" yaml:"passed"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summarize converts a result into its structured form.
func Summarize(result *scenario.Result) Summary {
	passed, failed := result.Counts()
	s := Summary{
		Suite:      result.Name,
		Passed:     result.Passed,
		Total:      len(result.Steps),
		PassCount:  passed,
		FailCount:  failed,
		DurationMS: result.Duration.Milliseconds(),
		Steps:      make([]StepSummary, 0, len(result.Steps)),
	}
	for i, sr := range result.Steps {
		s.Steps = append(s.Steps, StepSummary{
			Order:      i + 1,
			Name:       sr.Name,
			Passed:     sr.Passed,
			DurationMS: sr.Duration.Milliseconds(),
			Error:      sr.Error,
		})
	}
	return s
}

// Write renders result to w.
func Write(w io.Writer, result *scenario.Result, opts Options) error {
	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(Summarize(result)); err != nil {
			return fmt.Errorf("encoding json report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Summarize(result)); err != nil {
			return fmt.Errorf("encoding yaml report: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		return writeText(w, result, opts.Color)
	default:
		return fmt.Errorf("unknown format %q", opts.Format)
	}
}

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiDim   = "\033[2m"
)

type painter bool

func (p painter) paint(code, s string) string {
	if !p {
		return s
	}
	return code + s + ansiReset
}

func writeText(w io.Writer, result *scenario.Result, color bool) error {
	p := painter(color)
	var b strings.Builder

	fmt.Fprintf(&b, "\n--- %s ---\n\n", result.Name)

	for i, sr := range result.Steps {
		d := sr.Duration.Round(time.Millisecond)
		if sr.Passed {
			fmt.Fprintf(&b, "  %s  %d. %-40s (%s)\n", p.paint(ansiGreen, "PASS"), i+1, sr.Name, d)
		} else {
			fmt.Fprintf(&b, "  %s  %d. %-40s (%s)\n", p.paint(ansiRed, "FAIL"), i+1, sr.Name, d)
			fmt.Fprintf(&b, "        %s\n", p.paint(ansiDim, sr.Error))
		}
	}

	passed, failed := result.Counts()
	label := p.paint(ansiGreen, "PASSED")
	if !result.Passed {
		label = p.paint(ansiRed, "FAILED")
	}
	fmt.Fprintf(&b, "\n  Suite: %s (%s)\n", label, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Results: %d passed, %d failed, %d total\n", passed, failed, len(result.Steps))

	_, err := io.WriteString(w, b.String())
	return err
}
