package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/byteowlz/glean/pkg/extractor"
)

const textSeparator = "\n---\n"

func validFormat(format string) bool {
	switch format {
	case "text", "json", "yaml":
		return true
	}
	return false
}

// writeResults renders results to w. A single result is written as an object,
// several as a list. Text output carries only the content.
func writeResults(w io.Writer, results []extractor.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)

	default:
		parts := make([]string, 0, len(results))
		for _, r := range results {
			parts = append(parts, r.Content)
		}
		_, err := fmt.Fprintln(w, strings.Join(parts, textSeparator))
		return err
	}
}

// warningPrinter reports per-URL warnings on stderr.
type warningPrinter struct {
	out       io.Writer
	useColors bool
}

func newWarningPrinter(out io.Writer, useColors bool) *warningPrinter {
	return &warningPrinter{out: out, useColors: useColors && !color.NoColor}
}

func (p *warningPrinter) print(results []extractor.Result) {
	for _, r := range results {
		for _, w := range r.Warnings {
			p.warning("%s: %s", r.URL, w)
		}
		if r.Source == extractor.SourceNone {
			p.failure("%s: no content", r.URL)
		}
	}
}

func (p *warningPrinter) warning(format string, args ...interface{}) {
	if p.useColors {
		color.New(color.FgYellow).Fprintf(p.out, "⚠ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, "[WARN] "+format+"\n", args...)
}

func (p *warningPrinter) failure(format string, args ...interface{}) {
	if p.useColors {
		color.New(color.FgRed).Fprintf(p.out, "✗ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, "[ERROR] "+format+"\n", args...)
}
