// Package render formats affected-test results for the CLI and server
// layers: JSON for machine consumers, a plain table for a terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fenwicklabs/testselect/internal/affected"
)

// Format selects the output shape.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// Affected writes result to w in the requested format.
func Affected(w io.Writer, result affected.Result, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	default:
		return writeAffectedTable(w, result)
	}
}

// Why writes a single dependency path, or a "no path found" line when ok
// is false.
func Why(w io.Writer, path affected.DependencyPath, ok bool, format Format) error {
	if format == FormatJSON {
		payload := struct {
			Found bool     `json:"found"`
			Chain []string `json:"chain,omitempty"`
		}{Found: ok, Chain: path.Chain}
		return writeJSON(w, payload)
	}
	if !ok {
		_, err := fmt.Fprintln(w, "no dependency path found")
		return err
	}
	_, err := fmt.Fprintln(w, path.String(" -> "))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeAffectedTable(w io.Writer, result affected.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d tests affected, %d/%d sources affected\n",
		len(result.Tests), result.TotalTests, len(result.Sources), result.TotalSources)
	if len(result.Tests) > 0 {
		b.WriteString("\nTests:\n")
		for _, t := range result.Tests {
			fmt.Fprintf(&b, "  %s\n", t)
		}
	}
	if len(result.Sources) > 0 {
		b.WriteString("\nSources:\n")
		for _, s := range result.Sources {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
