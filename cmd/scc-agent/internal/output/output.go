package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/kube-scc/scc-agent/pkg/requirements"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses an output format string
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "yaml":
		return FormatYAML
	default:
		return FormatTable
	}
}

// Printer handles output formatting
type Printer struct {
	format Format
	out    io.Writer
}

// NewPrinter creates a new printer writing to stdout
func NewPrinter(format Format) *Printer {
	return &Printer{format: format, out: os.Stdout}
}

// Format returns the printer format
func (p *Printer) Format() Format {
	return p.format
}

// Print prints data in the configured format
func (p *Printer) Print(data interface{}) error {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(p.out)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unsupported format: %s", p.format)
	}
}

// PrintRequirements renders a requirement set as a table
func (p *Printer) PrintRequirements(set *requirements.Set) error {
	if p.format != FormatTable {
		return p.Print(set.Requirements)
	}

	w := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tSEVERITY\tVALUE\tORIGIN")
	for _, req := range set.Requirements {
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", req.Kind, req.Severity(), req.Value, req.Origin)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	summary := set.Summarize()
	fmt.Fprintf(p.out, "\n%d resources, %d requirements, %d service accounts\n",
		summary.TotalResources, summary.TotalRequirements, summary.ServiceAccounts)
	for _, warning := range set.Warnings {
		fmt.Fprintf(p.out, "warning: %s\n", warning)
	}
	for _, errMsg := range set.Errors {
		fmt.Fprintf(p.out, "error: %s\n", errMsg)
	}
	return nil
}
