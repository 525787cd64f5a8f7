package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Table renders data as a formatted table.
type Table struct {
	headers []string
	rows    [][]string
	writer  io.Writer
}

// NewTable creates a new table with the given headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		headers: headers,
		writer:  w,
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cols ...string) {
	t.rows = append(t.rows, cols)
}

// Render writes the table.
func (t *Table) Render() {
	w := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(t.headers, "\t"))

	sep := make([]string, len(t.headers))
	for i, h := range t.headers {
		sep[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(w, strings.Join(sep, "\t"))

	for _, row := range t.rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	w.Flush()
}

// printer writes command results in the selected output format
type printer struct {
	w      io.Writer
	format string
	color  bool
}

func (o *options) printer(w io.Writer) *printer {
	return &printer{
		w:      w,
		format: getOutputFormat(o),
		color:  !o.noColor && w == io.Writer(os.Stdout) && term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// structured reports whether the result should be encoded rather than
// rendered as a table.
func (p *printer) structured() bool {
	return p.format == "json" || p.format == "yaml"
}

// print encodes data as JSON or YAML
func (p *printer) print(data interface{}) error {
	switch p.format {
	case "yaml":
		return printYAML(p.w, data)
	default:
		return printJSON(p.w, data)
	}
}

func (p *printer) table(headers ...string) *Table {
	return NewTable(p.w, headers...)
}

func (p *printer) line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// printYAML round-trips through JSON so field names follow the json tags
func printYAML(w io.Writer, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
)

// formatStatus returns a status string with visual indicator.
func (p *printer) formatStatus(status string) string {
	var marker, color string
	switch strings.ToLower(status) {
	case "healthy", "created", "success":
		marker, color = "[+] ", ansiGreen
	case "critical", "deleted", "failed":
		marker, color = "[-] ", ansiRed
	case "warning", "updated", "insufficient_data":
		marker, color = "[*] ", ansiYellow
	default:
		return status
	}
	if p.color {
		return color + marker + status + ansiReset
	}
	return marker + status
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatNamespace(ns *string) string {
	if ns == nil {
		return "(cluster)"
	}
	return *ns
}

// sortedCounts renders a count map as "k=v" pairs ordered by key
func sortedCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
