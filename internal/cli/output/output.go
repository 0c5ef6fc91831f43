// Package output renders command results as terminal tables, markdown or
// JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Renderer writes command output.
type Renderer struct {
	out    io.Writer
	err    io.Writer
	mode   Mode
	styles *Styles
}

// NewRenderer creates a renderer. ModeAuto resolves to text on a terminal
// and markdown otherwise.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	if mode == "" || mode == ModeAuto {
		mode = ModeMarkdown
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			mode = ModeText
		}
	}
	return &Renderer{out: out, err: errOut, mode: mode, styles: newStyles(lipgloss.NewRenderer(out), mode)}
}

// Styles returns the styles of the renderer's mode.
func (r *Renderer) Styles() *Styles { return r.styles }

// Mode returns the effective output mode.
func (r *Renderer) Mode() Mode { return r.mode }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// Table renders rows under headers. In JSON mode each row becomes an
// object keyed by header.
func (r *Renderer) Table(headers []string, rows [][]any) error {
	if r.mode == ModeJSON {
		objs := make([]map[string]any, len(rows))
		for i, row := range rows {
			obj := make(map[string]any, len(headers))
			for j, h := range headers {
				if j < len(row) {
					obj[h] = row[j]
				}
			}
			objs[i] = obj
		}
		return r.JSON(objs)
	}

	if len(rows) == 0 {
		_, _ = fmt.Fprintln(r.out, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		t.AppendRow(display(row))
	}

	if r.mode == ModeMarkdown {
		t.RenderMarkdown()
		return nil
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return nil
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Println writes a line of plain output. It is suppressed in JSON mode so
// that the output stays parseable.
func (r *Renderer) Println(a ...any) {
	if r.mode == ModeJSON {
		return
	}
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted plain output, suppressed in JSON mode.
func (r *Renderer) Printf(format string, a ...any) {
	if r.mode == ModeJSON {
		return
	}
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Warn writes a line to standard error.
func (r *Renderer) Warn(format string, a ...any) {
	_, _ = fmt.Fprintf(r.err, format+"\n", a...)
}

func display(row []any) table.Row {
	out := make(table.Row, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case nil:
			out[i] = "NULL"
		case []byte:
			out[i] = fmt.Sprintf("0x%x", x)
		default:
			out[i] = x
		}
	}
	return out
}
