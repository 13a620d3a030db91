// Package report renders an HTML summary of a finished run.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/crmsync/internal/ledger"
	"github.com/a-h/templ"
)

// Data is everything the summary shows.
type Data struct {
	Run ledger.Run
	// Failures are the rows that came back with an error outcome.
	Failures []ledger.Row
}

// Summary returns the run summary page as a templ component.
func Summary(d Data) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.printf(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.printf(`<title>%s sync %s</title>`, esc(d.Run.ObjectType), esc(d.Run.ID.String()))
		p.printf(`<style>%s</style></head><body>`, stylesheet)

		p.printf(`<h1>%s %s</h1>`, esc(d.Run.Mode), esc(d.Run.ObjectType))
		p.printf(`<p class="status status-%s">%s</p>`, esc(string(d.Run.Status)), esc(string(d.Run.Status)))
		if d.Run.Error != "" {
			p.printf(`<p class="error">%s</p>`, esc(d.Run.Error))
		}

		p.printf(`<table class="summary"><tbody>`)
		summaryRow(p, "Run", d.Run.ID.String())
		summaryRow(p, "Input", d.Run.InputPath)
		summaryRow(p, "Output", d.Run.OutputPath)
		summaryRow(p, "Started", d.Run.StartedAt.Format(time.RFC3339))
		summaryRow(p, "Duration", d.Run.Duration().Round(time.Millisecond).String())
		summaryRow(p, "Rows", fmt.Sprint(d.Run.Rows))
		summaryRow(p, "Succeeded", fmt.Sprint(d.Run.Succeeded))
		summaryRow(p, "Failed", fmt.Sprint(d.Run.Failed))
		p.printf(`</tbody></table>`)

		if len(d.Failures) > 0 {
			p.printf(`<h2>Failed rows</h2><table class="failures"><thead><tr>`)
			p.printf(`<th>Line</th><th>Object</th><th>Key</th><th>Message</th></tr></thead><tbody>`)
			for _, f := range d.Failures {
				p.printf(`<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
					f.Line, esc(f.Object), esc(f.Key), esc(f.Message))
			}
			p.printf(`</tbody></table>`)
		}

		p.printf(`</body></html>`)
		return p.err
	})
}

// WriteFile renders c into path.
func WriteFile(ctx context.Context, path string, c templ.Component) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := c.Render(ctx, f); err != nil {
		f.Close()
		return fmt.Errorf("render report: %w", err)
	}
	return f.Close()
}

// PathFor returns the report path that sits beside outputPath.
func PathFor(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".html"
}

func summaryRow(p *printer, label, value string) {
	p.printf(`<tr><th>%s</th><td>%s</td></tr>`, esc(label), esc(value))
}

func esc(s string) string { return templ.EscapeString(s) }

// printer keeps the first write error so the template body stays flat.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

const stylesheet = `body{font-family:sans-serif;margin:2rem;color:#222}` +
	`table{border-collapse:collapse;margin-bottom:1.5rem}` +
	`th,td{border:1px solid #ccc;padding:.3rem .6rem;text-align:left}` +
	`.status-completed{color:#176f2c}.status-failed,.error{color:#a11}`
