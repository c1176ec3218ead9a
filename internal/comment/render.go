package comment

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"jira-sync/internal/tally"

	"github.com/Masterminds/sprig/v3"
)

//go:embed default.tmpl
var defaultTemplate string

// View is the data available to comment templates.
type View struct {
	Marker       string
	Key          string
	Suite        string
	ReportURL    string
	BuildID      string
	Verdict      tally.Outcome
	Observations []tally.Observation
}

// Renderer turns a View into a Jira wiki-markup comment body.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the template at path, or the bundled template when path
// is empty. Sprig functions are available to templates.
func NewRenderer(path string) (*Renderer, error) {
	text := defaultTemplate
	name := "default"
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading comment template: %w", err)
		}
		text = string(data)
		name = path
	}

	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing comment template %s: %w", name, err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// DefaultRenderer returns a Renderer for the bundled template.
func DefaultRenderer() *Renderer {
	r, err := NewRenderer("")
	if err != nil {
		panic(err)
	}
	return r
}

// Render executes the template. The Marker is prepended when the template
// output does not already contain it, so the synchronizer can always find the
// comment again.
func (r *Renderer) Render(v View) (string, error) {
	v.Marker = Marker
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("rendering comment for %s: %w", v.Key, err)
	}
	body := strings.TrimSpace(buf.String())
	if !strings.Contains(body, Marker) {
		body = Marker + "\n" + body
	}
	return body, nil
}
