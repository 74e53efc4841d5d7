// Package render turns diagnoses and analyses into HTML fragments. The
// fragments are embedded in the web pages and sent as renderedHtml to the
// export endpoints.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sort"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/helmcode/gcpulse/pkg/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var analysisTmpl = template.Must(template.New("analysis.html").Funcs(template.FuncMap{
	"bytes":      model.FormatBytes,
	"ms":         func(v float64) string { return fmt.Sprintf("%.2f ms", v) },
	"pct":        func(v float64) string { return fmt.Sprintf("%.2f%%", v) },
	"sortCauses": sortCauses,
}).ParseFS(templateFS, "templates/analysis.html"))

// DiagnosisHTML converts a markdown diagnosis into an HTML fragment.
func DiagnosisHTML(md string) string {
	// Parsers carry state and must not be reused between documents.
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))

	r := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank | mdhtml.SkipHTML,
	})
	return string(markdown.Render(doc, r))
}

// AnalysisHTML renders the summary of an analysis as an HTML fragment.
func AnalysisHTML(result *model.AnalysisResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("nothing to render: analysis result is nil")
	}
	var buf bytes.Buffer
	if err := analysisTmpl.Execute(&buf, result); err != nil {
		return "", fmt.Errorf("render analysis: %w", err)
	}
	return buf.String(), nil
}

// sortCauses orders GC causes by count, most frequent first.
func sortCauses(causes map[string]model.GCCause) []model.GCCause {
	out := make([]model.GCCause, 0, len(causes))
	for name, c := range causes {
		if c.Cause == "" {
			c.Cause = name
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Cause < out[j].Cause
	})
	return out
}
