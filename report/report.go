// Package report produces a human-readable audit summary of a document's
// annotations: Markdown for logs and tickets, and goldmark-rendered HTML
// for embedding in review tooling. The report is read-only over the store.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/wudi/redline/annotation"
)

// Markdown renders the store's annotations as a Markdown summary: one
// section per annotated page, one line per annotation in replay order.
func Markdown(store *annotation.Store) string {
	var b strings.Builder
	b.WriteString("# Annotation report\n\n")

	pages := store.AnnotatedPages()
	if len(pages) == 0 {
		b.WriteString("No annotations.\n")
		return b.String()
	}

	total := 0
	for _, page := range pages {
		total += store.Count(page)
	}
	fmt.Fprintf(&b, "%d annotation(s) across %d page(s).\n", total, len(pages))

	for _, page := range pages {
		anns := store.Annotations(page)
		fmt.Fprintf(&b, "\n## Page %d (%d)\n\n", page+1, len(anns))
		for _, a := range anns {
			b.WriteString("- ")
			b.WriteString(describe(a))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// HTML renders the Markdown summary to HTML via goldmark.
func HTML(store *annotation.Store) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(store)), &buf); err != nil {
		return "", fmt.Errorf("report: render html: %w", err)
	}
	return buf.String(), nil
}

func describe(a annotation.Annotation) string {
	switch p := a.Payload.(type) {
	case annotation.BlurRegion:
		r := p.Rect()
		return fmt.Sprintf("blur region %.0fx%.0f at (%.0f, %.0f)", r.W, r.H, r.X, r.Y)
	case annotation.EraseStroke:
		return fmt.Sprintf("erase stroke, %d point(s)", len(p.Points))
	case annotation.TextLabel:
		return fmt.Sprintf("text label %q at (%.0f, %.0f)", p.Text, p.X, p.Y)
	default:
		return fmt.Sprintf("%s annotation", a.Payload.Kind())
	}
}
