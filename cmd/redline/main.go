// Command redline applies a JavaScript annotation batch to a PDF and writes
// the flattened result. It stands in for an embedding renderer by deriving
// one page container per document page from the page MediaBoxes.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"

	"github.com/wudi/redline/coords"
	"github.com/wudi/redline/editor"
	"github.com/wudi/redline/observability"
	"github.com/wudi/redline/render"
	"github.com/wudi/redline/report"
	"github.com/wudi/redline/scripting"
)

type options struct {
	inPath     string
	outPath    string
	scriptPath string
	report     bool
	verbose    bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "redline: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "redline: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.StringVar(&opts.inPath, "in", "", "input PDF path (required)")
	flag.StringVar(&opts.outPath, "out", editor.ExportFilename, "output PDF path")
	flag.StringVar(&opts.scriptPath, "script", "", "JavaScript annotation batch to run")
	flag.BoolVar(&opts.report, "report", false, "print a Markdown annotation report")
	flag.BoolVar(&opts.verbose, "v", false, "verbose logging")
	flag.Parse()

	if opts.inPath == "" {
		return options{}, fmt.Errorf("-in is required")
	}
	return opts, nil
}

func run(opts options) error {
	original, err := os.ReadFile(opts.inPath)
	if err != nil {
		return err
	}

	host, err := hostFromDocument(original)
	if err != nil {
		return fmt.Errorf("derive page containers: %w", err)
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	session := editor.New(host, editor.WithLogger(log))
	defer session.Close()

	ctx := context.Background()
	if err := session.Attach(ctx); err != nil {
		return fmt.Errorf("attach: %w", err)
	}

	if opts.scriptPath != "" {
		src, err := os.ReadFile(opts.scriptPath)
		if err != nil {
			return err
		}
		engine := scripting.NewEngine()
		dom := scripting.NewStoreDOM(session.Store(), func(msg string) {
			fmt.Fprintln(os.Stderr, "alert:", msg)
		})
		if err := engine.RegisterDOM(dom); err != nil {
			return err
		}
		if _, err := engine.Execute(ctx, string(src)); err != nil {
			return fmt.Errorf("script: %w", err)
		}
		session.Refresh()
	}

	if opts.report {
		fmt.Print(report.Markdown(session.Store()))
	}

	res, err := session.Export(ctx, original)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return os.WriteFile(opts.outPath, res.Data, 0o644)
}

// hostFromDocument builds an in-memory renderer host with one container per
// document page, sized from the page MediaBox at one pixel per point and
// stacked vertically the way a scrolling viewer lays pages out.
func hostFromDocument(original []byte) (*render.MemHost, error) {
	doc, err := pdf.Read(bytes.NewReader(original), nil)
	if err != nil {
		return nil, err
	}
	pages, err := pagetree.FindPages(doc)
	if err != nil {
		return nil, err
	}

	const gap = 8.0
	host := render.NewMemHost()
	y := 0.0
	for i, ref := range pages {
		pageDict, err := pdf.GetDict(doc, ref)
		if err != nil {
			return nil, err
		}
		box, err := mediaBox(doc, pageDict)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		bounds := coords.Rect{X: 0, Y: y, W: box.URx - box.LLx, H: box.URy - box.LLy}
		host.AddPage(fmt.Sprintf("page-%d", i+1), fmt.Sprintf("Page %d", i+1), bounds)
		y += bounds.H + gap
	}
	return host, nil
}

func mediaBox(doc *pdf.Data, pageDict pdf.Dict) (*pdf.Rectangle, error) {
	node := pageDict
	for depth := 0; node != nil && depth < 32; depth++ {
		if mb, ok := node["MediaBox"]; ok && mb != nil {
			return pdf.GetRectangle(doc, mb)
		}
		parent, ok := node["Parent"]
		if !ok {
			break
		}
		var err error
		node, err = pdf.GetDict(doc, parent)
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("no MediaBox")
}
