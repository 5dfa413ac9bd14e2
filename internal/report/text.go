package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/minispider/minispider/internal/model"
)

// TextWriter outputs human-readable text summaries.
// This format is designed for terminal display with clear section
// formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type TextWriter struct {
	baseWriter

	// showEmpty controls whether sections with no content are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with the full link list per page.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the crawl result in human-readable format.
func (w *TextWriter) Write(result *model.CrawlResult) (int, error) {
	var sb strings.Builder

	// Header
	w.writeHeader(&sb, result)

	// Frontier outcomes
	w.writeOutcomes(&sb, result)

	// Crawled pages
	w.writePages(&sb, result)

	// Footer
	w.writeFooter(&sb)

	// Write to output
	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the summary header with crawl information.
func (w *TextWriter) writeHeader(sb *strings.Builder, result *model.CrawlResult) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       MINISPIDER CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Target:         %s\n", result.Target))
	sb.WriteString(fmt.Sprintf("Origin:         %s\n", result.Origin))
	sb.WriteString(fmt.Sprintf("Crawl Date:     %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Pages Crawled:  %d\n", result.PageCount()))
	sb.WriteString(fmt.Sprintf("Duration:       %s\n", result.Elapsed))

	if result.Interrupted {
		sb.WriteString("Status:         INTERRUPTED (partial results)\n")
	} else if result.Error != "" {
		sb.WriteString(fmt.Sprintf("Status:         ERROR - %s\n", result.Error))
	} else {
		sb.WriteString("Status:         Complete\n")
	}

	sb.WriteString("\n")
}

// writeOutcomes writes the frontier outcome summary section.
func (w *TextWriter) writeOutcomes(sb *strings.Builder, result *model.CrawlResult) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FRONTIER OUTCOMES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  CRAWLED:  %d\n", result.PageCount()))
	sb.WriteString(fmt.Sprintf("  BLOCKED:  %d\n", result.Stats.Blocked))
	sb.WriteString(fmt.Sprintf("  FAILED:   %d\n", result.Stats.Failed))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("  VISITED:  %d URLs\n", result.Stats.Visited))
	sb.WriteString("\n")
}

// writePages writes the list of crawled pages.
func (w *TextWriter) writePages(sb *strings.Builder, result *model.CrawlResult) {
	if result.PageCount() == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PAGES\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if result.PageCount() == 0 {
		sb.WriteString("  No pages crawled\n")
	} else {
		for _, page := range result.Pages {
			w.writePage(sb, page)
		}
	}
	sb.WriteString("\n")
}

// writePage writes a single crawled page entry.
func (w *TextWriter) writePage(sb *strings.Builder, page *model.PageRecord) {
	sb.WriteString(fmt.Sprintf("  * %s\n", page.URL))
	if page.Title != "" {
		sb.WriteString(fmt.Sprintf("    Title: %s\n", page.Title))
	}
	sb.WriteString(fmt.Sprintf("    Links: %d\n", page.LinkCount()))

	if w.verbose {
		for _, link := range page.Links {
			sb.WriteString(fmt.Sprintf("      -> %s\n", link))
		}
	}
}

// writeFooter writes the summary footer.
func (w *TextWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by minispider\n")
	sb.WriteString("https://github.com/minispider/minispider\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
