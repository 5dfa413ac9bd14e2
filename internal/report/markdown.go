package report

import (
	"io"
	"strconv"

	"github.com/minispider/minispider/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs crawl results in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the crawl result in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	// Header
	w.writeHeader(md, result)

	// Frontier outcomes
	w.writeOutcomes(md, result)

	// Crawled pages
	w.writePages(md, result)

	// Footer
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Crawl Report")
	md.PlainText("")

	// Basic info table
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + result.Target + "`"},
			{"Origin", "`" + result.Origin + "`"},
			{"Crawl Date", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Pages Crawled", strconv.Itoa(result.PageCount())},
			{"Duration", result.Elapsed.String()},
			{"Status", w.getStatusText(result)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on result state.
func (w *MarkdownWriter) getStatusText(result *model.CrawlResult) string {
	if result.Interrupted {
		return "⚠️ Interrupted (partial results)"
	}
	if result.Error != "" {
		return "❌ Error - " + result.Error
	}
	return "✅ Complete"
}

// writeOutcomes writes the frontier outcome summary section.
func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Frontier Outcomes")
	md.PlainText("")

	// Outcome table
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"✅ Crawled", strconv.Itoa(result.PageCount())},
			{"🚫 Blocked by robots.txt", strconv.Itoa(result.Stats.Blocked)},
			{"❌ Failed", strconv.Itoa(result.Stats.Failed)},
			{"**Visited**", "**" + strconv.Itoa(result.Stats.Visited) + "**"},
		},
	})
	md.PlainText("")

	// Add pie chart if anything was visited
	if result.Stats.Visited > 0 {
		w.writePieChart(md, result)
	}

	// Add alert based on the crawl outcome
	w.writeAlert(md, result)
}

// writePieChart writes a mermaid pie chart for outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, result *model.CrawlResult) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Crawl Outcome Distribution"),
		piechart.WithShowData(true),
	)

	if result.PageCount() > 0 {
		chart.LabelAndIntValue("Crawled", uint64(result.PageCount()))
	}
	if result.Stats.Blocked > 0 {
		chart.LabelAndIntValue("Blocked", uint64(result.Stats.Blocked))
	}
	if result.Stats.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(result.Stats.Failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the crawl outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, result *model.CrawlResult) {
	switch {
	case result.Error != "":
		md.Cautionf(
			"The crawl aborted with an error: %s.",
			result.Error,
		)
	case result.Interrupted:
		md.Warningf(
			"The crawl was interrupted after visiting %d URL(s); results are partial.",
			result.Stats.Visited,
		)
	case result.Stats.Failed > 0:
		md.Importantf(
			"%d URL(s) could not be fetched after repeated attempts and were skipped.",
			result.Stats.Failed,
		)
	case result.Stats.Blocked > 0:
		md.Note("Some URLs were blocked by robots.txt; they count toward the page budget but were never fetched.")
	default:
		md.Tip("Every discovered URL on the start origin was crawled successfully.")
	}
	md.PlainText("")
}

// writePages writes the table of crawled pages.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Pages")
	md.PlainText("")

	if result.PageCount() == 0 {
		md.PlainText("No pages were crawled.")
		md.PlainText("")
		return
	}

	headers := []string{"URL", "Title", "Links"}

	rows := make([][]string, len(result.Pages))
	for i, p := range result.Pages {
		title := p.Title
		if title == "" {
			title = "-"
		}

		rows[i] = []string{
			"`" + truncateString(p.URL, 60) + "`",
			truncateString(title, 50),
			strconv.Itoa(p.LinkCount()),
		}
	}

	md.Table(markdown.TableSet{
		Header: headers,
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [minispider](https://github.com/minispider/minispider)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
