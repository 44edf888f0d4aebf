// Package report renders a scenario run as JSON, markdown, HTML and PDF
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/storefront-e2e/internal/scenario"
)

// Supported formats and the file each one writes
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
)

var fileNames = map[string]string{
	FormatJSON:     "report.json",
	FormatMarkdown: "report.md",
	FormatHTML:     "report.html",
	FormatPDF:      "report.pdf",
}

// Title heads every rendered report
const Title = "Storefront E2E Report"

// Service writes run reports
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new report service
func NewService(logger arbor.ILogger) *Service {
	if logger == nil {
		logger = arbor.NewNoOpLogger()
	}
	return &Service{
		logger: logger,
	}
}

// Write renders run in each format into dir and returns the paths written
func (s *Service) Write(dir string, run *scenario.Run, formats []string) ([]string, error) {
	if len(formats) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	markdown := Markdown(run)
	var paths []string
	for _, format := range formats {
		name, ok := fileNames[format]
		if !ok {
			return paths, fmt.Errorf("unknown report format %q", format)
		}

		var data []byte
		var err error
		switch format {
		case FormatJSON:
			data, err = json.MarshalIndent(run, "", "  ")
		case FormatMarkdown:
			data = []byte(markdown)
		case FormatHTML:
			data, err = s.HTML(markdown)
		case FormatPDF:
			data, err = s.PDF(markdown)
		}
		if err != nil {
			return paths, fmt.Errorf("failed to render %s report: %w", format, err)
		}

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	s.logger.Info().
		Str("dir", dir).
		Strs("files", paths).
		Msg("Reports written")
	return paths, nil
}

// Markdown renders the run summary, result table and failure detail
func Markdown(run *scenario.Run) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", Title)
	fmt.Fprintf(&b, "- **Run:** %s\n", run.ID)
	fmt.Fprintf(&b, "- **Base URL:** %s\n", run.BaseURL)
	fmt.Fprintf(&b, "- **Started:** %s\n", run.Started.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Duration:** %s\n\n", run.Duration.Round(time.Millisecond))

	b.WriteString("| Passed | Failed | Skipped | Total |\n")
	b.WriteString("|--------|--------|---------|-------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n",
		run.Count(scenario.StatusPassed),
		run.Count(scenario.StatusFailed),
		run.Count(scenario.StatusSkipped),
		len(run.Results),
	)

	b.WriteString("## Results\n\n")
	if len(run.Results) == 0 {
		b.WriteString("No scenarios matched.\n")
		return b.String()
	}
	b.WriteString("| Group | Scenario | Status | Duration |\n")
	b.WriteString("|-------|----------|--------|----------|\n")
	for _, result := range run.Results {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			cell(result.Group),
			cell(result.Name),
			strings.ToUpper(string(result.Status)),
			result.Duration.Round(time.Millisecond),
		)
	}

	if run.Count(scenario.StatusFailed) == 0 {
		return b.String()
	}

	b.WriteString("\n## Failures\n")
	for _, result := range run.Results {
		if result.Failure == nil {
			continue
		}
		f := result.Failure
		fmt.Fprintf(&b, "\n### %s\n\n", result.FullName())
		fmt.Fprintf(&b, "- **Kind:** %s\n", f.Kind)
		if f.Step != "" {
			fmt.Fprintf(&b, "- **Step:** %s\n", f.Step)
		}
		if f.Expectation != "" {
			fmt.Fprintf(&b, "- **Expected:** %s\n", f.Expectation)
		}
		if f.LastValue != "" {
			fmt.Fprintf(&b, "- **Last value:** %s\n", f.LastValue)
		}
		if f.Elapsed > 0 {
			fmt.Fprintf(&b, "- **Waited:** %s over %d attempts\n", f.Elapsed.Round(time.Millisecond), f.Attempts)
		}
		if result.Artifacts != nil {
			fmt.Fprintf(&b, "- **Artifacts:** %s\n", result.Artifacts.Dir)
		}
		fmt.Fprintf(&b, "\n```\n%s\n```\n", f.Message)
		if len(result.Logs) > 0 {
			b.WriteString("\nLog:\n\n```\n")
			b.WriteString(strings.Join(result.Logs, "\n"))
			b.WriteString("\n```\n")
		}
	}
	return b.String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// HTML renders markdown as a standalone GitHub-flavoured HTML page
func (s *Service) HTML(markdown string) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)

	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", Title)
	page.WriteString(pageStyle)
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	s.logger.Debug().Int("html_len", page.Len()).Msg("HTML report rendered")
	return page.Bytes(), nil
}

const pageStyle = `<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; margin: 2em auto; max-width: 960px; color: #24292f; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #d0d7de; padding: 4px 10px; text-align: left; }
th { background: #f6f8fa; }
pre { background: #f6f8fa; padding: 10px; overflow-x: auto; }
</style>
`
