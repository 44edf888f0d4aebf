package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/storefront-e2e/internal/browser"
)

// Artifact file names inside a capture directory
const (
	ScreenshotFile = "screenshot.png"
	HTMLFile       = "page.html"
	MarkdownFile   = "page.md"
	SummaryFile    = "summary.json"
)

// Options select what a capture writes
type Options struct {
	Screenshot bool
	Document   bool // page.html, page.md and summary.json
}

// Artifacts lists the files one capture produced
type Artifacts struct {
	Dir     string   `json:"dir"`
	Files   []string `json:"files"`
	Summary *Summary `json:"summary,omitempty"`
}

// Service converts and captures pages
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new snapshot service
func NewService(logger arbor.ILogger) *Service {
	if logger == nil {
		logger = arbor.NewNoOpLogger()
	}
	return &Service{
		logger: logger,
	}
}

// HTMLToMarkdown converts HTML content to markdown. Relative links resolve
// against the host of pageURL, which may be a full page address.
// A failed or empty conversion falls back to the stripped text.
func (s *Service) HTMLToMarkdown(html string, pageURL string) (string, error) {
	if html == "" {
		return "", nil
	}

	converter := md.NewConverter(md.DomainFromURL(pageURL), true, nil)
	converted, err := converter.ConvertString(html)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, using fallback")
		return stripHTMLTags(html), nil
	}

	if strings.TrimSpace(converted) == "" {
		s.logger.Warn().
			Int("html_length", len(html)).
			Msg("HTML to markdown conversion produced empty output, applying fallback")
		return stripHTMLTags(html), nil
	}

	s.logger.Debug().
		Int("markdown_length", len(converted)).
		Int("html_length", len(html)).
		Msg("HTML to markdown conversion successful")
	return converted, nil
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
	htmlEntities = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// stripHTMLTags removes tags and collapses whitespace
func stripHTMLTags(html string) string {
	stripped := tagPattern.ReplaceAllString(html, "")
	cleaned := spacePattern.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(htmlEntities.Replace(cleaned))
}

// Capture records the session's current page into dir. Every artifact is
// attempted; the first error is returned alongside whatever was written.
func (s *Service) Capture(ctx context.Context, session browser.Session, dir string, opts Options) (*Artifacts, error) {
	artifacts := &Artifacts{Dir: dir}
	if !opts.Screenshot && !opts.Document {
		return artifacts, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return artifacts, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if opts.Screenshot {
		png, err := session.Screenshot(ctx)
		if err == nil {
			err = s.write(artifacts, ScreenshotFile, png)
		}
		keep(err)
	}

	if opts.Document {
		keep(s.captureDocument(ctx, session, artifacts))
	}

	s.logger.Debug().
		Str("dir", dir).
		Strs("files", artifacts.Files).
		Msg("Page snapshot captured")
	return artifacts, firstErr
}

func (s *Service) captureDocument(ctx context.Context, session browser.Session, artifacts *Artifacts) error {
	html, err := session.HTML(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page HTML: %w", err)
	}
	pageURL, _ := session.URL(ctx)

	if err := s.write(artifacts, HTMLFile, []byte(html)); err != nil {
		return err
	}

	markdown, err := s.HTMLToMarkdown(html, pageURL)
	if err != nil {
		return err
	}
	if err := s.write(artifacts, MarkdownFile, []byte(markdown)); err != nil {
		return err
	}

	summary, err := Summarize(html)
	if err != nil {
		return err
	}
	summary.URL = pageURL
	artifacts.Summary = summary

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return s.write(artifacts, SummaryFile, data)
}

func (s *Service) write(artifacts *Artifacts, name string, data []byte) error {
	path := filepath.Join(artifacts.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	artifacts.Files = append(artifacts.Files, path)
	return nil
}
