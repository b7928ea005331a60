package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise splits a markdown document into one section per heading,
// with formatting stripped from the section text. Content before the
// first heading becomes an untitled leading section.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")

	result := &driven.NormaliseResult{}
	var title string
	var body strings.Builder

	flush := func() {
		text := strings.TrimSpace(stripMarkdown(body.String()))
		if text != "" {
			result.Sections = append(result.Sections, driven.Section{Title: title, Text: text})
		}
		body.Reset()
	}

	inCodeBlock := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		if heading, ok := headingText(trimmed); ok {
			flush()
			title = heading
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	if len(result.Sections) == 0 {
		result.Sections = []driven.Section{{Text: ""}}
	}
	return result, nil
}

// headingText returns the text of an ATX heading line.
func headingText(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	rest := strings.TrimLeft(line, "#")
	if rest == line || !strings.HasPrefix(rest, " ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimRight(rest, "# ")), true
}

var (
	inlineCode = regexp.MustCompile("`[^`]+`")
	images     = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	links      = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	emphasis   = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
)

// stripMarkdown removes common markdown formatting for plain text
// content. A simplified implementation that handles the common cases.
func stripMarkdown(content string) string {
	content = images.ReplaceAllString(content, "")
	content = links.ReplaceAllString(content, "$1")
	content = inlineCode.ReplaceAllString(content, "")
	content = emphasis.ReplaceAllString(content, "$2")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		trimmed = strings.TrimPrefix(trimmed, "> ")
		trimmed = strings.TrimPrefix(trimmed, "- ")
		trimmed = strings.TrimPrefix(trimmed, "* ")
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, "\n")
}
