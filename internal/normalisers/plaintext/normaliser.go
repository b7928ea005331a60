package plaintext

import (
	"context"
	"strings"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/yaml",
		"text/toml",
		"application/json",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise converts raw text into ordered sections. Form feeds mark
// page boundaries; a file without them yields a single unpaged section.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content := normaliseWhitespace(string(raw.Content))

	pages := strings.Split(content, "\f")
	if len(pages) == 1 {
		return &driven.NormaliseResult{
			Sections: []driven.Section{{Text: strings.TrimSpace(content)}},
		}, nil
	}

	result := &driven.NormaliseResult{}
	for i, page := range pages {
		text := strings.TrimSpace(page)
		if text == "" {
			continue
		}
		result.Sections = append(result.Sections, driven.Section{Page: i + 1, Text: text})
	}
	return result, nil
}

// normaliseWhitespace converts Windows line endings and strips the BOM.
func normaliseWhitespace(content string) string {
	content = strings.TrimPrefix(content, "\ufeff")
	return strings.ReplaceAll(content, "\r\n", "\n")
}
