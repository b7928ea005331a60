// Package chunker splits normalised document text into overlapping,
// token-target chunks, preferring paragraph and sentence boundaries.
package chunker

import (
	"context"
	"strings"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// DefaultChunkSize is the default target chunk size in tokens.
const DefaultChunkSize = 600

// DefaultChunkOverlap is the default overlap between chunks in tokens.
const DefaultChunkOverlap = 120

// Processor splits document sections into overlapping chunks.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the target chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't swallow the whole chunk
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Process splits the normalised sections of a document into chunks.
// Chunk IDs are the deterministic dedup keys derived from document ID,
// position and text, so the same content always chunks identically.
func (p *Processor) Process(_ context.Context, doc *domain.Document, sections []driven.Section) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	index := 0

	for _, section := range sections {
		for _, span := range p.splitSection(section.Text) {
			text := strings.TrimSpace(span)
			if text == "" {
				continue
			}

			chunk := domain.Chunk{
				ID:         domain.ChunkID(doc.ID, index, text),
				DocumentID: doc.ID,
				Index:      index,
				Text:       text,
				Section:    section.Title,
				Page:       section.Page,
				TokenCount: len(strings.Fields(text)),
				Metadata:   chunkMetadata(doc, section),
			}
			chunks = append(chunks, chunk)
			index++
		}
	}

	return chunks, nil
}

// splitSection breaks section text into token-bounded spans. Sentences
// are the atomic unit; paragraph breaks are preserved inside a span.
func (p *Processor) splitSection(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var spans []string
	var current []string
	tokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		spans = append(spans, strings.Join(current, " "))

		// Carry trailing sentences forward as overlap
		var carried []string
		carriedTokens := 0
		for i := len(current) - 1; i >= 0 && carriedTokens < p.overlap; i-- {
			carried = append([]string{current[i]}, carried...)
			carriedTokens += len(strings.Fields(current[i]))
		}
		// Never carry the entire chunk or the loop cannot advance
		if len(carried) == len(current) {
			carried = carried[1:]
		}
		current = carried
		tokens = 0
		for _, s := range current {
			tokens += len(strings.Fields(s))
		}
	}

	for _, sentence := range sentences {
		n := len(strings.Fields(sentence))
		if tokens > 0 && tokens+n > p.chunkSize {
			flush()
		}
		current = append(current, sentence)
		tokens += n
	}

	if len(current) > 0 {
		last := strings.Join(current, " ")
		// The overlap carry can leave a trailing span that is a strict
		// suffix of the previous one; drop it.
		if len(spans) == 0 || !strings.HasSuffix(spans[len(spans)-1], last) {
			spans = append(spans, last)
		}
	}

	return spans
}

// splitSentences splits text into sentences, treating paragraph breaks
// as hard boundaries.
func splitSentences(text string) []string {
	var sentences []string
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		var current strings.Builder
		for _, r := range paragraph {
			current.WriteRune(r)
			if r == '.' || r == '!' || r == '?' || r == '\n' {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func chunkMetadata(doc *domain.Document, section driven.Section) map[string]string {
	metadata := make(map[string]string, len(doc.Metadata)+3)
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	metadata["document_id"] = doc.ID
	metadata["source_name"] = doc.SourceName
	if section.Title != "" {
		metadata["section"] = section.Title
	}
	return metadata
}
