package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/normalisers/markdown"
	"github.com/custodia-labs/docqa-cli/internal/normalisers/plaintext"
)

// staticNormaliser returns a fixed section for its MIME types.
type staticNormaliser struct {
	mimeTypes []string
	priority  int
	text      string
}

func (s *staticNormaliser) SupportedMIMETypes() []string { return s.mimeTypes }

func (s *staticNormaliser) Priority() int { return s.priority }

func (s *staticNormaliser) Normalise(_ context.Context, _ *domain.RawDocument) (*driven.NormaliseResult, error) {
	return &driven.NormaliseResult{Sections: []driven.Section{{Text: s.text}}}, nil
}

func TestRegistry_Normalise_UnsupportedType(t *testing.T) {
	registry := NewRegistry()
	registry.Register(plaintext.New())

	_, err := registry.Normalise(context.Background(), &domain.RawDocument{
		SourceName: "photo.png",
		MIMEType:   "image/png",
		Content:    []byte{0x89, 0x50},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestRegistry_Normalise_DispatchesByMIMEType(t *testing.T) {
	registry := NewRegistry()
	registry.Register(plaintext.New())
	registry.Register(markdown.New())

	result, err := registry.Normalise(context.Background(), &domain.RawDocument{
		SourceName: "notes.md",
		MIMEType:   "text/markdown",
		Content:    []byte("# Title\n\nSome **bold** body."),
	})

	require.NoError(t, err)
	require.Len(t, result.Sections, 1)
	assert.Equal(t, "Title", result.Sections[0].Title)
	assert.Equal(t, "Some bold body.", result.Sections[0].Text)
}

func TestRegistry_Normalise_PrefersHigherPriority(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&staticNormaliser{mimeTypes: []string{"text/plain"}, priority: 5, text: "low"})
	registry.Register(&staticNormaliser{mimeTypes: []string{"text/plain"}, priority: 50, text: "high"})

	result, err := registry.Normalise(context.Background(), &domain.RawDocument{
		MIMEType: "text/plain",
		Content:  []byte("anything"),
	})

	require.NoError(t, err)
	assert.Equal(t, "high", result.Sections[0].Text)
}

func TestRegistry_Normalise_StripsMIMEParameters(t *testing.T) {
	registry := NewRegistry()
	registry.Register(plaintext.New())

	result, err := registry.Normalise(context.Background(), &domain.RawDocument{
		MIMEType: "text/plain; charset=utf-8",
		Content:  []byte("hello"),
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", result.Sections[0].Text)
}

func TestRegistry_SupportedMIMETypes(t *testing.T) {
	registry := NewRegistry()
	registry.Register(markdown.New())

	assert.Contains(t, registry.SupportedMIMETypes(), "text/markdown")
}
