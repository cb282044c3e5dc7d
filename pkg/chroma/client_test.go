package chroma

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskflow-backend/pkg/config"
)

func TestDocumentIDIsStablePerOwnerAndURL(t *testing.T) {
	a := documentID("owner-1", "https://example.com/a")
	assert.Equal(t, a, documentID("owner-1", "https://example.com/a"))
	assert.NotEqual(t, a, documentID("owner-2", "https://example.com/a"))
	assert.NotEqual(t, a, documentID("owner-1", "https://example.com/b"))
}

func TestSnippetFromDocument(t *testing.T) {
	assert.Equal(t, "body text", snippetFromDocument("Title\n\nbody text"))
	assert.Equal(t, "no title", snippetFromDocument("no title"))
}

func TestNewKnowledgeBase_RequiresKeys(t *testing.T) {
	_, err := NewKnowledgeBase(context.Background(), &config.Config{}, zap.NewNop())
	require.Error(t, err)

	_, err = NewKnowledgeBase(context.Background(), &config.Config{ChromaAPIKey: "x"}, zap.NewNop())
	require.Error(t, err)
}

func TestClipKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))

	text := strings.Repeat("a", maxDocumentLength-1) + "é and more"
	out := clip(text, maxDocumentLength)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, maxDocumentLength-1, len(out))

	assert.Equal(t, "日本", clip("日本語", 8))
}
