package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	name    string
	results []RawResult
	err     error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(context.Context, string, int) ([]RawResult, error) {
	return f.results, f.err
}

func TestFallbackProvider_SkipsFailuresAndEmptyResults(t *testing.T) {
	var failed []string
	p := NewFallbackProvider(zap.NewNop(),
		&fakeProvider{name: "tavily", err: errors.New("401")},
		&fakeProvider{name: "chroma"},
		&fakeProvider{name: "duckduckgo", results: []RawResult{{URL: "a"}, {URL: "b"}, {URL: "c"}}},
	)
	p.OnFailure(func(name string) { failed = append(failed, name) })

	results, err := p.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, []string{"tavily"}, failed)
}

func TestFallbackProvider_AllEmpty(t *testing.T) {
	p := NewFallbackProvider(zap.NewNop(), &fakeProvider{name: "a"})
	_, err := p.Search(context.Background(), "q", 5)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestFallbackProvider_AllFailed(t *testing.T) {
	p := NewFallbackProvider(zap.NewNop(), &fakeProvider{name: "a", err: errors.New("boom")})
	_, err := p.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: boom")
}

func TestTavily_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme funding", body["query"])
		assert.EqualValues(t, 5, body["max_results"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{
				{"title": "Acme raises", "url": "https://news.example.com/acme", "content": "Series B"},
				{"title": "no url"},
			},
		})
	}))
	defer srv.Close()

	tv := NewTavily("key")
	tv.endpoint = srv.URL

	results, err := tv.Search(context.Background(), "acme funding", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, RawResult{ID: "tavily-1", Title: "Acme raises", URL: "https://news.example.com/acme", Snippet: "Series B"}, results[0])
}
