package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_CompleteReadsModelPerCall(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		models = append(models, req.Model)
		assert.False(t, req.Stream)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "ok " + req.Prompt, Done: true})
	}))
	defer srv.Close()

	model := "llama3"
	p := NewOllamaProviderWithGetters(func() string { return srv.URL + "/" }, func() string { return model })

	out, err := p.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok hi", out)

	model = "mistral"
	_, err = p.Complete(context.Background(), "again")
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "mistral"}, models)
}

func TestOllamaProvider_ErrorsCarryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "").Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")

	_, err = NewOllamaProvider(srv.URL, "").Ping(context.Background())
	assert.Error(t, err)
}
