package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3"
)

// OllamaProvider talks to an Ollama server. Base URL and model are read
// through getters on every call so runtime settings apply without a restart.
type OllamaProvider struct {
	baseURL    func() string
	model      func() string
	httpClient *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if model == "" {
		model = defaultOllamaModel
	}
	return NewOllamaProviderWithGetters(
		func() string { return baseURL },
		func() string { return model },
	)
}

func NewOllamaProviderWithGetters(baseURL, model func() string) *OllamaProvider {
	return &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

func (o *OllamaProvider) Name() string { return string(ProviderOllama) }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	in := generateRequest{
		Model:   o.model(),
		Prompt:  prompt,
		Options: map[string]any{"temperature": 0.3},
	}
	var out generateResponse
	if err := o.call(ctx, http.MethodPost, "/api/generate", in, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// Ping lists the models installed on the server.
func (o *OllamaProvider) Ping(ctx context.Context) ([]string, error) {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := o.call(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (o *OllamaProvider) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ollama: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	url := strings.TrimRight(o.baseURL(), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama: %s %s returned %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode response: %w", err)
	}
	return nil
}
