package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"taskflow-backend/pkg/search"
)

type stubLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Complete(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return reply, nil
}

type fakeSearch struct {
	results map[string][]search.RawResult
	errs    map[string]error
	delays  map[string]time.Duration
	panics  map[string]bool

	mu      sync.Mutex
	queries []string
}

func (f *fakeSearch) Name() string { return "fake" }

func (f *fakeSearch) Search(ctx context.Context, query string, limit int) ([]search.RawResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if d := f.delays[query]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panics[query] {
		panic("provider bug on " + query)
	}
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	hits := f.results[query]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func hit(url string) search.RawResult {
	return search.RawResult{ID: url, Title: "Title " + url, URL: url, Snippet: "About " + url}
}
