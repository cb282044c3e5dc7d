package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"taskflow-backend/internal/research/domain"
	"taskflow-backend/pkg/ai"
	"taskflow-backend/pkg/metrics"
	"taskflow-backend/pkg/search"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	resultsPerSubtask   = 5
	maxRecommendedPages = 5
	fallbackSnippets    = 5
	pagesToRead         = 3
	searchConcurrency   = 3
)

// PageReader fetches a page as readable text
type PageReader interface {
	Read(ctx context.Context, pageURL string) (string, error)
}

// ExecuteInput is everything the executor needs for one run
type ExecuteInput struct {
	OwnerID   string
	TaskTitle string
	Subtasks  []domain.Subtask
	Intent    domain.Intent
	Type      domain.Type
	Meeting   *domain.MeetingContext
}

// Execution is the synthesized output of a run
type Execution struct {
	Report           domain.Report
	RecommendedPages []domain.RecommendedPage
	SubtaskResults   []domain.SubtaskResult
	SourcesCount     int
	PagesAnalyzed    int
}

// Sources flattens subtask results in order
func (e *Execution) Sources() []domain.Source {
	var out []domain.Source
	for _, sr := range e.SubtaskResults {
		out = append(out, sr.Sources...)
	}
	return out
}

// Executor runs subtask searches and synthesizes a report
type Executor struct {
	search  search.Provider
	llm     ai.Provider
	reader  PageReader
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewExecutor builds an Executor. llm and reader may be nil.
func NewExecutor(searcher search.Provider, llm ai.Provider, reader PageReader, m *metrics.Metrics, logger *zap.Logger) *Executor {
	return &Executor{
		search:  searcher,
		llm:     llm,
		reader:  reader,
		metrics: m,
		logger:  logger.Named("executor"),
	}
}

// Execute searches every subtask, deduplicates sources by URL across subtasks in plan order,
// then synthesizes. Only a cancelled context produces an error.
func (e *Executor) Execute(ctx context.Context, in ExecuteInput) (*Execution, error) {
	raw := e.searchAll(ctx, in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results, sources := dedupe(in.Subtasks, raw)

	exec := &Execution{
		SubtaskResults: results,
		SourcesCount:   len(sources),
		PagesAnalyzed:  len(sources),
	}

	if e.llm != nil && len(sources) > 0 {
		report, pages, err := e.synthesizeWithLLM(ctx, in, sources)
		if err == nil {
			exec.Report = report
			exec.RecommendedPages = pages
			if len(pages) == 0 {
				exec.RecommendedPages = recommendFromSources(results)
			}
			return exec, nil
		}
		e.logger.Warn("llm synthesis failed, using template report",
			zap.String("owner_id", in.OwnerID),
			zap.Bool("transient", ai.IsTransient(err)),
			zap.Error(err))
		e.metrics.LLMFallback("synthesize")
	}

	exec.Report = fallbackReport(in, sources)
	exec.RecommendedPages = recommendFromSources(results)
	return exec, nil
}

// searchAll fans out one search per subtask. Each subtask writes only its own slot,
// so slot order is plan order whatever the completion order.
func (e *Executor) searchAll(ctx context.Context, in ExecuteInput) [][]search.RawResult {
	slots := make([][]search.RawResult, len(in.Subtasks))
	if e.search == nil {
		return slots
	}

	ctx = search.WithOwner(ctx, in.OwnerID)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)
	for i, st := range in.Subtasks {
		i, st := i, st
		g.Go(func() error {
			hits, err := e.searchOne(gctx, st.Query)
			if err != nil {
				if !errors.Is(err, search.ErrNoResults) {
					e.logger.Warn("subtask search failed",
						zap.String("subtask_id", st.ID),
						zap.String("query", st.Query),
						zap.Error(err))
				}
				return nil
			}
			if len(hits) > resultsPerSubtask {
				hits = hits[:resultsPerSubtask]
			}
			slots[i] = hits
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

// searchOne turns a panicking provider into a failed subtask
func (e *Executor) searchOne(ctx context.Context, query string) (hits []search.RawResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			hits, err = nil, fmt.Errorf("search provider panicked: %v", r)
		}
	}()
	return e.search.Search(ctx, query, resultsPerSubtask)
}

// dedupe walks subtasks in order keeping a URL only the first time it is seen
func dedupe(subtasks []domain.Subtask, raw [][]search.RawResult) ([]domain.SubtaskResult, []domain.Source) {
	seen := make(map[string]bool)
	results := make([]domain.SubtaskResult, len(subtasks))
	var union []domain.Source

	for i, st := range subtasks {
		sr := domain.SubtaskResult{
			SubtaskID: st.ID,
			Title:     st.Title,
			Query:     st.Query,
			Sources:   []domain.Source{},
		}
		for _, hit := range raw[i] {
			key := normalizeURL(hit.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			src := domain.Source{ID: hit.ID, Title: hit.Title, URL: hit.URL, Snippet: hit.Snippet}
			sr.Sources = append(sr.Sources, src)
			union = append(union, src)
		}
		results[i] = sr
	}
	return results, union
}

// normalizeURL lowercases scheme and host, drops fragments and trailing slashes
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

type generalSynthesis struct {
	Report           domain.GeneralReport     `json:"report"`
	RecommendedPages []domain.RecommendedPage `json:"recommended_pages"`
}

type meetingSynthesis struct {
	Report           domain.MeetingPrepReport `json:"report"`
	RecommendedPages []domain.RecommendedPage `json:"recommended_pages"`
}

func (e *Executor) synthesizeWithLLM(ctx context.Context, in ExecuteInput, sources []domain.Source) (domain.Report, []domain.RecommendedPage, error) {
	excerpts := e.readPages(ctx, sources)

	raw, err := e.llm.Complete(ctx, buildSynthesisPrompt(in, sources, excerpts))
	if err != nil {
		return nil, nil, err
	}
	obj := ai.ExtractJSON(raw)
	if obj == "" {
		return nil, nil, fmt.Errorf("synthesis response has no JSON object")
	}

	switch in.Type {
	case domain.TypeMeetingPrep:
		var out meetingSynthesis
		if err := json.Unmarshal([]byte(obj), &out); err != nil {
			return nil, nil, fmt.Errorf("decode meeting synthesis: %w", err)
		}
		if strings.TrimSpace(out.Report.Summary) == "" {
			return nil, nil, fmt.Errorf("meeting synthesis has no summary")
		}
		return &out.Report, cleanRecommendations(out.RecommendedPages, sources), nil
	default:
		var out generalSynthesis
		if err := json.Unmarshal([]byte(obj), &out); err != nil {
			return nil, nil, fmt.Errorf("decode synthesis: %w", err)
		}
		if strings.TrimSpace(out.Report.Summary) == "" {
			return nil, nil, fmt.Errorf("synthesis has no summary")
		}
		return &out.Report, cleanRecommendations(out.RecommendedPages, sources), nil
	}
}

// readPages fetches the top sources for extra prompt context. Failures are skipped.
func (e *Executor) readPages(ctx context.Context, sources []domain.Source) map[string]string {
	excerpts := make(map[string]string)
	if e.reader == nil {
		return excerpts
	}

	n := pagesToRead
	if len(sources) < n {
		n = len(sources)
	}
	texts := make([]string, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			text, err := e.reader.Read(gctx, sources[i].URL)
			if err != nil {
				e.logger.Debug("page read failed", zap.String("url", sources[i].URL), zap.Error(err))
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	_ = g.Wait()

	for i := 0; i < n; i++ {
		if texts[i] != "" {
			excerpts[sources[i].URL] = texts[i]
		}
	}
	return excerpts
}

func buildSynthesisPrompt(in ExecuteInput, sources []domain.Source, excerpts map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\nResearch intent: %s\n\nSources:\n", in.TaskTitle, in.Intent)
	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s\n%s\n%s\n", i+1, s.Title, s.URL, s.Snippet)
		if text, ok := excerpts[s.URL]; ok {
			fmt.Fprintf(&b, "Page excerpt:\n%s\n", text)
		}
		b.WriteString("\n")
	}

	if in.Type == domain.TypeMeetingPrep {
		name, company, role := persona(in.Meeting)
		fmt.Fprintf(&b, "You are briefing a salesperson before a meeting with %s (%s) at %s.\n", name, role, company)
		b.WriteString(`Respond with only a JSON object:
{"report": {"summary": "...", "prospect_profile": "...", "company_overview": "...",
 "talking_points": ["..."], "questions_to_ask": ["..."], "recent_news": ["..."]},
 "recommended_pages": [{"title": "...", "url": "...", "reason": "..."}]}`)
	} else {
		b.WriteString(`Synthesize the sources. Respond with only a JSON object:
{"report": {"summary": "...", "key_findings": ["..."], "next_steps": ["..."]},
 "recommended_pages": [{"title": "...", "url": "...", "reason": "..."}]}`)
	}
	fmt.Fprintf(&b, "\nRecommend at most %d pages, chosen from the sources above.", maxRecommendedPages)
	return b.String()
}

// cleanRecommendations keeps pages that point at known sources, up to the cap
func cleanRecommendations(pages []domain.RecommendedPage, sources []domain.Source) []domain.RecommendedPage {
	known := make(map[string]domain.Source, len(sources))
	for _, s := range sources {
		known[normalizeURL(s.URL)] = s
	}

	seen := make(map[string]bool)
	out := make([]domain.RecommendedPage, 0, maxRecommendedPages)
	for _, p := range pages {
		key := normalizeURL(p.URL)
		src, ok := known[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		if p.Title == "" {
			p.Title = src.Title
		}
		out = append(out, p)
		if len(out) == maxRecommendedPages {
			break
		}
	}
	return out
}

// recommendFromSources takes the best hit of each subtask first, then fills in order
func recommendFromSources(results []domain.SubtaskResult) []domain.RecommendedPage {
	out := make([]domain.RecommendedPage, 0, maxRecommendedPages)
	used := make(map[string]bool)
	add := func(s domain.Source, reason string) bool {
		if used[s.URL] {
			return false
		}
		used[s.URL] = true
		out = append(out, domain.RecommendedPage{Title: s.Title, URL: s.URL, Reason: reason})
		return len(out) == maxRecommendedPages
	}

	for _, sr := range results {
		if len(sr.Sources) > 0 && add(sr.Sources[0], "Top result for "+sr.Title) {
			return out
		}
	}
	for _, sr := range results {
		for _, s := range sr.Sources {
			if add(s, "Related to "+sr.Title) {
				return out
			}
		}
	}
	return out
}

// fallbackReport builds a deterministic report from the first snippets
func fallbackReport(in ExecuteInput, sources []domain.Source) domain.Report {
	var findings []string
	for i, s := range sources {
		if i == fallbackSnippets {
			break
		}
		findings = append(findings, snippetLine(s))
	}

	topic := topicOf(in.TaskTitle)
	if topic == "" {
		topic = "this task"
	}

	switch in.Type {
	case domain.TypeMeetingPrep:
		name, company, role := persona(in.Meeting)
		overview := fmt.Sprintf("No summarized overview of %s is available yet.", company)
		if len(sources) > 0 {
			overview = snippetLine(sources[0])
		}
		news := findings
		if len(news) == 0 {
			news = []string{fmt.Sprintf("No recent coverage of %s was found.", company)}
		}
		return &domain.MeetingPrepReport{
			Summary:         fmt.Sprintf("Meeting prep for %s at %s based on %d sources.", name, company, len(sources)),
			ProspectProfile: prospectProfile(in.Meeting, name, role, company),
			CompanyOverview: overview,
			TalkingPoints: []string{
				fmt.Sprintf("Ask how %s is approaching its current priorities.", company),
				"Connect their goals to the outcomes you can deliver.",
				"Agree on a concrete next step before the meeting ends.",
			},
			QuestionsToAsk: []string{
				"What prompted the conversation now?",
				"Who else is involved in the decision?",
				"What does success look like in the next quarter?",
			},
			RecentNews: news,
		}
	default:
		if len(findings) == 0 {
			findings = []string{fmt.Sprintf("No sources were found for %q.", topic)}
		}
		return &domain.GeneralReport{
			Summary:     fmt.Sprintf("Collected %d sources on %s.", len(sources), topic),
			KeyFindings: findings,
			NextSteps: []string{
				"Read the recommended pages in full.",
				"Note open questions the sources did not answer.",
				"Refine the task description and run research again if needed.",
			},
		}
	}
}

func prospectProfile(m *domain.MeetingContext, name, role, company string) string {
	if m != nil && m.ProspectEmail != "" {
		return fmt.Sprintf("%s <%s>, %s at %s.", name, m.ProspectEmail, role, company)
	}
	return fmt.Sprintf("%s, %s at %s.", name, role, company)
}

func snippetLine(s domain.Source) string {
	snippet := strings.TrimSpace(s.Snippet)
	if snippet == "" {
		return s.Title
	}
	if s.Title == "" {
		return snippet
	}
	return s.Title + ": " + snippet
}
