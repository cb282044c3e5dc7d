package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskflow-backend/internal/research/domain"
)

func newTestPlanner(t *testing.T, llm *stubLLM) *Planner {
	t.Helper()
	var p *Planner
	var err error
	if llm == nil {
		p, err = NewPlanner(nil, nil, zap.NewNop())
	} else {
		p, err = NewPlanner(llm, nil, zap.NewNop())
	}
	require.NoError(t, err)
	return p
}

func TestFallbackPlanIsDeterministic(t *testing.T) {
	p := newTestPlanner(t, nil)
	in := PlanInput{Title: "Research competitor pricing"}

	first := p.Plan(context.Background(), in, domain.IntentInvestigate, domain.TypeGeneral, nil)
	second := p.Plan(context.Background(), in, domain.IntentInvestigate, domain.TypeGeneral, nil)

	assert.Equal(t, first, second)
	require.GreaterOrEqual(t, len(first), minSubtasks)
	assert.LessOrEqual(t, len(first), maxSubtasks)
	assert.Equal(t, "st-1", first[0].ID)
	assert.Equal(t, "competitor pricing overview", first[0].Query)
	for _, st := range first {
		assert.NotEmpty(t, st.Query)
		assert.NotContains(t, st.Query, "{{")
	}
}

func TestFallbackMeetingPlanUsesPersona(t *testing.T) {
	p := newTestPlanner(t, nil)
	in := PlanInput{Title: "Prepare for meeting with Jane (Other)"}

	withContext := p.Plan(context.Background(), in, domain.IntentMeetingPrep, domain.TypeMeetingPrep, &domain.MeetingContext{
		ProspectName: "Jane Doe",
		Company:      "Other",
	})
	require.Len(t, withContext, 5)
	assert.Equal(t, "Jane Doe decision maker Other", withContext[0].Query)
	assert.Equal(t, "Other company overview", withContext[1].Query)

	placeholder := p.Plan(context.Background(), in, domain.IntentMeetingPrep, domain.TypeMeetingPrep, nil)
	require.Len(t, placeholder, 5)
	assert.Equal(t, "the prospect decision maker their company", placeholder[0].Query)
}

func TestPlanUsesLLMAndTruncates(t *testing.T) {
	llm := &stubLLM{replies: []string{"```json\n[" +
		`{"title":"a","query":"q1"},{"title":"b","query":"q2"},{"title":"c","query":""},` +
		`{"title":"d","query":"q4"},{"title":"e","query":"q5"},{"title":"f","query":"q6"},` +
		`{"title":"g","query":"q7"}` + "]\n```"}}
	p := newTestPlanner(t, llm)

	got := p.Plan(context.Background(), PlanInput{Title: "Research vendors"}, domain.IntentInvestigate, domain.TypeGeneral, nil)

	// seven entries truncate to six, then the one without a query is dropped
	require.Len(t, got, 5)
	assert.Equal(t, []string{"q1", "q2", "q4", "q5", "q6"}, queries(got))
	assert.Equal(t, "st-5", got[4].ID)
}

func TestPlanFallsBackOnLLMProblems(t *testing.T) {
	p := newTestPlanner(t, nil)
	in := PlanInput{Title: "Research vendors"}
	want := p.FallbackPlan(in, domain.IntentInvestigate, domain.TypeGeneral, nil)

	cases := map[string]*stubLLM{
		"error":        {err: errors.New("connection refused")},
		"not an array": {replies: []string{`{"title":"x"}`}},
		"too few":      {replies: []string{`[{"title":"a","query":"q1"}]`}},
		"garbage":      {replies: []string{`[not json]`}},
	}
	for name, llm := range cases {
		t.Run(name, func(t *testing.T) {
			got := newTestPlanner(t, llm).Plan(context.Background(), in, domain.IntentInvestigate, domain.TypeGeneral, nil)
			assert.Equal(t, want, got)
		})
	}
}

func TestTopicOf(t *testing.T) {
	assert.Equal(t, "competitor pricing", topicOf("Research competitor pricing"))
	assert.Equal(t, "Kubernetes", topicOf("Learn about Kubernetes"))
	assert.Equal(t, "Research", topicOf("Research"))
}

func queries(s []domain.Subtask) []string {
	out := make([]string, 0, len(s))
	for _, st := range s {
		out = append(out, st.Query)
	}
	return out
}
