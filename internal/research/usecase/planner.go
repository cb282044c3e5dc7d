package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"taskflow-backend/internal/research/domain"
	"taskflow-backend/pkg/ai"
	"taskflow-backend/pkg/metrics"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	minSubtasks = 3
	maxSubtasks = 6
)

const (
	placeholderName    = "the prospect"
	placeholderCompany = "their company"
	placeholderRole    = "decision maker"
)

//go:embed templates.yaml
var templatesYAML []byte

type queryTemplate struct {
	Title string `yaml:"title"`
	Query string `yaml:"query"`
}

type templateSet struct {
	Intents     map[domain.Intent][]queryTemplate `yaml:"intents"`
	MeetingPrep []queryTemplate                   `yaml:"meeting_prep"`
}

// PlanInput is the task text the planner works from
type PlanInput struct {
	Title       string
	Description string
}

// Planner turns a task into search subtasks
type Planner struct {
	llm       ai.Provider
	templates templateSet
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPlanner loads the fallback templates. llm may be nil.
func NewPlanner(llm ai.Provider, m *metrics.Metrics, logger *zap.Logger) (*Planner, error) {
	var set templateSet
	if err := yaml.Unmarshal(templatesYAML, &set); err != nil {
		return nil, fmt.Errorf("parse planner templates: %w", err)
	}
	if len(set.Intents[domain.IntentInvestigate]) < minSubtasks || len(set.MeetingPrep) < minSubtasks {
		return nil, fmt.Errorf("planner templates are incomplete")
	}
	return &Planner{
		llm:       llm,
		templates: set,
		metrics:   m,
		logger:    logger.Named("planner"),
	}, nil
}

// Plan returns between 3 and 6 subtasks. LLM failures fall back to templates and are never returned.
func (p *Planner) Plan(ctx context.Context, in PlanInput, intent domain.Intent, typ domain.Type, meeting *domain.MeetingContext) []domain.Subtask {
	if p.llm != nil {
		subtasks, err := p.planWithLLM(ctx, in, intent, typ, meeting)
		if err == nil {
			return subtasks
		}
		p.logger.Warn("llm planning failed, using templates",
			zap.String("intent", string(intent)),
			zap.Bool("transient", ai.IsTransient(err)),
			zap.Error(err))
		p.metrics.LLMFallback("plan")
	}
	return p.FallbackPlan(in, intent, typ, meeting)
}

// FallbackPlan builds the deterministic template plan
func (p *Planner) FallbackPlan(in PlanInput, intent domain.Intent, typ domain.Type, meeting *domain.MeetingContext) []domain.Subtask {
	topic := topicOf(in.Title)

	var templates []queryTemplate
	replacer := strings.NewReplacer("{{topic}}", topic)
	if typ == domain.TypeMeetingPrep || intent == domain.IntentMeetingPrep {
		templates = p.templates.MeetingPrep
		name, company, role := persona(meeting)
		replacer = strings.NewReplacer(
			"{{topic}}", topic,
			"{{name}}", name,
			"{{company}}", company,
			"{{role}}", role,
		)
	} else {
		templates = p.templates.Intents[intent]
		if len(templates) == 0 {
			templates = p.templates.Intents[domain.IntentInvestigate]
		}
	}

	subtasks := make([]domain.Subtask, 0, len(templates))
	for _, t := range templates {
		subtasks = append(subtasks, domain.Subtask{
			Title: t.Title,
			Query: strings.Join(strings.Fields(replacer.Replace(t.Query)), " "),
		})
	}
	return numberSubtasks(truncate(subtasks))
}

type llmSubtask struct {
	Title string `json:"title"`
	Query string `json:"query"`
}

func (p *Planner) planWithLLM(ctx context.Context, in PlanInput, intent domain.Intent, typ domain.Type, meeting *domain.MeetingContext) ([]domain.Subtask, error) {
	raw, err := p.llm.Complete(ctx, buildPlanPrompt(in, intent, typ, meeting))
	if err != nil {
		return nil, err
	}

	arr := ai.ExtractJSONArray(raw)
	if arr == "" {
		return nil, fmt.Errorf("planner response has no JSON array")
	}
	var items []llmSubtask
	if err := json.Unmarshal([]byte(arr), &items); err != nil {
		return nil, fmt.Errorf("decode planner response: %w", err)
	}

	subtasks := make([]domain.Subtask, 0, len(items))
	for _, it := range truncateLLM(items) {
		query := strings.TrimSpace(it.Query)
		if query == "" {
			continue
		}
		title := strings.TrimSpace(it.Title)
		if title == "" {
			title = query
		}
		subtasks = append(subtasks, domain.Subtask{Title: title, Query: query})
	}
	if len(subtasks) < minSubtasks {
		return nil, fmt.Errorf("planner returned %d usable subtasks", len(subtasks))
	}
	return numberSubtasks(subtasks), nil
}

func buildPlanPrompt(in PlanInput, intent domain.Intent, typ domain.Type, meeting *domain.MeetingContext) string {
	var b strings.Builder
	if typ == domain.TypeMeetingPrep {
		name, company, role := persona(meeting)
		b.WriteString("You are preparing a salesperson for an upcoming meeting.\n")
		fmt.Fprintf(&b, "Meeting task: %s\n", in.Title)
		if meeting != nil && meeting.MeetingTitle != "" {
			fmt.Fprintf(&b, "Calendar event: %s at %s\n", meeting.MeetingTitle, meeting.MeetingStart.Format("2006-01-02 15:04 MST"))
		}
		fmt.Fprintf(&b, "Prospect: %s (%s) at %s\n\n", name, role, company)
		b.WriteString("Write exactly 5 web search queries, one per category:\n")
		b.WriteString("1. Prospect background\n2. Company overview\n3. Recent company news\n4. Industry and competitors\n5. Priorities and challenges\n\n")
	} else {
		fmt.Fprintf(&b, "Break this task into %d to %d focused web searches.\n", minSubtasks, maxSubtasks)
		fmt.Fprintf(&b, "Task: %s\n", in.Title)
		if d := strings.TrimSpace(in.Description); d != "" {
			fmt.Fprintf(&b, "Details: %s\n", d)
		}
		fmt.Fprintf(&b, "Research goal: %s\n\n", intentGoal(intent))
	}
	b.WriteString(`Respond with only a JSON array like [{"title": "short name", "query": "search query"}].`)
	return b.String()
}

func intentGoal(intent domain.Intent) string {
	switch intent {
	case domain.IntentCompare:
		return "compare the options side by side"
	case domain.IntentLearn:
		return "learn the topic from the basics up"
	case domain.IntentDecide:
		return "gather what is needed to make a decision"
	default:
		return "investigate the topic and collect the key facts"
	}
}

func persona(meeting *domain.MeetingContext) (name, company, role string) {
	name, company, role = placeholderName, placeholderCompany, placeholderRole
	if meeting == nil {
		return
	}
	if meeting.ProspectName != "" {
		name = meeting.ProspectName
	} else if meeting.ProspectEmail != "" {
		name = meeting.ProspectEmail
	}
	if meeting.Company != "" {
		company = meeting.Company
	}
	if meeting.ProspectRole != "" {
		role = meeting.ProspectRole
	}
	return
}

var leadingVerbs = map[string]bool{
	"research": true, "investigate": true, "explore": true, "compare": true, "analyze": true,
	"analyse": true, "evaluate": true, "study": true, "learn": true, "understand": true,
	"review": true, "assess": true, "prepare": true,
}

// topicOf drops a leading research verb so templates read naturally
func topicOf(title string) string {
	fields := strings.Fields(title)
	if len(fields) > 1 && leadingVerbs[strings.ToLower(fields[0])] {
		fields = fields[1:]
		if len(fields) > 1 && (strings.EqualFold(fields[0], "about") || strings.EqualFold(fields[0], "for")) {
			fields = fields[1:]
		}
	}
	return strings.Join(fields, " ")
}

func truncate(s []domain.Subtask) []domain.Subtask {
	if len(s) > maxSubtasks {
		return s[:maxSubtasks]
	}
	return s
}

func truncateLLM(s []llmSubtask) []llmSubtask {
	if len(s) > maxSubtasks {
		return s[:maxSubtasks]
	}
	return s
}

func numberSubtasks(s []domain.Subtask) []domain.Subtask {
	for i := range s {
		s[i].ID = fmt.Sprintf("st-%d", i+1)
	}
	return s
}
