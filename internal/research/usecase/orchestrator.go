package usecase

import (
	"context"
	"fmt"
	"time"

	"taskflow-backend/internal/research/domain"
	"taskflow-backend/internal/research/repository"
	taskdomain "taskflow-backend/internal/task/domain"
	"taskflow-backend/pkg/fcm"
	"taskflow-backend/pkg/metrics"
	"taskflow-backend/pkg/search"

	"go.uber.org/zap"
)

// Deps groups the orchestrator collaborators. Resolver, Knowledge and Pusher are optional.
type Deps struct {
	Repo      repository.ResearchRepository
	Tasks     TaskReader
	Profiles  ProfileReader
	Planner   *Planner
	Executor  *Executor
	Resolver  ContextResolver
	Knowledge KnowledgeIndexer
	Pusher    Pusher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	// HistoryKeep is how many plan/result pairs survive PruneHistory per task
	HistoryKeep int
}

type orchestrator struct {
	repo        repository.ResearchRepository
	tasks       TaskReader
	profiles    ProfileReader
	planner     *Planner
	executor    *Executor
	resolver    ContextResolver
	knowledge   KnowledgeIndexer
	pusher      Pusher
	metrics     *metrics.Metrics
	logger      *zap.Logger
	historyKeep int
}

// NewResearchUsecase wires the classifier, planner and executor into the pipeline
func NewResearchUsecase(d Deps) ResearchUsecase {
	keep := d.HistoryKeep
	if keep <= 0 {
		keep = 5
	}
	return &orchestrator{
		repo:        d.Repo,
		tasks:       d.Tasks,
		profiles:    d.Profiles,
		planner:     d.Planner,
		executor:    d.Executor,
		resolver:    d.Resolver,
		knowledge:   d.Knowledge,
		pusher:      d.Pusher,
		metrics:     d.Metrics,
		logger:      d.Logger.Named("research"),
		historyKeep: keep,
	}
}

// runState is what a run has loaded or created so far, so a panic can still be recorded
type runState struct {
	task *taskdomain.Task
	rec  *domain.TrackingRecord
	plan *domain.Plan
}

func (o *orchestrator) RequestResearch(ctx context.Context, taskID string) (out Outcome) {
	start := time.Now()
	var st runState
	defer func() {
		if r := recover(); r != nil {
			out = o.recovered(ctx, taskID, &st, r)
		}
		o.metrics.ResearchRun(outcomeLabel(out), time.Since(start).Seconds())
	}()
	return o.run(ctx, taskID, &st)
}

func outcomeLabel(out Outcome) string {
	if out.Error == nil {
		return "completed"
	}
	switch out.Error.Code {
	case CodeNotEligible:
		return "not_eligible"
	case CodeTaskNotFound:
		return "task_not_found"
	}
	return "failed"
}

func (o *orchestrator) recovered(ctx context.Context, taskID string, st *runState, r any) Outcome {
	log := o.logger.With(zap.String("task_id", taskID))
	cause := fmt.Errorf("research panicked: %v", r)
	log.Error("recovered from panic", zap.Any("panic", r), zap.Stack("stack"))
	if st.task == nil || st.rec == nil {
		return failure(CodeResearchFailed, cause.Error())
	}
	return o.fail(ctx, log, st.task, st.rec, st.plan, cause)
}

func (o *orchestrator) run(ctx context.Context, taskID string, st *runState) Outcome {
	log := o.logger.With(zap.String("task_id", taskID))

	task, err := o.tasks.FindByID(taskID)
	if err != nil {
		log.Error("load task", zap.Error(err))
		return failure(CodeResearchFailed, fmt.Sprintf("load task: %v", err))
	}
	if task == nil {
		return failure(CodeTaskNotFound, "task not found")
	}
	st.task = task

	rec, err := o.repo.GetOrCreateTracking(task.ID, task.UserID)
	if err != nil {
		log.Error("tracking record", zap.Error(err))
		return failure(CodeResearchFailed, err.Error())
	}
	st.rec = rec

	// Every request restarts the state machine
	rec.LastError = ""
	if err := o.advance(rec, domain.StatusClassifying); err != nil {
		return o.fail(ctx, log, task, rec, nil, err)
	}

	role := ""
	if o.profiles != nil {
		if role, err = o.profiles.RoleHint(task.UserID); err != nil {
			log.Warn("role hint unavailable", zap.Error(err))
			role = ""
		}
	}
	class := Classify(task.Title, task.Description, role)

	var meeting *domain.MeetingContext
	if o.resolver != nil {
		if meeting, err = o.resolver.ResolveMeeting(task.ID); err != nil {
			log.Warn("meeting context unavailable", zap.Error(err))
			meeting = nil
		}
	}
	// Prep tasks exist to be researched; words in the meeting title must not veto them
	if meeting != nil || task.Source == taskdomain.SourceMeetingPrep {
		class.Type = domain.TypeMeetingPrep
		class.Eligible = true
	}

	intent := DetectIntent(task.Title, task.Description, class.Type)
	rec.Eligible = class.Eligible
	rec.Type = class.Type
	rec.Intent = intent

	if !class.Eligible {
		if err := o.advance(rec, domain.StatusNotStarted); err != nil {
			return o.fail(ctx, log, task, rec, nil, err)
		}
		out := failure(CodeNotEligible, "task is not eligible for research")
		out.Classification = class
		return out
	}

	if err := o.advance(rec, domain.StatusPlanning); err != nil {
		return o.fail(ctx, log, task, rec, nil, err)
	}
	subtasks := o.planner.Plan(ctx, PlanInput{Title: task.Title, Description: task.Description}, intent, class.Type, meeting)

	plan := &domain.Plan{
		TaskID:   task.ID,
		UserID:   task.UserID,
		Intent:   intent,
		Type:     class.Type,
		Subtasks: subtasks,
		Status:   domain.PlanInProgress,
	}
	if err := o.repo.CreatePlan(plan); err != nil {
		return o.fail(ctx, log, task, rec, nil, err)
	}
	st.plan = plan

	if err := o.advance(rec, domain.StatusExecuting); err != nil {
		return o.fail(ctx, log, task, rec, plan, err)
	}
	exec, err := o.executor.Execute(ctx, ExecuteInput{
		OwnerID:   task.UserID,
		TaskTitle: task.Title,
		Subtasks:  subtasks,
		Intent:    intent,
		Type:      class.Type,
		Meeting:   meeting,
	})
	if err != nil {
		return o.fail(ctx, log, task, rec, plan, fmt.Errorf("execute plan: %w", err))
	}

	result := &domain.Result{
		TaskID:           task.ID,
		PlanID:           plan.ID,
		UserID:           task.UserID,
		Report:           domain.ReportEnvelope{Report: exec.Report},
		RecommendedPages: exec.RecommendedPages,
		SubtaskResults:   exec.SubtaskResults,
		SourcesCount:     exec.SourcesCount,
		PagesAnalyzed:    exec.PagesAnalyzed,
	}
	if err := o.repo.SaveResult(result); err != nil {
		return o.fail(ctx, log, task, rec, plan, err)
	}
	if err := o.repo.UpdatePlanStatus(plan.ID, domain.PlanCompleted); err != nil {
		return o.fail(ctx, log, task, rec, plan, err)
	}
	plan.Status = domain.PlanCompleted
	if err := o.advance(rec, domain.StatusCompleted); err != nil {
		return o.fail(ctx, log, task, rec, plan, err)
	}

	log.Info("research completed",
		zap.String("plan_id", plan.ID),
		zap.String("intent", string(intent)),
		zap.Int("sources", exec.SourcesCount))

	o.index(ctx, log, task, exec.Sources())
	o.notify(ctx, task, result, nil)

	return Outcome{
		Success:        true,
		Classification: class,
		Plan:           plan,
		Result:         result,
	}
}

func (o *orchestrator) advance(rec *domain.TrackingRecord, status domain.Status) error {
	rec.Status = status
	return o.repo.UpdateTracking(rec)
}

// fail records the failure on the tracking record and plan, then builds the outcome
func (o *orchestrator) fail(ctx context.Context, log *zap.Logger, task *taskdomain.Task, rec *domain.TrackingRecord, plan *domain.Plan, cause error) Outcome {
	log.Error("research failed", zap.String("status", string(rec.Status)), zap.Error(cause))

	rec.Status = domain.StatusFailed
	rec.LastError = cause.Error()
	if err := o.repo.UpdateTracking(rec); err != nil {
		log.Error("record failed status", zap.Error(err))
	}
	if plan != nil {
		if err := o.repo.UpdatePlanStatus(plan.ID, domain.PlanFailed); err != nil {
			log.Error("record failed plan", zap.Error(err))
		}
		plan.Status = domain.PlanFailed
	}

	o.notify(ctx, task, nil, cause)

	out := failure(CodeResearchFailed, cause.Error())
	out.Classification = domain.Classification{Eligible: rec.Eligible, Type: rec.Type}
	out.Plan = plan
	return out
}

func (o *orchestrator) index(ctx context.Context, log *zap.Logger, task *taskdomain.Task, sources []domain.Source) {
	if o.knowledge == nil || len(sources) == 0 {
		return
	}
	raw := make([]search.RawResult, 0, len(sources))
	for _, s := range sources {
		raw = append(raw, search.RawResult{ID: s.ID, Title: s.Title, URL: s.URL, Snippet: s.Snippet})
	}
	if err := o.knowledge.IndexSources(ctx, task.UserID, task.ID, raw); err != nil {
		log.Warn("index sources", zap.Error(err))
	}
}

func (o *orchestrator) notify(ctx context.Context, task *taskdomain.Task, result *domain.Result, cause error) {
	if o.pusher == nil {
		return
	}

	n := fcm.NotificationData{
		Data:        map[string]string{"task_id": task.ID},
		ClickAction: "/tasks/" + task.ID,
	}
	if cause != nil {
		n.Title = "Research failed"
		n.Body = task.Title
		n.Data["type"] = "research_failed"
	} else {
		n.Title = "Research ready: " + task.Title
		n.Body = domain.ReportSummary(result.Report.Report)
		n.Data["type"] = "research_completed"
		n.Data["result_id"] = result.ID
	}
	if err := o.pusher.Push(ctx, task.UserID, n); err != nil {
		o.logger.Debug("research push failed", zap.String("task_id", task.ID), zap.Error(err))
	}
}

func failure(code, msg string) Outcome {
	return Outcome{Error: &OutcomeError{Code: code, Message: msg}}
}

func (o *orchestrator) CheckOwner(userID, taskID string) error {
	task, err := o.tasks.FindByID(taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return ErrTaskNotFound
	}
	if task.UserID != userID {
		return ErrForbidden
	}
	return nil
}

func (o *orchestrator) GetResults(userID, taskID string) (*ResultView, error) {
	if err := o.CheckOwner(userID, taskID); err != nil {
		return nil, err
	}

	result, err := o.repo.LatestResult(taskID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrResultNotFound
	}

	view := &ResultView{Result: result}
	plan, err := o.repo.FindPlan(result.PlanID)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		view.Intent = plan.Intent
		view.Type = plan.Type
	}
	return view, nil
}

func (o *orchestrator) GetStatus(userID, taskID string) (*domain.TrackingRecord, error) {
	if err := o.CheckOwner(userID, taskID); err != nil {
		return nil, err
	}
	rec, err := o.repo.FindTracking(taskID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &domain.TrackingRecord{TaskID: taskID, UserID: userID, Status: domain.StatusNotStarted}, nil
	}
	return rec, nil
}

func (o *orchestrator) Preview(ctx context.Context, userID, title, description string) (*Preview, error) {
	role := ""
	if o.profiles != nil {
		r, err := o.profiles.RoleHint(userID)
		if err != nil {
			return nil, err
		}
		role = r
	}

	class := Classify(title, description, role)
	intent := DetectIntent(title, description, class.Type)
	preview := &Preview{Classification: class, Intent: intent, Subtasks: []domain.Subtask{}}
	if class.Eligible {
		preview.Subtasks = o.planner.Plan(ctx, PlanInput{Title: title, Description: description}, intent, class.Type, nil)
	}
	return preview, nil
}

func (o *orchestrator) DeleteForTask(taskID string) error {
	return o.repo.DeleteByTask(taskID)
}

func (o *orchestrator) PruneHistory() (int64, error) {
	return o.repo.PruneHistory(o.historyKeep)
}
