package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	caldomain "taskflow-backend/internal/calendar/domain"
	calrepo "taskflow-backend/internal/calendar/repository"
	researchdomain "taskflow-backend/internal/research/domain"
	researchrepo "taskflow-backend/internal/research/repository"
	researchusecase "taskflow-backend/internal/research/usecase"
	taskdomain "taskflow-backend/internal/task/domain"
	taskrepo "taskflow-backend/internal/task/repository"
	taskusecase "taskflow-backend/internal/task/usecase"
	"taskflow-backend/internal/testutil"
	"taskflow-backend/pkg/config"
)

type recordingTrigger struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingTrigger) Enqueue(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, taskID)
	return true
}

type staticOwners []string

func (s staticOwners) Owners() ([]string, error) { return s, nil }

type prepFixture struct {
	uc       MeetingPrepUsecase
	events   calrepo.EventRepository
	tasks    taskusecase.TaskUsecase
	research researchrepo.ResearchRepository
	taskRepo taskrepo.TaskRepository
	trigger  *recordingTrigger
	now      time.Time
}

func newPrepFixture(t *testing.T) *prepFixture {
	t.Helper()
	db := testutil.NewDB(t, &caldomain.CalendarEvent{}, &taskdomain.Task{},
		&researchdomain.TrackingRecord{}, &researchdomain.Plan{}, &researchdomain.Result{})

	f := &prepFixture{
		events:   calrepo.NewEventRepository(db),
		research: researchrepo.NewGormResearchRepository(db),
		trigger:  &recordingTrigger{},
		now:      time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	repo := taskrepo.NewGormTaskRepository(db)
	f.taskRepo = repo
	f.tasks = taskusecase.NewTaskUsecase(repo, f.trigger, nil, zap.NewNop(), func(taskID string) error {
		return f.events.ClearPrepTask(taskID)
	})
	f.uc = NewMeetingPrepUsecase(Deps{
		Events:   f.events,
		Creator:  f.tasks,
		Tasks:    repo,
		Research: f.research,
		Owners:   staticOwners{"u1"},
		Trigger:  f.trigger,
		Window:   config.MeetingPrepWindow{MinHours: 2, MaxHours: 48},
		Now:      func() time.Time { return f.now },
	}, zap.NewNop())
	return f
}

func (f *prepFixture) event(t *testing.T, id string, in time.Duration, mutate func(*caldomain.CalendarEvent)) *caldomain.CalendarEvent {
	t.Helper()
	ev := &caldomain.CalendarEvent{
		UserID:          "u1",
		CalendarID:      caldomain.PrimaryCalendarID,
		ExternalEventID: id,
		Summary:         "Intro call " + id,
		StartTime:       f.now.Add(in),
		EndTime:         f.now.Add(in + 30*time.Minute),
		OrganizerEmail:  "organizer@acme.com",
		Attendees: []caldomain.Attendee{
			{Email: "organizer@acme.com", Organizer: true, Self: true},
			{Email: "jane@other.io", DisplayName: "Jane Doe"},
		},
		ConferenceURL: "https://meet.google.com/abc-defg-hij",
		Status:        caldomain.EventConfirmed,
		IsMeeting:     true,
	}
	if mutate != nil {
		mutate(ev)
	}
	require.NoError(t, f.events.Upsert(ev))
	return ev
}

func TestDetectHonoursWindowAndFlags(t *testing.T) {
	f := newPrepFixture(t)
	f.event(t, "too-soon", time.Hour, nil)
	inside := f.event(t, "inside", 3*time.Hour, nil)
	f.event(t, "too-late", 50*time.Hour, nil)
	f.event(t, "cancelled", 5*time.Hour, func(e *caldomain.CalendarEvent) { e.Status = caldomain.EventCancelled })
	f.event(t, "solo", 5*time.Hour, func(e *caldomain.CalendarEvent) { e.IsMeeting = false })
	done := f.event(t, "done", 6*time.Hour, nil)
	require.NoError(t, f.events.MarkPrepTaskCreated(done.ID, "task-x"))

	events, err := f.uc.Detect("u1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, inside.ExternalEventID, events[0].ExternalEventID)
}

func TestRunCreatesPrepTaskOnce(t *testing.T) {
	f := newPrepFixture(t)
	ev := f.event(t, "inside", 5*time.Hour, nil)

	res, err := f.uc.Run(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Detected)
	require.Len(t, res.Created, 1)

	task := res.Created[0]
	assert.Equal(t, "Prepare for meeting with Jane Doe (Other)", task.Title)
	assert.Contains(t, task.Description, "jane@other.io")
	assert.Contains(t, task.Description, "https://meet.google.com/abc-defg-hij")
	assert.Equal(t, taskdomain.PriorityHigh, task.Priority)
	assert.Equal(t, taskdomain.SourceMeetingPrep, task.Source)
	assert.True(t, task.HasTag(taskdomain.TagMeetingPrep))
	assert.True(t, task.HasTag(taskdomain.TagAutoGenerated))
	require.NotNil(t, task.DueDate)
	assert.True(t, task.DueDate.Equal(ev.StartTime.Add(-2*time.Hour)))

	assert.Equal(t, []string{task.ID, task.ID}, f.trigger.ids)

	stored, err := f.events.FindByPrepTask(task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.PrepTaskCreated)

	again, err := f.uc.Run(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, again.Detected)
	assert.Empty(t, again.Created)
}

func TestRunSkipsMeetingsWithoutProspect(t *testing.T) {
	f := newPrepFixture(t)
	f.event(t, "internal", 5*time.Hour, func(e *caldomain.CalendarEvent) {
		e.Attendees = []caldomain.Attendee{{Email: "organizer@acme.com"}, {Email: "noreply@other.io"}}
	})

	res, err := f.uc.Run(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Created)

	created, failed, err := f.uc.RunAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Zero(t, failed)
}

func TestResolveMeeting(t *testing.T) {
	f := newPrepFixture(t)
	ev := f.event(t, "inside", 5*time.Hour, nil)
	res, err := f.uc.Run(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	mc, err := f.uc.ResolveMeeting(res.Created[0].ID)
	require.NoError(t, err)
	require.NotNil(t, mc)
	assert.Equal(t, "Jane Doe", mc.ProspectName)
	assert.Equal(t, "jane@other.io", mc.ProspectEmail)
	assert.Equal(t, "Other", mc.Company)
	assert.Equal(t, ev.Summary, mc.MeetingTitle)

	none, err := f.uc.ResolveMeeting("plain-task")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpcomingJoinsResearchStatus(t *testing.T) {
	f := newPrepFixture(t)
	f.event(t, "with-prep", 5*time.Hour, nil)
	f.event(t, "soon", time.Hour, nil)
	res, err := f.uc.Run(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	rec, err := f.research.GetOrCreateTracking(res.Created[0].ID, "u1")
	require.NoError(t, err)
	rec.Status = researchdomain.StatusExecuting
	require.NoError(t, f.research.UpdateTracking(rec))

	items, err := f.uc.Upcoming("u1", 24)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Nil(t, items[0].PrepTask, "meeting inside min lead gets no prep task")
	require.NotNil(t, items[1].PrepTask)
	assert.Equal(t, researchdomain.StatusExecuting, items[1].ResearchStatus)
	require.NotNil(t, items[1].Prospect)
	assert.Equal(t, "Other", items[1].Prospect.Company)
}

func TestDeletingPrepTaskUnlinksEvent(t *testing.T) {
	f := newPrepFixture(t)
	ev := f.event(t, "inside", 5*time.Hour, nil)
	res, err := f.uc.Run(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, res.Created, 1)

	require.NoError(t, f.tasks.DeleteTask("u1", res.Created[0].ID))

	stored, err := f.events.FindByID(ev.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.PrepTaskID)
	assert.True(t, stored.PrepTaskCreated)

	events, err := f.uc.Detect("u1")
	require.NoError(t, err)
	assert.Empty(t, events, "deleted prep tasks are not recreated")
}

func TestPrepTaskReachesResearchWhateverTheMeetingTitle(t *testing.T) {
	f := newPrepFixture(t)
	f.event(t, "upgrade", 5*time.Hour, func(e *caldomain.CalendarEvent) { e.Summary = "Upgrade plan discussion" })

	res, err := f.uc.Run(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	task := res.Created[0]
	assert.Contains(t, task.Description, "Upgrade plan discussion")

	planner, err := researchusecase.NewPlanner(nil, nil, zap.NewNop())
	require.NoError(t, err)
	research := researchusecase.NewResearchUsecase(researchusecase.Deps{
		Repo:     f.research,
		Tasks:    f.taskRepo,
		Planner:  planner,
		Executor: researchusecase.NewExecutor(nil, nil, nil, nil, zap.NewNop()),
		Resolver: f.uc,
		Logger:   zap.NewNop(),
	})

	out := research.RequestResearch(context.Background(), task.ID)
	require.True(t, out.Success, "%+v", out.Error)
	assert.Equal(t, researchdomain.TypeMeetingPrep, out.Classification.Type)
	assert.NotEmpty(t, out.Plan.Subtasks)

	rec, err := f.research.FindTracking(task.ID)
	require.NoError(t, err)
	assert.Equal(t, researchdomain.StatusCompleted, rec.Status)
}
