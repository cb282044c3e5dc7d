package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	caldomain "taskflow-backend/internal/calendar/domain"
	calrepo "taskflow-backend/internal/calendar/repository"
	researchdomain "taskflow-backend/internal/research/domain"
	taskdomain "taskflow-backend/internal/task/domain"
	taskusecase "taskflow-backend/internal/task/usecase"
	"taskflow-backend/pkg/fcm"

	"go.uber.org/zap"
)

// prepLeadTime is how long before the meeting the prep task is due
const prepLeadTime = 2 * time.Hour

type meetingPrepUsecase struct {
	Deps
	logger *zap.Logger
}

func NewMeetingPrepUsecase(d Deps, logger *zap.Logger) MeetingPrepUsecase {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &meetingPrepUsecase{Deps: d, logger: logger.Named("meeting-prep")}
}

func (u *meetingPrepUsecase) Detect(userID string) ([]*caldomain.CalendarEvent, error) {
	now := u.Now()
	from := now.Add(time.Duration(u.Window.MinHours) * time.Hour)
	to := now.Add(time.Duration(u.Window.MaxHours) * time.Hour)
	return u.Events.FindPrepCandidates(userID, from, to)
}

func (u *meetingPrepUsecase) Run(ctx context.Context, userID string) (*RunResult, error) {
	events, err := u.Detect(userID)
	if err != nil {
		return nil, err
	}

	res := &RunResult{Detected: len(events), Created: []*taskdomain.Task{}}
	for _, ev := range events {
		log := u.logger.With(zap.String("owner_id", userID), zap.String("event_id", ev.ID))

		prospect := FindProspect(ev)
		if prospect == nil {
			log.Debug("no external prospect, skipping")
			res.Skipped++
			continue
		}

		task, err := u.createPrepTask(userID, ev, prospect)
		if err != nil {
			return res, fmt.Errorf("create prep task for event %s: %w", ev.ID, err)
		}
		if err := u.Events.MarkPrepTaskCreated(ev.ID, task.ID); err != nil {
			return res, err
		}
		// The create already queued research; the event link only exists now, so ask again
		if u.Trigger != nil {
			u.Trigger.Enqueue(task.ID)
		}

		log.Info("prep task created", zap.String("task_id", task.ID), zap.String("prospect", prospect.Email))
		res.Created = append(res.Created, task)
		u.notify(ctx, userID, task, ev)
	}
	return res, nil
}

func (u *meetingPrepUsecase) RunAll(ctx context.Context) (created, failed int, err error) {
	owners, err := u.Owners.Owners()
	if err != nil {
		return 0, 0, err
	}
	for _, owner := range owners {
		if ctx.Err() != nil {
			return created, failed, ctx.Err()
		}
		res, err := u.Run(ctx, owner)
		if res != nil {
			created += len(res.Created)
		}
		if err != nil {
			failed++
			u.logger.Warn("meeting prep sweep failed", zap.String("owner_id", owner), zap.Error(err))
		}
	}
	return created, failed, nil
}

func (u *meetingPrepUsecase) ResolveMeeting(taskID string) (*researchdomain.MeetingContext, error) {
	ev, err := u.Events.FindByPrepTask(taskID)
	if err != nil || ev == nil {
		return nil, err
	}

	mc := &researchdomain.MeetingContext{
		EventID:      ev.ID,
		MeetingTitle: ev.Summary,
		MeetingStart: ev.StartTime,
	}
	if p := FindProspect(ev); p != nil {
		mc.ProspectName = p.Name
		mc.ProspectEmail = p.Email
		mc.Company = p.Company
	}
	return mc, nil
}

func (u *meetingPrepUsecase) Upcoming(userID string, hours int) ([]*PrepItem, error) {
	if hours <= 0 {
		hours = u.Window.MaxHours
	}
	now := u.Now()
	to := now.Add(time.Duration(hours) * time.Hour)

	events, err := u.Events.FindByUser(userID, calrepo.EventFilter{From: &now, To: &to, MeetingsOnly: true})
	if err != nil {
		return nil, err
	}

	items := make([]*PrepItem, 0, len(events))
	var taskIDs []string
	for _, ev := range events {
		item := &PrepItem{Event: ev, Prospect: FindProspect(ev)}
		if ev.PrepTaskID != nil {
			task, err := u.Tasks.FindByID(*ev.PrepTaskID)
			if err != nil {
				return nil, err
			}
			if task != nil {
				item.PrepTask = task
				taskIDs = append(taskIDs, task.ID)
			}
		}
		items = append(items, item)
	}

	if u.Research == nil || len(taskIDs) == 0 {
		return items, nil
	}
	tracking, err := u.Research.FindTrackingByTasks(taskIDs)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.PrepTask == nil {
			continue
		}
		if rec, ok := tracking[item.PrepTask.ID]; ok {
			item.ResearchStatus = rec.Status
		} else {
			item.ResearchStatus = researchdomain.StatusNotStarted
		}
	}
	return items, nil
}

func (u *meetingPrepUsecase) createPrepTask(userID string, ev *caldomain.CalendarEvent, p *Prospect) (*taskdomain.Task, error) {
	due := ev.StartTime.Add(-prepLeadTime).UTC().Format(time.RFC3339)
	return u.Creator.CreateTask(userID, taskusecase.CreateTaskRequest{
		Title:       PrepTitle(p),
		Description: PrepDescription(ev, p),
		DueDate:     &due,
		Priority:    string(taskdomain.PriorityHigh),
		Tags:        []string{taskdomain.TagMeetingPrep, taskdomain.TagAutoGenerated},
		Source:      taskdomain.SourceMeetingPrep,
	})
}

// PrepTitle is the title of a generated prep task
func PrepTitle(p *Prospect) string {
	if p.Company == "" {
		return "Prepare for meeting with " + p.Name
	}
	return fmt.Sprintf("Prepare for meeting with %s (%s)", p.Name, p.Company)
}

// PrepDescription is the description of a generated prep task
func PrepDescription(ev *caldomain.CalendarEvent, p *Prospect) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Meeting: %s\n", ev.Summary)
	fmt.Fprintf(&b, "When: %s\n", ev.StartTime.UTC().Format("Mon, 02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&b, "Prospect: %s <%s>\n", p.Name, p.Email)
	if p.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", p.Company)
	}
	if ev.ConferenceURL != "" {
		fmt.Fprintf(&b, "Join: %s\n", ev.ConferenceURL)
	}
	b.WriteString("Research the prospect and their company before the meeting.")
	return b.String()
}

func (u *meetingPrepUsecase) notify(ctx context.Context, userID string, task *taskdomain.Task, ev *caldomain.CalendarEvent) {
	if u.Pusher == nil {
		return
	}
	err := u.Pusher.Push(ctx, userID, fcm.NotificationData{
		Title:       "Meeting prep added",
		Body:        task.Title,
		Data:        map[string]string{"type": "meeting_prep_created", "task_id": task.ID, "event_id": ev.ID},
		ClickAction: "/tasks/" + task.ID,
	})
	if err != nil {
		u.logger.Debug("prep push failed", zap.String("task_id", task.ID), zap.Error(err))
	}
}
