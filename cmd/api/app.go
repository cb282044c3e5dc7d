package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	authdomain "taskflow-backend/internal/auth/domain"
	authrepo "taskflow-backend/internal/auth/repository"
	authusecase "taskflow-backend/internal/auth/usecase"
	caldomain "taskflow-backend/internal/calendar/domain"
	calrepo "taskflow-backend/internal/calendar/repository"
	calusecase "taskflow-backend/internal/calendar/usecase"
	mpusecase "taskflow-backend/internal/meetingprep/usecase"
	"taskflow-backend/internal/notification"
	researchdomain "taskflow-backend/internal/research/domain"
	researchrepo "taskflow-backend/internal/research/repository"
	researchusecase "taskflow-backend/internal/research/usecase"
	"taskflow-backend/internal/scheduler"
	taskdomain "taskflow-backend/internal/task/domain"
	taskrepo "taskflow-backend/internal/task/repository"
	taskusecase "taskflow-backend/internal/task/usecase"
	"taskflow-backend/pkg/ai"
	"taskflow-backend/pkg/chroma"
	"taskflow-backend/pkg/config"
	"taskflow-backend/pkg/fcm"
	"taskflow-backend/pkg/gcal"
	"taskflow-backend/pkg/metrics"
	"taskflow-backend/pkg/search"
	"taskflow-backend/pkg/webpage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every persisted type for AutoMigrate
func Models() []interface{} {
	models := []interface{}{
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.Device{},
		&taskdomain.Task{},
		&researchdomain.TrackingRecord{},
		&researchdomain.Plan{},
		&researchdomain.Result{},
	}
	return append(models, caldomain.AllModels()...)
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// App owns every long-lived service of the process. It is built once at startup
// and torn down by Close.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	Auth        authusecase.AuthUsecase
	Tasks       taskusecase.TaskUsecase
	Research    researchusecase.ResearchUsecase
	Queue       *researchusecase.Queue
	Calendar    calusecase.ConnectionUsecase
	Sync        *calusecase.SyncEngine
	Webhooks    *calusecase.WebhookManager
	MeetingPrep mpusecase.MeetingPrepUsecase
	Scheduler   *scheduler.Scheduler
	Settings    *SettingsHandler

	pubsub *notification.PubSubDispatcher
	local  *notification.LocalDispatcher
}

// meetingResolver breaks the construction cycle between research and meeting prep:
// the orchestrator needs the resolver before the prep usecase exists.
type meetingResolver struct {
	prep mpusecase.MeetingPrepUsecase
}

func (r *meetingResolver) ResolveMeeting(taskID string) (*researchdomain.MeetingContext, error) {
	if r.prep == nil {
		return nil, nil
	}
	return r.prep.ResolveMeeting(taskID)
}

// NewApp wires repositories, providers and usecases. Optional integrations are
// switched on by the presence of their credentials.
func NewApp(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *zap.Logger) (*App, error) {
	log := logger.Named("app")
	m := metrics.New()
	app := &App{cfg: cfg, logger: logger, metrics: m}

	// Repositories
	userRepo := authrepo.NewUserRepository(db)
	deviceRepo := authrepo.NewDeviceRepository(db)
	taskRepository := taskrepo.NewGormTaskRepository(db)
	researchRepository := researchrepo.NewGormResearchRepository(db)
	eventRepo := calrepo.NewEventRepository(db)
	credentialRepo := calrepo.NewCredentialRepository(db)
	subscriptionRepo := calrepo.NewSubscriptionRepository(db)
	syncStateRepo := calrepo.NewSyncStateRepository(db)

	app.Auth = authusecase.NewAuthUsecase(userRepo, deviceRepo, cfg)

	// Push notifications (optional)
	var pusher taskusecase.Pusher
	if cfg.FirebaseCredentials != "" {
		fcmClient, err := fcm.NewClient(ctx, cfg.FirebaseCredentials, logger)
		if err != nil {
			log.Warn("FCM unavailable, push notifications disabled", zap.Error(err))
		} else {
			pusher = notification.NewPushNotifier(fcmClient, deviceRepo, logger)
		}
	} else {
		log.Info("no Firebase credentials configured, push notifications disabled")
	}

	// LLM
	app.Settings = NewSettingsHandler(cfg.OllamaBaseURL, cfg.OllamaModel)
	aiCfg := ai.Config{
		Provider:     ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey: cfg.GeminiApiKey,
		GeminiModel:  cfg.GeminiModel,
		OllamaModel:  cfg.OllamaModel,
	}
	if cfg.OllamaBaseURL != "" {
		aiCfg.OllamaBaseURLFn = app.Settings.OllamaBaseURL
		aiCfg.OllamaModelFn = app.Settings.OllamaModel
	}
	llm, err := ai.NewProvider(ctx, aiCfg, logger)
	if err != nil {
		log.Warn("LLM provider unavailable, rule-based fallbacks only", zap.Error(err))
		llm = nil
	}

	// Search chain
	var knowledge *chroma.KnowledgeBase
	if cfg.ChromaAPIKey != "" {
		knowledge, err = chroma.NewKnowledgeBase(ctx, cfg, logger)
		if err != nil {
			log.Warn("knowledge base unavailable", zap.Error(err))
			knowledge = nil
		}
	}
	searcher := buildSearch(cfg, knowledge, m, logger)

	var reader researchusecase.PageReader
	if cfg.PageFetchEnabled {
		reader = webpage.NewReader(4000)
	}

	// Research pipeline
	planner, err := researchusecase.NewPlanner(llm, m, logger)
	if err != nil {
		return nil, err
	}
	resolver := &meetingResolver{}
	deps := researchusecase.Deps{
		Repo:        researchRepository,
		Tasks:       taskRepository,
		Profiles:    app.Auth,
		Planner:     planner,
		Executor:    researchusecase.NewExecutor(searcher, llm, reader, m, logger),
		Resolver:    resolver,
		Pusher:      pusher,
		Metrics:     m,
		Logger:      logger,
		HistoryKeep: cfg.ResearchHistoryKeep,
	}
	if knowledge != nil {
		deps.Knowledge = knowledge
	}
	app.Research = researchusecase.NewResearchUsecase(deps)
	app.Queue = researchusecase.NewQueue(app.Research, cfg.ResearchWorkers, cfg.ResearchQueueSize, m, logger)

	// Tasks; deleting one drops its research and unlinks any meeting it prepares for
	app.Tasks = taskusecase.NewTaskUsecase(taskRepository, app.Queue, pusher, logger,
		app.Research.DeleteForTask,
		eventRepo.ClearPrepTask,
	)

	// Calendar
	calendarAPI := gcal.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)
	intervals := cfg.Intervals()
	creds := calusecase.NewCredentialManager(calendarAPI, credentialRepo, subscriptionRepo, syncStateRepo, logger)
	app.Sync = calusecase.NewSyncEngine(calendarAPI, creds, eventRepo, syncStateRepo, m, logger)
	app.Webhooks = calusecase.NewWebhookManager(calendarAPI, creds, subscriptionRepo, app.Sync, calusecase.WebhookConfig{
		Address:      cfg.WebhookAddress(),
		ChannelToken: cfg.WebhookChannelToken,
		RenewalLead:  intervals.RenewalLead,
	}, m, logger)
	app.Calendar = calusecase.NewConnectionUsecase(calendarAPI, creds, app.Sync, app.Webhooks, eventRepo, subscriptionRepo, syncStateRepo, logger)

	// Meeting prep
	app.MeetingPrep = mpusecase.NewMeetingPrepUsecase(mpusecase.Deps{
		Events:   eventRepo,
		Creator:  app.Tasks,
		Tasks:    taskRepository,
		Research: researchRepository,
		Owners:   creds,
		Trigger:  app.Queue,
		Pusher:   pusher,
		Window:   cfg.PrepWindow(),
	}, logger)
	resolver.prep = app.MeetingPrep
	app.Sync.AfterSync(func(ctx context.Context, userID string) {
		if _, err := app.MeetingPrep.Run(ctx, userID); err != nil {
			log.Warn("meeting prep after sync", zap.String("owner_id", userID), zap.Error(err))
		}
	})

	// Notification processing
	if cfg.GoogleProjectID != "" {
		d, err := notification.NewPubSubDispatcher(ctx, cfg.GoogleProjectID, topicName(cfg.GooglePubSubTopic), cfg.GoogleCredentials, app.Webhooks.OnNotification, logger)
		if err != nil {
			log.Warn("pubsub unavailable, processing notifications in process", zap.Error(err))
		} else {
			app.pubsub = d
			app.Webhooks.SetDispatcher(d)
		}
	}
	if app.pubsub == nil {
		app.local = notification.NewLocalDispatcher(app.Webhooks.OnNotification, 256, logger)
		app.Webhooks.SetDispatcher(app.local)
	}

	// Background jobs
	app.Scheduler = scheduler.New(m, logger)
	jobs := scheduler.Jobs{
		Prep:      app.MeetingPrep,
		Reminders: app.Tasks,
		History:   app.Research,
		Tokens:    userRepo,
		Devices:   deviceRepo,
	}
	if calendarAPI.Configured() {
		jobs.Calendar = app.Sync
		if app.Webhooks.Enabled() {
			jobs.Webhooks = app.Webhooks
		}
	} else {
		log.Info("google OAuth not configured, calendar jobs disabled")
	}
	if err := scheduler.Register(app.Scheduler, jobs, intervals); err != nil {
		return nil, err
	}

	return app, nil
}

func buildSearch(cfg *config.Config, knowledge *chroma.KnowledgeBase, m *metrics.Metrics, logger *zap.Logger) search.Provider {
	var providers []search.Provider
	for _, name := range cfg.SearchProviders {
		switch name {
		case "tavily":
			if cfg.TavilyAPIKey != "" {
				providers = append(providers, search.NewTavily(cfg.TavilyAPIKey))
			}
		case "duckduckgo":
			providers = append(providers, search.NewDuckDuckGo())
		case "chroma":
			if knowledge != nil {
				providers = append(providers, knowledge)
			}
		default:
			logger.Warn("unknown search provider ignored", zap.String("provider", name))
		}
	}
	chain := search.NewFallbackProvider(logger, providers...)
	chain.OnFailure(m.SearchFailure)
	return chain
}

// topicName accepts either a short topic name or a full projects/x/topics/y resource name
func topicName(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// Start launches the background services
func (a *App) Start(ctx context.Context) error {
	a.Queue.Start()
	if a.local != nil {
		a.local.Start()
	}
	if a.pubsub != nil {
		go a.pubsub.Start(ctx)
	}
	return a.Scheduler.Start(ctx)
}

// Close stops the background services, letting queued work finish
func (a *App) Close() {
	a.Scheduler.Stop()
	if a.local != nil {
		_ = a.local.Close()
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("close pubsub", zap.Error(err))
		}
	}
	a.Queue.Stop()
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.logger.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}
