package api

import (
	"net/http"

	authdelivery "taskflow-backend/internal/auth/delivery"
	caldelivery "taskflow-backend/internal/calendar/delivery"
	mpdelivery "taskflow-backend/internal/meetingprep/delivery"
	researchdelivery "taskflow-backend/internal/research/delivery"
	taskdelivery "taskflow-backend/internal/task/delivery"

	"github.com/gin-gonic/gin"
)

// Router builds the gin engine with every route of the service
func (a *App) Router() *gin.Engine {
	if a.cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware())

	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	SetupRoutes(r, Handlers{
		Auth:        authdelivery.NewAuthHandler(a.Auth),
		Task:        taskdelivery.NewTaskHandler(a.Tasks),
		Research:    researchdelivery.NewResearchHandler(a.Research, a.Queue),
		Calendar:    caldelivery.NewCalendarHandler(a.Calendar, a.Webhooks, a.cfg.FrontendURL, a.logger),
		MeetingPrep: mpdelivery.NewMeetingPrepHandler(a.MeetingPrep),
		Settings:    a.Settings,
	}, authdelivery.AuthMiddleware(a.Auth))
	return r
}

// Handlers groups the HTTP handlers mounted by SetupRoutes
type Handlers struct {
	Auth        *authdelivery.AuthHandler
	Task        *taskdelivery.TaskHandler
	Research    *researchdelivery.ResearchHandler
	Calendar    *caldelivery.CalendarHandler
	MeetingPrep *mpdelivery.MeetingPrepHandler
	Settings    *SettingsHandler
}

func SetupRoutes(r *gin.Engine, h Handlers, requireAuth gin.HandlerFunc) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
			auth.POST("/logout", h.Auth.Logout)
			auth.GET("/me", requireAuth, h.Auth.Me)
			auth.PATCH("/profile", requireAuth, h.Auth.UpdateProfile)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(requireAuth)
		{
			fcm.POST("/register", h.Auth.RegisterDevice)
			fcm.DELETE("/:token", h.Auth.UnregisterDevice)
		}

		// Task routes (protected)
		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.GET("", h.Task.GetTasks)
			tasks.POST("", h.Task.CreateTask)
			tasks.GET("/search", h.Task.SearchTasks)
			tasks.GET("/:id", h.Task.GetTaskByID)
			tasks.PUT("/:id", h.Task.UpdateTask)
			tasks.DELETE("/:id", h.Task.DeleteTask)
			tasks.PATCH("/:id/status", h.Task.UpdateTaskStatus)
		}

		// Research routes (protected)
		research := api.Group("/research")
		research.Use(requireAuth)
		{
			research.POST("/tasks/:id", h.Research.RequestResearch)
			research.GET("/tasks/:id", h.Research.GetResults)
			research.GET("/tasks/:id/status", h.Research.GetStatus)
			research.POST("/preview", h.Research.Preview)
		}

		// Calendar routes. The OAuth callback and the push receiver are called by Google.
		calendar := api.Group("/calendar")
		{
			calendar.GET("/callback", h.Calendar.Callback)
			calendar.POST("/webhook", h.Calendar.Webhook)

			calendar.GET("/connect", requireAuth, h.Calendar.Connect)
			calendar.POST("/sync", requireAuth, h.Calendar.Sync)
			calendar.GET("/events", requireAuth, h.Calendar.GetEvents)
			calendar.GET("/events.ics", requireAuth, h.Calendar.ExportICS)
			calendar.GET("/status", requireAuth, h.Calendar.Status)
			calendar.DELETE("/connection", requireAuth, h.Calendar.Disconnect)
		}

		// Meeting prep routes (protected)
		prep := api.Group("/meeting-prep")
		prep.Use(requireAuth)
		{
			prep.GET("", h.MeetingPrep.GetUpcoming)
			prep.POST("/run", h.MeetingPrep.Run)
		}

		// Settings routes - Runtime configuration
		settings := api.Group("/settings")
		settings.Use(requireAuth)
		{
			settings.GET("/ollama", h.Settings.GetOllamaSettings)
			settings.PUT("/ollama", h.Settings.UpdateOllamaSettings)
			settings.POST("/ollama/test", h.Settings.TestOllamaConnection)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
