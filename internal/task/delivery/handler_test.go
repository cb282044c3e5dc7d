package delivery

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskflow-backend/internal/task/domain"
	"taskflow-backend/internal/task/repository"
	"taskflow-backend/internal/task/usecase"
	"taskflow-backend/internal/testutil"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t, &domain.Task{})
	uc := usecase.NewTaskUsecase(repository.NewGormTaskRepository(db), nil, nil, zap.NewNop())
	h := NewTaskHandler(uc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", c.GetHeader("X-Test-User"))
		c.Next()
	})
	r.GET("/api/tasks", h.GetTasks)
	r.GET("/api/tasks/search", h.SearchTasks)
	r.POST("/api/tasks", h.CreateTask)
	r.GET("/api/tasks/:id", h.GetTaskByID)
	r.PATCH("/api/tasks/:id/status", h.UpdateTaskStatus)
	r.DELETE("/api/tasks/:id", h.DeleteTask)
	return r
}

func do(r *gin.Engine, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTaskLifecycle(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/tasks", "u1", map[string]string{"title": "Research competitor pricing"})
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	w = do(r, http.MethodGet, "/api/tasks/"+created.ID, "u2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPatch, "/api/tasks/"+created.ID+"/status", "u1", map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/tasks?status=completed", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Tasks []domain.Task `json:"tasks"`
		Total int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list.Total)

	w = do(r, http.MethodDelete, "/api/tasks/"+created.ID, "u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/tasks/"+created.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTaskValidation(t *testing.T) {
	r := newRouter(t)

	w := do(r, http.MethodPost, "/api/tasks", "u1", map[string]string{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_INPUT")

	w = do(r, http.MethodGet, "/api/tasks/search", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTasksFilters(t *testing.T) {
	r := newRouter(t)

	for _, body := range []map[string]interface{}{
		{"title": "Prepare board deck", "tags": []string{"meeting-prep"}},
		{"title": "Renew passport"},
	} {
		require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/tasks", "u1", body).Code)
	}

	w := do(r, http.MethodGet, "/api/tasks?tag=meeting-prep", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Tasks []domain.Task `json:"tasks"`
		Total int64         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "Prepare board deck", list.Tasks[0].Title)

	w = do(r, http.MethodGet, "/api/tasks?limit=1", "u1", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Tasks, 1)
	assert.EqualValues(t, 2, list.Total)

	w = do(r, http.MethodGet, "/api/tasks?status=archived", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/tasks?limit=abc", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
