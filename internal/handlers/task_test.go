package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskapi/internal/dto"
	"taskapi/internal/pagination"
	"taskapi/internal/repo"
	"taskapi/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	db, err := repo.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	r := repo.NewGormTaskRepo(db)
	require.NoError(t, r.AutoMigrate())

	h := NewTaskHandler(service.NewTaskService(r, nil, zap.NewNop()), zap.NewNop())
	e := gin.New()
	api := e.Group("/api")
	api.GET("/tasks", h.List)
	api.POST("/tasks", h.Create)
	api.GET("/tasks/:id", h.Get)
	api.PUT("/tasks/:id", h.Update)
	api.PATCH("/tasks/:id", h.Update)
	api.DELETE("/tasks/:id", h.Delete)
	return e
}

func do(t *testing.T, e *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createTask(t *testing.T, e *gin.Engine, body string) dto.TaskResponse {
	t.Helper()
	w := do(t, e, http.MethodPost, "/api/tasks", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.TaskMessageResponse](t, w).Data
}

func TestTaskHandler_List(t *testing.T) {
	e := newTestRouter(t)
	for i := 1; i <= 10; i++ {
		status := "pending"
		if i%2 == 0 {
			status = "completed"
		}
		createTask(t, e, fmt.Sprintf(`{"title":"task %d","status":%q}`, i, status))
	}

	t.Run("first page", func(t *testing.T) {
		w := do(t, e, http.MethodGet, "/api/tasks", "")
		require.Equal(t, http.StatusOK, w.Code)
		res := decode[dto.ListTasksResponse](t, w)

		require.Len(t, res.Data, 5)
		assert.Equal(t, "task 10", res.Data[0].Title)
		assert.Equal(t, int64(10), res.Meta.Total)
		assert.Equal(t, 1, res.Meta.CurrentPage)
		assert.Equal(t, 2, res.Meta.LastPage)
		assert.Equal(t, 5, res.Meta.PerPage)
		assert.Equal(t, "http://example.com/api/tasks?page=1", res.Links.First)
		assert.Equal(t, "http://example.com/api/tasks?page=2", res.Links.Last)
		assert.Nil(t, res.Links.Prev)
		require.NotNil(t, res.Links.Next)
		assert.Equal(t, "http://example.com/api/tasks?page=2", *res.Links.Next)
	})

	t.Run("second page", func(t *testing.T) {
		res := decode[dto.ListTasksResponse](t, do(t, e, http.MethodGet, "/api/tasks?page=2", ""))
		require.Len(t, res.Data, 5)
		assert.Equal(t, "task 5", res.Data[0].Title)
		assert.Equal(t, "task 1", res.Data[4].Title)
		require.NotNil(t, res.Links.Prev)
		assert.Nil(t, res.Links.Next)
	})

	t.Run("status filter", func(t *testing.T) {
		res := decode[dto.ListTasksResponse](t, do(t, e, http.MethodGet, "/api/tasks?status=completed", ""))
		assert.Equal(t, int64(5), res.Meta.Total)
		assert.Equal(t, 1, res.Meta.LastPage)
		for _, task := range res.Data {
			assert.Equal(t, "completed", task.Status)
		}
		assert.Equal(t, "http://example.com/api/tasks?page=1&status=completed", res.Links.First)
	})

	t.Run("unknown status is ignored", func(t *testing.T) {
		res := decode[dto.ListTasksResponse](t, do(t, e, http.MethodGet, "/api/tasks?status=bogus", ""))
		assert.Equal(t, int64(10), res.Meta.Total)
		assert.Equal(t, "http://example.com/api/tasks?page=1", res.Links.First)
	})

	t.Run("page past the end", func(t *testing.T) {
		w := do(t, e, http.MethodGet, "/api/tasks?page=9", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"data":[]`)
		res := decode[dto.ListTasksResponse](t, w)
		assert.Equal(t, 9, res.Meta.CurrentPage)
		assert.Equal(t, 2, res.Meta.LastPage)
	})

	t.Run("huge page number", func(t *testing.T) {
		w := do(t, e, http.MethodGet, "/api/tasks?page=9223372036854775807", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"data":[]`)
		res := decode[dto.ListTasksResponse](t, w)
		assert.Equal(t, pagination.MaxPage, res.Meta.CurrentPage)
		assert.Nil(t, res.Links.Next)
	})

	t.Run("forwarded https", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)
		res := decode[dto.ListTasksResponse](t, w)
		assert.True(t, strings.HasPrefix(res.Links.First, "https://example.com/"))
	})
}

func TestTaskHandler_ListEmpty(t *testing.T) {
	e := newTestRouter(t)

	w := do(t, e, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
	res := decode[dto.ListTasksResponse](t, w)
	assert.Equal(t, int64(0), res.Meta.Total)
	assert.Equal(t, 1, res.Meta.LastPage)
}

func TestTaskHandler_Create(t *testing.T) {
	e := newTestRouter(t)

	t.Run("defaults", func(t *testing.T) {
		w := do(t, e, http.MethodPost, "/api/tasks", `{"title":"Buy milk"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		res := decode[dto.TaskMessageResponse](t, w)
		assert.Equal(t, "Task created successfully", res.Message)
		assert.NotZero(t, res.Data.ID)
		assert.Equal(t, "Buy milk", res.Data.Title)
		assert.Nil(t, res.Data.Description)
		assert.Equal(t, "pending", res.Data.Status)
		assert.False(t, res.Data.CreatedAt.IsZero())
		assert.Contains(t, w.Body.String(), `"description":null`)
	})

	t.Run("echoes all fields", func(t *testing.T) {
		res := createTask(t, e, `{"title":"Ship","description":"v1.0","status":"completed"}`)
		require.NotNil(t, res.Description)
		assert.Equal(t, "v1.0", *res.Description)
		assert.Equal(t, "completed", res.Status)

		got := decode[dto.TaskEnvelope](t, do(t, e, http.MethodGet, fmt.Sprintf("/api/tasks/%d", res.ID), ""))
		assert.Equal(t, res.ID, got.Data.ID)
		assert.Equal(t, "Ship", got.Data.Title)
	})

	t.Run("validation", func(t *testing.T) {
		w := do(t, e, http.MethodPost, "/api/tasks", `{"status":"archived"}`)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		res := decode[dto.ValidationErrorResponse](t, w)
		assert.Equal(t, "The title field is required. (and 1 more error)", res.Message)
		assert.Contains(t, res.Errors, "title")
		assert.Contains(t, res.Errors, "status")
	})

	t.Run("null status", func(t *testing.T) {
		w := do(t, e, http.MethodPost, "/api/tasks", `{"title":"x","status":null}`)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		res := decode[dto.ValidationErrorResponse](t, w)
		assert.Equal(t, []string{"The selected status is invalid."}, res.Errors["status"])
	})

	t.Run("title too long", func(t *testing.T) {
		w := do(t, e, http.MethodPost, "/api/tasks", fmt.Sprintf(`{"title":%q}`, strings.Repeat("x", 256)))
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		res := decode[dto.ValidationErrorResponse](t, w)
		assert.Equal(t, []string{"The title field must not be greater than 255 characters."}, res.Errors["title"])
	})

	t.Run("wrong type", func(t *testing.T) {
		w := do(t, e, http.MethodPost, "/api/tasks", `{"title":42}`)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		res := decode[dto.ValidationErrorResponse](t, w)
		assert.Contains(t, res.Errors, "title")
	})

	t.Run("empty body", func(t *testing.T) {
		w := do(t, e, http.MethodPost, "/api/tasks", "")
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := do(t, e, http.MethodPost, "/api/tasks", `{"title":`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTaskHandler_Update(t *testing.T) {
	e := newTestRouter(t)
	created := createTask(t, e, `{"title":"Draft","description":"first"}`)
	path := fmt.Sprintf("/api/tasks/%d", created.ID)

	t.Run("partial update keeps other fields", func(t *testing.T) {
		w := do(t, e, http.MethodPut, path, `{"status":"completed"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res := decode[dto.TaskMessageResponse](t, w)
		assert.Equal(t, "Task updated successfully", res.Message)
		assert.Equal(t, "Draft", res.Data.Title)
		require.NotNil(t, res.Data.Description)
		assert.Equal(t, "first", *res.Data.Description)
		assert.Equal(t, "completed", res.Data.Status)
	})

	t.Run("patch clears description", func(t *testing.T) {
		w := do(t, e, http.MethodPatch, path, `{"title":"Final","description":null}`)
		require.Equal(t, http.StatusOK, w.Code)
		res := decode[dto.TaskMessageResponse](t, w)
		assert.Equal(t, "Final", res.Data.Title)
		assert.Nil(t, res.Data.Description)
		assert.Equal(t, "completed", res.Data.Status)
	})

	t.Run("invalid status", func(t *testing.T) {
		w := do(t, e, http.MethodPut, path, `{"status":"done"}`)
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		res := decode[dto.ValidationErrorResponse](t, w)
		assert.Equal(t, []string{"The selected status is invalid."}, res.Errors["status"])
	})

	t.Run("missing task", func(t *testing.T) {
		w := do(t, e, http.MethodPut, "/api/tasks/9999", `{"title":"x"}`)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Task not found", decode[dto.MessageResponse](t, w).Message)
	})
}

func TestTaskHandler_Delete(t *testing.T) {
	e := newTestRouter(t)
	created := createTask(t, e, `{"title":"Temp"}`)
	path := fmt.Sprintf("/api/tasks/%d", created.ID)

	w := do(t, e, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Task deleted successfully", decode[dto.MessageResponse](t, w).Message)

	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodGet, path, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodDelete, path, "").Code)

	createTask(t, e, `{"title":"Keep"}`)
	w = do(t, e, http.MethodDelete, "/api/tasks/9999", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Task not found", decode[dto.MessageResponse](t, w).Message)
	res := decode[dto.ListTasksResponse](t, do(t, e, http.MethodGet, "/api/tasks", ""))
	assert.Equal(t, int64(1), res.Meta.Total)
}

func TestTaskHandler_NotFound(t *testing.T) {
	e := newTestRouter(t)

	for _, path := range []string{"/api/tasks/9999", "/api/tasks/abc", "/api/tasks/0", "/api/tasks/-3"} {
		w := do(t, e, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "Task not found", decode[dto.MessageResponse](t, w).Message, path)
	}
}
