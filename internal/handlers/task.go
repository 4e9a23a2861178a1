package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	dom "taskapi/internal/domain"
	"taskapi/internal/dto"
	"taskapi/internal/middleware"
	"taskapi/internal/pagination"
	"taskapi/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgCreated     = "Task created successfully"
	msgUpdated     = "Task updated successfully"
	msgDeleted     = "Task deleted successfully"
	msgNotFound    = "Task not found"
	msgMalformed   = "Malformed JSON body"
	msgServerError = "Server Error"
)

type TaskHandler struct {
	svc *service.TaskService
	log *zap.Logger
}

func NewTaskHandler(svc *service.TaskService, log *zap.Logger) *TaskHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskHandler{svc: svc, log: log.With(zap.String("component", "task_handler"))}
}

// List godoc
// @Summary      List tasks
// @Description  Newest first, 5 per page. An unknown status value is ignored.
// @Tags         tasks
// @Produce      json
// @Param        status  query     string  false  "Status filter"  Enums(pending, completed)
// @Param        page    query     int     false  "Page number"    default(1)
// @Success      200     {object}  dto.ListTasksResponse
// @Failure      500     {object}  dto.MessageResponse
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	page := pagination.ParsePage(c.Query(pagination.PageParam))
	res, err := h.svc.List(c.Request.Context(), c.Query("status"), page)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ListTasksResponse{
		Data:  tasksToResponses(res.Items),
		Meta:  res.Page,
		Links: res.Page.Links(listBaseURL(c, res.Status)),
	})
}

// Get godoc
// @Summary      Get a task by ID
// @Tags         tasks
// @Produce      json
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  dto.TaskEnvelope
// @Failure      404  {object}  dto.MessageResponse
// @Failure      500  {object}  dto.MessageResponse
// @Router       /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TaskEnvelope{Data: taskToResponse(t)})
}

// Create godoc
// @Summary      Create a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        body  body      dto.CreateTaskRequest  true  "Task body"
// @Success      201   {object}  dto.TaskMessageResponse
// @Failure      400   {object}  dto.MessageResponse
// @Failure      422   {object}  dto.ValidationErrorResponse
// @Failure      500   {object}  dto.MessageResponse
// @Router       /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if !bindBody(c, &req) {
		return
	}
	t, err := h.svc.Create(c.Request.Context(), service.CreateInput{
		Title:       toField(req.Title),
		Description: toField(req.Description),
		Status:      toField(req.Status),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.TaskMessageResponse{Message: msgCreated, Data: taskToResponse(t)})
}

// Update godoc
// @Summary      Update a task
// @Description  Only the supplied fields change. A null description clears it.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id    path      int                    true  "Task ID"
// @Param        body  body      dto.UpdateTaskRequest  true  "Partial update"
// @Success      200   {object}  dto.TaskMessageResponse
// @Failure      400   {object}  dto.MessageResponse
// @Failure      404   {object}  dto.MessageResponse
// @Failure      422   {object}  dto.ValidationErrorResponse
// @Failure      500   {object}  dto.MessageResponse
// @Router       /tasks/{id} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if !bindBody(c, &req) {
		return
	}
	t, err := h.svc.Update(c.Request.Context(), id, service.UpdateInput{
		Title:       toField(req.Title),
		Description: toField(req.Description),
		Status:      toField(req.Status),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TaskMessageResponse{Message: msgUpdated, Data: taskToResponse(t)})
}

// Delete godoc
// @Summary      Delete a task
// @Tags         tasks
// @Produce      json
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  dto.MessageResponse
// @Failure      404  {object}  dto.MessageResponse
// @Failure      500  {object}  dto.MessageResponse
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: msgDeleted})
}

// respondError maps service errors to HTTP responses. Unknown errors are
// logged and answered with a generic 500.
func (h *TaskHandler) respondError(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusUnprocessableEntity, dto.ValidationErrorResponse{
			Message: ve.Error(),
			Errors:  ve.Fields,
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.MessageResponse{Message: msgNotFound})
	default:
		_ = c.Error(err)
		h.log.Error("request failed",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(c)),
		)
		c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: msgServerError})
	}
}

// bindBody decodes the JSON body into req. An empty body counts as {}.
func bindBody(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, dto.MessageResponse{Message: msgMalformed})
		return false
	}
	return true
}

// parseID answers 404 for ids that cannot name a row.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, dto.MessageResponse{Message: msgNotFound})
		return 0, false
	}
	return id, true
}

// listBaseURL is the absolute URL of the listing, carrying the active filter.
func listBaseURL(c *gin.Context, status *dom.Status) url.URL {
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: c.Request.URL.Path}
	if status != nil {
		u.RawQuery = url.Values{"status": {string(*status)}}.Encode()
	}
	return u
}

func toField(o dto.OptionalString) service.Field {
	return service.Field{
		Present:   o.Present,
		Null:      o.Null,
		NotString: o.NotString,
		Value:     o.Value,
	}
}

func taskToResponse(t dom.Task) dto.TaskResponse {
	return dto.TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func tasksToResponses(list []dom.Task) []dto.TaskResponse {
	out := make([]dto.TaskResponse, len(list))
	for i := range list {
		out[i] = taskToResponse(list[i])
	}
	return out
}
