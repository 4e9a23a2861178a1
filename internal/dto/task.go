package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"taskapi/internal/pagination"
)

// OptionalString records how a string field appeared in a JSON body: absent,
// null, a string, or some other JSON type. It never fails to unmarshal, so a
// wrongly typed value is reported by validation instead of as a decode error.
type OptionalString struct {
	Present   bool
	Null      bool
	NotString bool
	Value     string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		o.Null = true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		o.NotString = true
		return nil
	}
	o.Value = s
	return nil
}

// CreateTaskRequest is the JSON body for POST /tasks.
type CreateTaskRequest struct {
	Title       OptionalString `json:"title" swaggertype:"string"`
	Description OptionalString `json:"description" swaggertype:"string"`
	Status      OptionalString `json:"status" swaggertype:"string" enums:"pending,completed"`
}

// UpdateTaskRequest is the JSON body for PUT/PATCH /tasks/{id}.
// Absent fields are left unchanged.
type UpdateTaskRequest struct {
	Title       OptionalString `json:"title" swaggertype:"string"`
	Description OptionalString `json:"description" swaggertype:"string"`
	Status      OptionalString `json:"status" swaggertype:"string" enums:"pending,completed"`
}

type TaskResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ListTasksResponse struct {
	Data  []TaskResponse   `json:"data"`
	Meta  pagination.Page  `json:"meta"`
	Links pagination.Links `json:"links"`
}

type TaskEnvelope struct {
	Data TaskResponse `json:"data"`
}

type TaskMessageResponse struct {
	Message string       `json:"message"`
	Data    TaskResponse `json:"data"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ValidationErrorResponse is returned with 422.
type ValidationErrorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}
