package repo

import (
	"context"
	"errors"

	dom "taskapi/internal/domain"
)

var (
	// ErrNotFound is returned when no task row matches the requested id.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidTask is returned when the store rejects a row (constraint violation).
	ErrInvalidTask = errors.New("invalid task")
)

// ListFilter selects one page of tasks. A nil Status means every status.
type ListFilter struct {
	Status *dom.Status
	Limit  int
	Offset int
}

// TaskRepo provides task persistence. Implementations order List results by
// created_at DESC, id DESC and return the total count of matching rows.
type TaskRepo interface {
	Find(ctx context.Context, id int64) (dom.Task, error)
	List(ctx context.Context, f ListFilter) ([]dom.Task, int64, error)
	Insert(ctx context.Context, t dom.NewTask) (dom.Task, error)
	Update(ctx context.Context, id int64, patch dom.TaskPatch) (dom.Task, error)
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

func statusArg(s *dom.Status) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}
