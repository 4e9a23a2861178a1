package domain

import "time"

// Status is the task state flag. Only the two values below are ever stored.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPending, StatusCompleted}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// ParseStatus returns the status for raw, or false when raw is not an exact match.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.Valid()
}

// Task is the domain entity. Не зависит от Gin, Postgres, Redis.
type Task struct {
	ID          int64
	Title       string
	Description *string
	Status      Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask carries the fields of a task about to be inserted.
// A nil Status leaves the store default in place.
type NewTask struct {
	Title       string
	Description *string
	Status      *Status
}

// TaskPatch is a partial update. Nil fields stay unchanged; Description is
// applied only when SetDescription is true, so it can be cleared with nil.
type TaskPatch struct {
	Title          *string
	Status         *Status
	SetDescription bool
	Description    *string
}

// Empty reports whether the patch changes no column.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Status == nil && !p.SetDescription
}
