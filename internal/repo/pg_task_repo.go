package repo

import (
	"context"
	"errors"
	"fmt"

	dom "taskapi/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgCheckViolation   = "23514"
	pgNotNullViolation = "23502"
)

const taskColumns = `id, title, description, status, created_at, updated_at`

// PGTaskRepo implements TaskRepo with Postgres.
type PGTaskRepo struct {
	db *pgxpool.Pool
}

// NewPGTaskRepo returns a new PGTaskRepo.
func NewPGTaskRepo(db *pgxpool.Pool) *PGTaskRepo {
	return &PGTaskRepo{db: db}
}

func (r *PGTaskRepo) Find(ctx context.Context, id int64) (dom.Task, error) {
	row := r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		return dom.Task{}, mapPGError("find task", err)
	}
	return t, nil
}

func (r *PGTaskRepo) List(ctx context.Context, f ListFilter) ([]dom.Task, int64, error) {
	status := statusArg(f.Status)

	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tasks WHERE ($1::text IS NULL OR status = $1)`,
		status,
	).Scan(&total)
	if err != nil {
		return nil, 0, mapPGError("count tasks", err)
	}

	query := `
		SELECT ` + taskColumns + `
		FROM tasks WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, status, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, mapPGError("list tasks", err)
	}
	defer rows.Close()

	list := make([]dom.Task, 0, f.Limit)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, mapPGError("scan task", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapPGError("list tasks", err)
	}
	return list, total, nil
}

// Insert leaves status to the column default when t.Status is nil.
func (r *PGTaskRepo) Insert(ctx context.Context, t dom.NewTask) (dom.Task, error) {
	var row pgx.Row
	if t.Status == nil {
		row = r.db.QueryRow(ctx, `
			INSERT INTO tasks (title, description)
			VALUES ($1, $2)
			RETURNING `+taskColumns,
			t.Title, t.Description)
	} else {
		row = r.db.QueryRow(ctx, `
			INSERT INTO tasks (title, description, status)
			VALUES ($1, $2, $3)
			RETURNING `+taskColumns,
			t.Title, t.Description, string(*t.Status))
	}
	out, err := scanTask(row)
	if err != nil {
		return dom.Task{}, mapPGError("insert task", err)
	}
	return out, nil
}

// Update writes only the columns present in patch, in one statement.
func (r *PGTaskRepo) Update(ctx context.Context, id int64, patch dom.TaskPatch) (dom.Task, error) {
	query := `
		UPDATE tasks SET
			title       = COALESCE($2, title),
			status      = COALESCE($3, status),
			description = CASE WHEN $4 THEN $5 ELSE description END,
			updated_at  = NOW()
		WHERE id = $1
		RETURNING ` + taskColumns
	row := r.db.QueryRow(ctx, query,
		id, patch.Title, statusArg(patch.Status), patch.SetDescription, patch.Description)
	out, err := scanTask(row)
	if err != nil {
		return dom.Task{}, mapPGError("update task", err)
	}
	return out, nil
}

func (r *PGTaskRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return mapPGError("delete task", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGTaskRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanTask(row pgx.Row) (dom.Task, error) {
	var (
		t      dom.Task
		status string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &t.CreatedAt, &t.UpdatedAt)
	t.Status = dom.Status(status)
	return t, err
}

// mapPGError translates driver errors into repo errors, keeping the original wrapped.
func mapPGError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch pge.Code {
		case pgCheckViolation, pgNotNullViolation:
			return fmt.Errorf("%s: %w (%s): %v", op, ErrInvalidTask, pge.ConstraintName, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
