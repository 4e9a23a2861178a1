package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	dom "taskapi/internal/domain"

	"gorm.io/gorm"
)

// taskRecord is the gorm model of the tasks table.
type taskRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Title       string    `gorm:"size:255;not null"`
	Description *string   `gorm:"type:text"`
	Status      string    `gorm:"size:16;not null;default:pending;check:chk_tasks_status,status IN ('pending','completed')"`
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (taskRecord) TableName() string {
	return "tasks"
}

func (r taskRecord) toDomain() dom.Task {
	return dom.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      dom.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// GormTaskRepo implements TaskRepo with gorm (SQLite in practice).
type GormTaskRepo struct {
	db *gorm.DB
}

// NewGormTaskRepo returns a new GormTaskRepo.
func NewGormTaskRepo(db *gorm.DB) *GormTaskRepo {
	return &GormTaskRepo{db: db}
}

// AutoMigrate creates or updates the tasks table.
func (r *GormTaskRepo) AutoMigrate() error {
	if err := r.db.AutoMigrate(&taskRecord{}); err != nil {
		return fmt.Errorf("migrate tasks: %w", err)
	}
	return nil
}

func (r *GormTaskRepo) Find(ctx context.Context, id int64) (dom.Task, error) {
	var rec taskRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, fmt.Errorf("find task: %w", err)
	}
	return rec.toDomain(), nil
}

func (r *GormTaskRepo) List(ctx context.Context, f ListFilter) ([]dom.Task, int64, error) {
	q := r.db.WithContext(ctx).Model(&taskRecord{})
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	var recs []taskRecord
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(f.Limit).Offset(f.Offset).
		Find(&recs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	list := make([]dom.Task, len(recs))
	for i := range recs {
		list[i] = recs[i].toDomain()
	}
	return list, total, nil
}

// Insert omits status when t.Status is nil so the column default applies.
func (r *GormTaskRepo) Insert(ctx context.Context, t dom.NewTask) (dom.Task, error) {
	rec := taskRecord{Title: t.Title, Description: t.Description}
	q := r.db.WithContext(ctx)
	if t.Status != nil {
		rec.Status = string(*t.Status)
	} else {
		q = q.Omit("Status")
	}
	if err := q.Create(&rec).Error; err != nil {
		return dom.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return r.Find(ctx, rec.ID)
}

func (r *GormTaskRepo) Update(ctx context.Context, id int64, patch dom.TaskPatch) (dom.Task, error) {
	updates := map[string]any{"updated_at": r.db.NowFunc()}
	if patch.Title != nil {
		updates["title"] = *patch.Title
	}
	if patch.Status != nil {
		updates["status"] = string(*patch.Status)
	}
	if patch.SetDescription {
		updates["description"] = patch.Description
	}

	res := r.db.WithContext(ctx).Model(&taskRecord{}).Where("id = ?", id).Updates(updates)
	if err := res.Error; err != nil {
		return dom.Task{}, fmt.Errorf("update task: %w", err)
	}
	if res.RowsAffected == 0 {
		return dom.Task{}, ErrNotFound
	}
	return r.Find(ctx, id)
}

func (r *GormTaskRepo) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&taskRecord{}, "id = ?", id)
	if err := res.Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormTaskRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
