package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	dom "taskapi/internal/domain"
	"taskapi/internal/pagination"
	"taskapi/internal/repo"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned when the referenced task does not exist.
var ErrNotFound = repo.ErrNotFound

// PageCache stores list pages between writes. Implementations report a miss
// with ok == false and a nil error. InvalidateAll advances the generation, so
// pages keyed under an older generation are never read again.
type PageCache interface {
	Generation(ctx context.Context) (int64, error)
	GetPage(ctx context.Context, key string) (list []dom.Task, total int64, ok bool, err error)
	SetPage(ctx context.Context, key string, list []dom.Task, total int64) error
	InvalidateAll(ctx context.Context) error
}

// fillTimeout bounds a shared cache fill, which outlives any single caller.
const fillTimeout = 10 * time.Second

// TaskPage is one page of a task listing.
type TaskPage struct {
	Items []dom.Task
	Page  pagination.Page
	// Status is the filter that was applied; nil when listing everything.
	Status *dom.Status
}

type TaskService struct {
	repo  repo.TaskRepo
	cache PageCache
	sf    singleflight.Group
	log   *zap.Logger
}

// NewTaskService creates a TaskService. If c is nil, caching is disabled.
func NewTaskService(r repo.TaskRepo, c PageCache, log *zap.Logger) *TaskService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskService{repo: r, cache: c, log: log.With(zap.String("component", "task_service"))}
}

// List returns one page of tasks, newest first. rawStatus filters the listing
// only when it names a known status; any other value lists everything.
func (s *TaskService) List(ctx context.Context, rawStatus string, page int) (TaskPage, error) {
	if page < 1 {
		page = 1
	}
	var filter *dom.Status
	if st, ok := dom.ParseStatus(rawStatus); ok {
		filter = &st
	}

	list, total, err := s.fetchPage(ctx, filter, page)
	if err != nil {
		return TaskPage{}, err
	}
	return TaskPage{
		Items:  list,
		Page:   pagination.New(page, pagination.PerPage, total),
		Status: filter,
	}, nil
}

type pageResult struct {
	list  []dom.Task
	total int64
}

func (s *TaskService) fetchPage(ctx context.Context, filter *dom.Status, page int) ([]dom.Task, int64, error) {
	f := repo.ListFilter{
		Status: filter,
		Limit:  pagination.PerPage,
		Offset: pagination.Offset(page, pagination.PerPage),
	}
	if s.cache == nil {
		return s.listFromStore(ctx, f)
	}

	// The generation is read before the store query: a fill racing with a
	// write lands under the old generation and is never served.
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.log.Warn("page cache generation read failed", zap.Error(err))
		return s.listFromStore(ctx, f)
	}

	key := pageKey(gen, filter, page)
	ch := s.sf.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()

		list, total, ok, err := s.cache.GetPage(fctx, key)
		if err != nil {
			s.log.Warn("page cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return pageResult{list: list, total: total}, nil
		}
		list, total, err = s.listFromStore(fctx, f)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetPage(fctx, key, list, total); err != nil {
			s.log.Warn("page cache write failed", zap.String("key", key), zap.Error(err))
		}
		return pageResult{list: list, total: total}, nil
	})

	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("list tasks: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, 0, res.Err
		}
		v := res.Val.(pageResult)
		return v.list, v.total, nil
	}
}

func (s *TaskService) listFromStore(ctx context.Context, f repo.ListFilter) ([]dom.Task, int64, error) {
	list, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return list, total, nil
}

// Get returns the task with the given id.
func (s *TaskService) Get(ctx context.Context, id int64) (dom.Task, error) {
	t, err := s.repo.Find(ctx, id)
	if err != nil {
		return dom.Task{}, wrapRepoErr("get task", err)
	}
	return t, nil
}

// Create validates in and inserts a new task. Unset fields take store defaults.
func (s *TaskService) Create(ctx context.Context, in CreateInput) (dom.Task, error) {
	if err := ValidateCreate(in); err != nil {
		return dom.Task{}, err
	}
	t, err := s.repo.Insert(ctx, newTaskFrom(in))
	if err != nil {
		return dom.Task{}, wrapRepoErr("create task", err)
	}
	s.invalidateCache(ctx)
	return t, nil
}

// Update validates in, then overwrites only the supplied fields of task id.
func (s *TaskService) Update(ctx context.Context, id int64, in UpdateInput) (dom.Task, error) {
	if err := ValidateUpdate(in); err != nil {
		return dom.Task{}, err
	}
	t, err := s.repo.Update(ctx, id, patchFrom(in))
	if err != nil {
		return dom.Task{}, wrapRepoErr("update task", err)
	}
	s.invalidateCache(ctx)
	return t, nil
}

// Delete removes task id permanently.
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return wrapRepoErr("delete task", err)
	}
	s.invalidateCache(ctx)
	return nil
}

// Ping checks that the store is reachable.
func (s *TaskService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *TaskService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.Warn("page cache invalidation failed", zap.Error(err))
	}
}

func pageKey(gen int64, filter *dom.Status, page int) string {
	status := "all"
	if filter != nil {
		status = string(*filter)
	}
	return fmt.Sprintf("%d:%s:%d", gen, status, page)
}

func wrapRepoErr(op string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
