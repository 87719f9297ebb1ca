package services

import (
	"context"

	"github.com/mycolab/apiserver/types"
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context) ([]types.Task, error)
	Get(ctx context.Context, id int) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id int) error
}

// TaskService encapsulates task use-cases.
type TaskService struct {
	repo TaskRepository
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

func (s *TaskService) List(ctx context.Context) ([]types.Task, error) {
	return s.repo.List(ctx)
}

func (s *TaskService) Get(ctx context.Context, id int) (types.Task, error) {
	return s.repo.Get(ctx, id)
}

// Create derives total_time from the start/end span before persisting.
func (s *TaskService) Create(ctx context.Context, task types.Task) (types.Task, error) {
	task.TotalTime = task.EndDatetime.Sub(task.StartDatetime).Seconds()
	return s.repo.Create(ctx, task)
}

func (s *TaskService) Update(ctx context.Context, task types.Task) (types.Task, error) {
	return s.repo.Update(ctx, task)
}

func (s *TaskService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
