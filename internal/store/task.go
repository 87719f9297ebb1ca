package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mycolab/apiserver/types"
)

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) List(ctx context.Context) ([]types.Task, error) {
	const query = `
		SELECT id, name, description, start_datetime, end_datetime, total_time, memo, user_id
		FROM tasks
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]types.Task, 0)
	for rows.Next() {
		var task types.Task
		if err := rows.Scan(
			&task.ID,
			&task.Name,
			&task.Description,
			&task.StartDatetime,
			&task.EndDatetime,
			&task.TotalTime,
			&task.Memo,
			&task.UserID,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Get(ctx context.Context, id int) (types.Task, error) {
	const query = `
		SELECT id, name, description, start_datetime, end_datetime, total_time, memo, user_id
		FROM tasks
		WHERE id = $1`
	var task types.Task
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID,
		&task.Name,
		&task.Description,
		&task.StartDatetime,
		&task.EndDatetime,
		&task.TotalTime,
		&task.Memo,
		&task.UserID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	const query = `
		INSERT INTO tasks (name, description, start_datetime, end_datetime, total_time, memo, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		task.Name,
		task.Description,
		task.StartDatetime,
		task.EndDatetime,
		task.TotalTime,
		task.Memo,
		task.UserID,
	).Scan(&task.ID); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	const query = `
		UPDATE tasks
		SET name = $1,
			description = $2,
			memo = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, task.Name, task.Description, task.Memo, task.ID)
	if err != nil {
		return types.Task{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Task{}, err
	}
	if affected == 0 {
		return types.Task{}, ErrNotFound
	}
	return task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
