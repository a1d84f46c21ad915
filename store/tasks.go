package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
)

const taskColumns = `id, task_name, mysql_config_id, rw_config_id, sr_config_id, mysql_database, mysql_table,
	target_database, target_table, status, started_at, completed_at, error_message, options, COALESCE(tables, '') AS tables`

// TaskStore persists sync tasks and their progress logs
type TaskStore struct {
	db *sqlx.DB
}

func NewTaskStore(db *sqlx.DB) *TaskStore {
	return &TaskStore{db: db}
}

func nullable(message string) any {
	if message == "" {
		return nil
	}
	return message
}

// Create inserts task and returns its id
func (s *TaskStore) Create(ctx context.Context, task *types.SyncTask) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_tasks (
			task_name, mysql_config_id, rw_config_id, sr_config_id,
			mysql_database, mysql_table, target_database, target_table,
			status, started_at, options, tables
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskName, task.SourceConfigID, task.StreamingConfigID, task.WarehouseConfigID,
		task.SourceDatabase, task.SourceTable, task.TargetSchema, task.TargetTable,
		task.Status, task.StartedAt, task.Options, nullable(task.Tables),
	)
	if err != nil {
		return 0, utils.Wrap(utils.DatabaseError, err, "failed to create task %q", task.TaskName)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, utils.Wrap(utils.DatabaseError, err, "failed to read id of task %q", task.TaskName)
	}
	task.ID = id
	return id, nil
}

// UpdateStatus moves a task to status. Terminal states also stamp completed_at.
// A task already in a terminal state is never changed again.
func (s *TaskStore) UpdateStatus(ctx context.Context, id int64, status types.TaskStatus, errorMessage string) error {
	var completedAt any
	if status.IsTerminal() {
		completedAt = time.Now().UTC()
	}

	query, args, err := sqlx.In(`
		UPDATE sync_tasks
		SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status NOT IN (?)`,
		status, nullable(errorMessage), completedAt, id, types.TerminalStatuses())
	if err != nil {
		return utils.Wrap(utils.DatabaseError, err, "failed to build status update")
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return utils.Wrap(utils.DatabaseError, err, "failed to update status of task %d", id)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return utils.Wrap(utils.DatabaseError, err, "failed to update status of task %d", id)
	}
	if affected > 0 {
		return nil
	}

	var current types.TaskStatus
	err = s.db.GetContext(ctx, &current, "SELECT status FROM sync_tasks WHERE id = ?", id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return utils.Errorf(utils.NotFoundError, "task %d not found", id)
	case err != nil:
		return utils.Wrap(utils.DatabaseError, err, "failed to read status of task %d", id)
	case current.IsTerminal():
		return utils.Errorf(utils.ValidationError, "task %d is already %s", id, current)
	}
	return nil
}

// AppendLog records one progress line for a task
func (s *TaskStore) AppendLog(ctx context.Context, taskID int64, level types.LogLevel, message string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO task_logs (task_id, log_level, message) VALUES (?, ?, ?)",
		taskID, level, message)
	if err != nil {
		return utils.Wrap(utils.DatabaseError, err, "failed to append log to task %d", taskID)
	}
	return nil
}

func (s *TaskStore) Get(ctx context.Context, id int64) (*types.SyncTask, error) {
	task := &types.SyncTask{}
	err := s.db.GetContext(ctx, task, "SELECT "+taskColumns+" FROM sync_tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.Errorf(utils.NotFoundError, "task %d not found", id)
	}
	if err != nil {
		return nil, utils.Wrap(utils.DatabaseError, err, "failed to get task %d", id)
	}
	return task, nil
}

// ListHistory pages through tasks newest first, optionally filtered by status
func (s *TaskStore) ListHistory(ctx context.Context, status *types.TaskStatus, limit, offset int) ([]types.SyncTask, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + taskColumns + " FROM sync_tasks"
	args := []any{}
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	tasks := []types.SyncTask{}
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, utils.Wrap(utils.DatabaseError, err, "failed to list task history")
	}
	return tasks, nil
}

func (s *TaskStore) CountHistory(ctx context.Context, status *types.TaskStatus) (int64, error) {
	query := "SELECT COUNT(*) FROM sync_tasks"
	args := []any{}
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, *status)
	}

	var count int64
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, utils.Wrap(utils.DatabaseError, err, "failed to count task history")
	}
	return count, nil
}

// GetLogs returns the progress lines of a task in the order they were written
func (s *TaskStore) GetLogs(ctx context.Context, taskID int64) ([]types.TaskLogEntry, error) {
	logs := []types.TaskLogEntry{}
	err := s.db.SelectContext(ctx, &logs,
		"SELECT id, task_id, log_level, message, created_at FROM task_logs WHERE task_id = ? ORDER BY created_at ASC, id ASC",
		taskID)
	if err != nil {
		return nil, utils.Wrap(utils.DatabaseError, err, "failed to get logs of task %d", taskID)
	}
	return logs, nil
}
