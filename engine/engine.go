package engine

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

// Orchestrator accepts sync batches, records them as tasks and provisions
// the pipeline objects for every table in the background.
type Orchestrator struct {
	configs   ConfigResolver
	tasks     TaskStore
	fetcher   SchemaFetcher
	connector Connector
	pool      *WorkerPool
}

func NewOrchestrator(configs ConfigResolver, tasks TaskStore, fetcher SchemaFetcher, connector Connector, maxConcurrent int) *Orchestrator {
	return &Orchestrator{
		configs:   configs,
		tasks:     tasks,
		fetcher:   fetcher,
		connector: connector,
		pool:      NewWorkerPool(maxConcurrent),
	}
}

func validateBatch(batch []types.SyncRequest) error {
	if len(batch) == 0 {
		return utils.Errorf(utils.ValidationError, "no tables to sync")
	}

	var result *multierror.Error
	first := batch[0].ConnectionKey()
	for i := range batch {
		if err := utils.Validate(&batch[i]); err != nil {
			result = multierror.Append(result, fmt.Errorf("table %d (%s): %s", i+1, batch[i].TableRef, err))
		}
		if batch[i].ConnectionKey() != first {
			result = multierror.Append(result, fmt.Errorf("table %d (%s): all tables must use the same database configurations", i+1, batch[i].TableRef))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return utils.Wrap(utils.ValidationError, err, "invalid sync batch")
	}
	return nil
}

func (o *Orchestrator) resolve(ctx context.Context, id int64, role types.DBType) (*types.ConnectionProfile, error) {
	profile, err := o.configs.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile.DBType != role {
		return nil, utils.Errorf(utils.ValidationError, "connection %d is a %s connection, expected %s", id, profile.DBType, role)
	}
	return profile, nil
}

// Submit records a running task for batch and starts provisioning it in the
// background. The returned id is what callers poll for status and logs.
func (o *Orchestrator) Submit(ctx context.Context, batch []types.SyncRequest) (int64, error) {
	if err := validateBatch(batch); err != nil {
		return 0, err
	}
	logger.Infof("starting batch sync for %d tables", len(batch))

	first := batch[0]
	source, err := o.resolve(ctx, first.SourceConfigID, types.MySQL)
	if err != nil {
		return 0, err
	}
	streaming, err := o.resolve(ctx, first.StreamingConfigID, types.RisingWave)
	if err != nil {
		return 0, err
	}
	warehouse, err := o.resolve(ctx, first.WarehouseConfigID, types.StarRocks)
	if err != nil {
		return 0, err
	}

	task, err := types.NewSyncTask(batch)
	if err != nil {
		return 0, utils.Wrap(utils.ValidationError, err, "failed to build task")
	}
	taskID, err := o.tasks.Create(ctx, task)
	if err != nil {
		return 0, err
	}

	run := newBatchRun(taskID, batch, source, streaming, warehouse, o.tasks, o.fetcher, o.connector)
	o.pool.Submit(taskID, run.execute, run.abort)
	return taskID, nil
}

// Retry submits the batch of a failed task again as a new task
func (o *Orchestrator) Retry(ctx context.Context, taskID int64) (int64, error) {
	task, err := o.tasks.Get(ctx, taskID)
	if err != nil {
		return 0, err
	}
	if task.Status != types.TaskFailed {
		return 0, utils.Errorf(utils.ValidationError, "task %d is %s, only failed tasks can be retried", taskID, task.Status)
	}
	batch, err := task.Requests()
	if err != nil {
		return 0, utils.Wrap(utils.ConfigError, err, "cannot rebuild task %d", taskID)
	}

	newID, err := o.Submit(ctx, batch)
	if err != nil {
		return 0, err
	}
	logger.Infof("task %d retried as task %d", taskID, newID)
	return newID, nil
}

// Cancel marks a task failed and stops its execution at the next statement boundary
func (o *Orchestrator) Cancel(ctx context.Context, taskID int64) error {
	task, err := o.tasks.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return utils.Errorf(utils.ValidationError, "task %d is already %s", taskID, task.Status)
	}
	if err := o.tasks.UpdateStatus(ctx, taskID, types.TaskFailed, constants.CancelledByUserMessage); err != nil {
		return err
	}
	if !o.pool.Cancel(taskID) {
		logger.Debugf("task %d has no execution in this process", taskID)
	}
	if err := o.tasks.AppendLog(ctx, taskID, types.LogWarn, constants.CancelledByUserMessage); err != nil {
		logger.Warnf("failed to log cancellation of task %d: %s", taskID, err)
	}
	return nil
}

// Interrupt cancels the local execution of taskID without touching its record.
// Callers use it once another process has already moved the task to a terminal state.
func (o *Orchestrator) Interrupt(taskID int64) bool {
	return o.pool.Cancel(taskID)
}

func (o *Orchestrator) Get(ctx context.Context, taskID int64) (*types.SyncTask, error) {
	return o.tasks.Get(ctx, taskID)
}

func (o *Orchestrator) ListHistory(ctx context.Context, status *types.TaskStatus, limit, offset int) ([]types.SyncTask, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	return o.tasks.ListHistory(ctx, status, limit, offset)
}

func (o *Orchestrator) GetLogs(ctx context.Context, taskID int64) ([]types.TaskLogEntry, error) {
	return o.tasks.GetLogs(ctx, taskID)
}

// Wait blocks until every submitted batch has finished
func (o *Orchestrator) Wait() {
	o.pool.Wait()
}

// Shutdown cancels in-flight batches and waits for them to return
func (o *Orchestrator) Shutdown() {
	o.pool.Shutdown()
}
