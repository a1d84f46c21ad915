package engine

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/datazip-inc/rwcdc/generator/risingwave"
	"github.com/datazip-inc/rwcdc/generator/starrocks"
	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

// batchRun provisions every table of one task in order. The ensured set only
// avoids resubmitting shared objects inside this run; every statement is idempotent.
type batchRun struct {
	taskID    int64
	batch     []types.SyncRequest
	source    *types.ConnectionProfile
	streaming *types.ConnectionProfile
	warehouse *types.ConnectionProfile

	tasks     TaskStore
	fetcher   SchemaFetcher
	connector Connector

	ensured       map[string]struct{}
	binlogChecked bool
	log           zerolog.Logger
	rwConn        Executor
	srConn        WarehouseExecutor
}

func newBatchRun(taskID int64, batch []types.SyncRequest, source, streaming, warehouse *types.ConnectionProfile,
	tasks TaskStore, fetcher SchemaFetcher, connector Connector) *batchRun {
	return &batchRun{
		taskID:    taskID,
		batch:     batch,
		source:    source,
		streaming: streaming,
		warehouse: warehouse,
		tasks:     tasks,
		fetcher:   fetcher,
		connector: connector,
		ensured:   make(map[string]struct{}),
		log: logger.With(map[string]string{
			"task_id": fmt.Sprint(taskID),
			"run_id":  utils.ULID(),
		}),
	}
}

// execute runs the batch and records the outcome on the task
func (r *batchRun) execute(ctx context.Context) {
	r.log.Info().Msgf("executing batch sync task %d", r.taskID)
	r.record(ctx, r.run(ctx))
}

// abort records a run that never finished, cancelled while queued or panicked
func (r *batchRun) abort(err error) {
	r.record(context.Background(), err)
}

func (r *batchRun) record(ctx context.Context, err error) {
	// the outcome is recorded even when the run was cancelled
	ctx = context.WithoutCancel(ctx)

	if err != nil {
		message := err.Error()
		r.log.Error().Msgf("batch sync task %d failed: %s", r.taskID, message)
		if uerr := r.tasks.UpdateStatus(ctx, r.taskID, types.TaskFailed, message); uerr != nil {
			r.log.Warn().Msgf("failure of task %d not recorded: %s", r.taskID, uerr)
			return
		}
		if lerr := r.tasks.AppendLog(ctx, r.taskID, types.LogError, "Batch sync failed: "+message); lerr != nil {
			r.log.Warn().Msgf("failed to append log: %s", lerr)
		}
		return
	}

	if uerr := r.tasks.UpdateStatus(ctx, r.taskID, types.TaskCompleted, ""); uerr != nil {
		r.log.Warn().Msgf("completion of task %d not recorded: %s", r.taskID, uerr)
		return
	}
	if lerr := r.tasks.AppendLog(ctx, r.taskID, types.LogInfo, "Batch sync completed successfully"); lerr != nil {
		r.log.Warn().Msgf("failed to append log: %s", lerr)
	}
}

func (r *batchRun) run(ctx context.Context) error {
	total := len(r.batch)
	if err := r.info(ctx, fmt.Sprintf("Starting batch sync for %d tables", total)); err != nil {
		return err
	}
	defer r.release()

	if err := r.info(ctx, "Connecting to RisingWave..."); err != nil {
		return err
	}
	rwConn, err := r.connector.Streaming(ctx, r.streaming)
	if err != nil {
		return err
	}
	r.rwConn = rwConn

	if err := r.info(ctx, "Connecting to StarRocks..."); err != nil {
		return err
	}
	srConn, err := r.connector.Warehouse(ctx, r.warehouse)
	if err != nil {
		return err
	}
	r.srConn = srConn

	for i := range r.batch {
		if err := ctx.Err(); err != nil {
			return utils.Wrap(utils.ConnectionError, err, "batch sync interrupted")
		}
		if err := r.syncTable(ctx, &r.batch[i], i+1, total); err != nil {
			return err
		}
	}

	return r.info(ctx, fmt.Sprintf("Successfully completed batch sync for %d tables", total))
}

// release closes whichever connections were opened
func (r *batchRun) release() {
	var result *multierror.Error
	if r.rwConn != nil {
		if err := r.rwConn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close RisingWave connection: %s", err))
		}
	}
	if r.srConn != nil {
		if err := r.srConn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close StarRocks connection: %s", err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		r.log.Warn().Msg(err.Error())
	}
}

func (r *batchRun) info(ctx context.Context, message string) error {
	return r.tasks.AppendLog(ctx, r.taskID, types.LogInfo, message)
}

// once runs fn the first time key is seen in this run
func (r *batchRun) once(key string, fn func() error) error {
	if _, ok := r.ensured[key]; ok {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	r.ensured[key] = struct{}{}
	return nil
}

func exec(ctx context.Context, conn Executor, statement stmt.Statement) error {
	if err := ctx.Err(); err != nil {
		return utils.Wrap(utils.ConnectionError, err, "%s interrupted", statement.Describe())
	}
	return conn.Exec(ctx, statement)
}

// step logs message then executes statement
func (r *batchRun) step(ctx context.Context, conn Executor, message string, statement stmt.Statement) error {
	if err := r.info(ctx, message); err != nil {
		return err
	}
	return exec(ctx, conn, statement)
}

func (r *batchRun) preflightBinlog(ctx context.Context) error {
	if r.binlogChecked {
		return nil
	}
	r.binlogChecked = true

	checker, ok := r.fetcher.(BinlogChecker)
	if !ok {
		return nil
	}
	problems, err := checker.CheckBinlog(ctx, r.source)
	if err != nil {
		r.log.Warn().Msgf("binlog preflight skipped: %s", err)
		return r.tasks.AppendLog(ctx, r.taskID, types.LogWarn, "Could not verify MySQL binlog settings: "+err.Error())
	}
	for _, problem := range problems {
		if err := r.tasks.AppendLog(ctx, r.taskID, types.LogWarn, "MySQL binlog check: "+problem); err != nil {
			return err
		}
	}
	return nil
}

func (r *batchRun) syncTable(ctx context.Context, request *types.SyncRequest, index, total int) error {
	db, table := request.SourceDatabase, request.SourceTable
	target, targetTable := request.TargetSchema, request.TargetTable

	if err := r.info(ctx, fmt.Sprintf("Processing table %d/%d: %s.%s", index, total, db, table)); err != nil {
		return err
	}

	// 1. source schema
	if err := r.info(ctx, fmt.Sprintf("Fetching MySQL table schema for %s.%s...", db, table)); err != nil {
		return err
	}
	schema, err := r.fetcher.Fetch(ctx, r.source, db, table)
	if err != nil {
		return err
	}
	fingerprint, err := schema.Fingerprint()
	if err != nil {
		r.log.Warn().Msgf("failed to fingerprint schema of %s.%s: %s", db, table, err)
	}
	r.log.Info().Str("fingerprint", fingerprint).
		Msgf("fetched schema for %s.%s: %d columns, %d primary keys", db, table, len(schema.Columns), len(schema.PrimaryKeys))

	// generation failures surface before anything runs for this table
	createWarehouseTable, err := starrocks.CreateTable(schema, target, targetTable)
	if err != nil {
		return err
	}
	createSink, err := risingwave.CreateSink(r.warehouse, request, schema)
	if err != nil {
		return err
	}

	// 2. schema
	err = r.once("schema:"+target, func() error {
		return r.step(ctx, r.rwConn, fmt.Sprintf("Creating schema %s in RisingWave...", target), risingwave.CreateSchema(target))
	})
	if err != nil {
		return err
	}

	// 3. source credential
	err = r.once("secret:"+target, func() error {
		return r.step(ctx, r.rwConn, "Creating secret for MySQL password...", risingwave.CreateSourceSecret(r.source, target))
	})
	if err != nil {
		return err
	}

	// 4. best-effort cleanup, the shared CDC source is kept
	if request.Options.RecreateRWSource {
		if err := r.info(ctx, "Dropping existing RisingWave objects..."); err != nil {
			return err
		}
		for _, drop := range []stmt.Statement{risingwave.DropSink(target, targetTable), risingwave.DropMirrorTable(target, targetTable)} {
			if err := exec(ctx, r.rwConn, drop); err != nil {
				r.log.Warn().Msgf("ignoring failed cleanup: %s", err)
			}
		}
		r.log.Info().Msgf("CDC source %s is retained for reuse", risingwave.SourceName(target, db))
	}

	// 5. CDC source
	err = r.once(fmt.Sprintf("source:%s:%s", target, db), func() error {
		if err := r.preflightBinlog(ctx); err != nil {
			return err
		}
		return r.step(ctx, r.rwConn, fmt.Sprintf("Creating RisingWave CDC source for database %s...", db),
			risingwave.CreateCDCSource(r.source, db, target))
	})
	if err != nil {
		return err
	}

	// 6. mirror table
	err = r.step(ctx, r.rwConn, fmt.Sprintf("Creating RisingWave table %s.%s...", target, targetTable),
		risingwave.CreateMirrorTable(db, table, target, targetTable))
	if err != nil {
		return err
	}

	// 7. warehouse database
	err = r.once("database:"+target, func() error {
		return r.step(ctx, r.srConn, fmt.Sprintf("Creating StarRocks database %s...", target), starrocks.CreateDatabase(target))
	})
	if err != nil {
		return err
	}

	// 8. existing warehouse table
	switch {
	case request.Options.RecreateSRTable:
		if err := r.step(ctx, r.srConn, "Dropping existing StarRocks table...", starrocks.DropTable(target, targetTable)); err != nil {
			return err
		}
	case request.Options.TruncateSRTable:
		exists, err := r.srConn.TableExists(ctx, target, targetTable)
		if err != nil {
			return err
		}
		if exists {
			if err := r.step(ctx, r.srConn, "Truncating StarRocks table...", starrocks.TruncateTable(target, targetTable)); err != nil {
				return err
			}
		} else if err := r.info(ctx, fmt.Sprintf("StarRocks table %s.%s does not exist, nothing to truncate", target, targetTable)); err != nil {
			return err
		}
	}

	// 9. warehouse table
	if err := r.step(ctx, r.srConn, fmt.Sprintf("Creating StarRocks table %s.%s...", target, targetTable), createWarehouseTable); err != nil {
		return err
	}

	// 10. warehouse credential
	err = r.once("sr_secret:"+target, func() error {
		return r.step(ctx, r.rwConn, "Creating secret for StarRocks password...", risingwave.CreateWarehouseSecret(r.warehouse, target))
	})
	if err != nil {
		return err
	}

	// 11. sink
	if err := r.step(ctx, r.rwConn, "Creating RisingWave sink to StarRocks...", createSink); err != nil {
		return err
	}

	// 12.
	return r.info(ctx, fmt.Sprintf("Successfully synced %s.%s to %s.%s (%d/%d)", db, table, target, targetTable, index, total))
}
