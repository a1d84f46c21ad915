package engine

import (
	"context"

	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/types"
)

// ConfigResolver loads connection profiles by id
type ConfigResolver interface {
	Resolve(ctx context.Context, id int64) (*types.ConnectionProfile, error)
}

type TaskStore interface {
	Create(ctx context.Context, task *types.SyncTask) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status types.TaskStatus, errorMessage string) error
	AppendLog(ctx context.Context, taskID int64, level types.LogLevel, message string) error
	Get(ctx context.Context, id int64) (*types.SyncTask, error)
	ListHistory(ctx context.Context, status *types.TaskStatus, limit, offset int) ([]types.SyncTask, error)
	GetLogs(ctx context.Context, taskID int64) ([]types.TaskLogEntry, error)
}

// SchemaFetcher reads the live definition of a source table
type SchemaFetcher interface {
	Fetch(ctx context.Context, profile *types.ConnectionProfile, database, table string) (*types.TableSchema, error)
}

// BinlogChecker is implemented by fetchers that can verify the source is ready for CDC
type BinlogChecker interface {
	CheckBinlog(ctx context.Context, profile *types.ConnectionProfile) ([]string, error)
}

// Executor runs rendered statements on one connection
type Executor interface {
	Exec(ctx context.Context, statement stmt.Statement) error
	Close() error
}

type WarehouseExecutor interface {
	Executor
	TableExists(ctx context.Context, database, table string) (bool, error)
}

// Connector opens the per-batch connections to the streaming engine and the warehouse
type Connector interface {
	Streaming(ctx context.Context, profile *types.ConnectionProfile) (Executor, error)
	Warehouse(ctx context.Context, profile *types.ConnectionProfile) (WarehouseExecutor, error)
}
