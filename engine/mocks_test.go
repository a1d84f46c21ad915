package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/datazip-inc/rwcdc/generator/stmt"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
)

type MockResolver struct {
	profiles map[int64]*types.ConnectionProfile
	calls    int
}

func (m *MockResolver) Resolve(_ context.Context, id int64) (*types.ConnectionProfile, error) {
	m.calls++
	profile, ok := m.profiles[id]
	if !ok {
		return nil, utils.Errorf(utils.NotFoundError, "connection %d not found", id)
	}
	return profile, nil
}

// MemoryTaskStore keeps tasks in memory and refuses to leave a terminal state, like the real store
type MemoryTaskStore struct {
	mu           sync.Mutex
	nextID       int64
	tasks        map[int64]*types.SyncTask
	logs         map[int64][]types.TaskLogEntry
	historyLimit int
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: map[int64]*types.SyncTask{}, logs: map[int64][]types.TaskLogEntry{}}
}

func (m *MemoryTaskStore) Create(_ context.Context, task *types.SyncTask) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := *task
	stored.ID = m.nextID
	m.tasks[stored.ID] = &stored
	return stored.ID, nil
}

func (m *MemoryTaskStore) UpdateStatus(_ context.Context, id int64, status types.TaskStatus, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return utils.Errorf(utils.NotFoundError, "task %d not found", id)
	}
	if task.Status.IsTerminal() {
		return utils.Errorf(utils.ValidationError, "task %d is already %s", id, task.Status)
	}
	task.Status = status
	task.ErrorMessage = nil
	if errorMessage != "" {
		task.ErrorMessage = &errorMessage
	}
	if status.IsTerminal() {
		now := time.Now()
		task.CompletedAt = &now
	}
	return nil
}

func (m *MemoryTaskStore) AppendLog(_ context.Context, taskID int64, level types.LogLevel, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.logs[taskID]
	m.logs[taskID] = append(entries, types.TaskLogEntry{
		ID: int64(len(entries) + 1), TaskID: taskID, Level: level, Message: message, CreatedAt: time.Now(),
	})
	return nil
}

func (m *MemoryTaskStore) Get(_ context.Context, id int64) (*types.SyncTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, utils.Errorf(utils.NotFoundError, "task %d not found", id)
	}
	copied := *task
	return &copied, nil
}

func (m *MemoryTaskStore) ListHistory(_ context.Context, status *types.TaskStatus, limit, offset int) ([]types.SyncTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyLimit = limit
	var tasks []types.SyncTask
	for _, task := range m.tasks {
		if status == nil || task.Status == *status {
			tasks = append(tasks, *task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID > tasks[j].ID })
	if offset >= len(tasks) {
		return nil, nil
	}
	tasks = tasks[offset:]
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

func (m *MemoryTaskStore) GetLogs(_ context.Context, taskID int64) ([]types.TaskLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.TaskLogEntry(nil), m.logs[taskID]...), nil
}

func (m *MemoryTaskStore) messages(taskID int64) []string {
	logs, _ := m.GetLogs(context.Background(), taskID)
	messages := make([]string, 0, len(logs))
	for _, entry := range logs {
		messages = append(messages, entry.Message)
	}
	return messages
}

type MockFetcher struct {
	fetchFunc func(ctx context.Context, profile *types.ConnectionProfile, database, table string) (*types.TableSchema, error)
}

func (m *MockFetcher) Fetch(ctx context.Context, profile *types.ConnectionProfile, database, table string) (*types.TableSchema, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, profile, database, table)
	}
	return ordersSchema(database, table), nil
}

type MockBinlogFetcher struct {
	MockFetcher
	checkBinlogFunc func(ctx context.Context, profile *types.ConnectionProfile) ([]string, error)
}

func (m *MockBinlogFetcher) CheckBinlog(ctx context.Context, profile *types.ConnectionProfile) ([]string, error) {
	return m.checkBinlogFunc(ctx, profile)
}

// Recorder collects every statement executed on either connection
type Recorder struct {
	mu         sync.Mutex
	statements []stmt.Statement
}

func (r *Recorder) add(statement stmt.Statement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statements = append(r.statements, statement)
}

func (r *Recorder) all() []stmt.Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stmt.Statement(nil), r.statements...)
}

func (r *Recorder) count(verb stmt.Verb, kind stmt.ObjectKind) int {
	n := 0
	for _, statement := range r.all() {
		if statement.Verb == verb && statement.Kind == kind {
			n++
		}
	}
	return n
}

type MockExecutor struct {
	recorder        *Recorder
	execFunc        func(statement stmt.Statement) error
	tableExistsFunc func(database, table string) (bool, error)

	mu     sync.Mutex
	closed bool
}

func (m *MockExecutor) Exec(_ context.Context, statement stmt.Statement) error {
	if m.execFunc != nil {
		if err := m.execFunc(statement); err != nil {
			return utils.Wrap(utils.ConnectionError, err, "%s", statement.Describe())
		}
	}
	m.recorder.add(statement)
	return nil
}

func (m *MockExecutor) TableExists(_ context.Context, database, table string) (bool, error) {
	if m.tableExistsFunc != nil {
		return m.tableExistsFunc(database, table)
	}
	return false, nil
}

func (m *MockExecutor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockExecutor) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type MockConnector struct {
	streaming     *MockExecutor
	warehouse     *MockExecutor
	gate          chan struct{}
	warehouseFunc func() error
}

func (m *MockConnector) Streaming(ctx context.Context, _ *types.ConnectionProfile) (Executor, error) {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.streaming, nil
}

func (m *MockConnector) Warehouse(_ context.Context, _ *types.ConnectionProfile) (WarehouseExecutor, error) {
	if m.warehouseFunc != nil {
		if err := m.warehouseFunc(); err != nil {
			return nil, err
		}
	}
	return m.warehouse, nil
}

func ordersSchema(database, table string) *types.TableSchema {
	return &types.TableSchema{
		Database:  database,
		TableName: table,
		Columns: []types.ColumnDescriptor{
			{Name: "id", DataType: "bigint", IsPrimaryKey: true},
			{Name: "status", DataType: "tinyint(1)", IsNullable: true},
			{Name: "created_at", DataType: "datetime", IsNullable: true},
		},
		PrimaryKeys: []string{"id"},
	}
}

var (
	sourceProfile    = &types.ConnectionProfile{ID: 1, Name: "source", DBType: types.MySQL, Host: "mysql", Port: 3306, Username: "cdc", Password: "pw"}
	streamingProfile = &types.ConnectionProfile{ID: 2, Name: "rw", DBType: types.RisingWave, Host: "rw", Port: 4566, Username: "root"}
	warehouseProfile = &types.ConnectionProfile{ID: 3, Name: "sr", DBType: types.StarRocks, Host: "sr-fe", Port: 9030, Username: "root", Password: "srpw"}
)

type testEnv struct {
	orchestrator *Orchestrator
	resolver     *MockResolver
	tasks        *MemoryTaskStore
	fetcher      SchemaFetcher
	connector    *MockConnector
	recorder     *Recorder
}

func newTestEnv(fetcher SchemaFetcher) *testEnv {
	if fetcher == nil {
		fetcher = &MockFetcher{}
	}
	recorder := &Recorder{}
	env := &testEnv{
		resolver: &MockResolver{profiles: map[int64]*types.ConnectionProfile{1: sourceProfile, 2: streamingProfile, 3: warehouseProfile}},
		tasks:    NewMemoryTaskStore(),
		fetcher:  fetcher,
		connector: &MockConnector{
			streaming: &MockExecutor{recorder: recorder},
			warehouse: &MockExecutor{recorder: recorder},
		},
		recorder: recorder,
	}
	env.orchestrator = NewOrchestrator(env.resolver, env.tasks, env.fetcher, env.connector, 2)
	return env
}

func request(db, table, schema, targetTable string) types.SyncRequest {
	return types.SyncRequest{
		SourceConfigID: 1, StreamingConfigID: 2, WarehouseConfigID: 3,
		TableRef: types.TableRef{SourceDatabase: db, SourceTable: table, TargetSchema: schema, TargetTable: targetTable},
	}
}
