package types

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
)

// parseEnum resolves raw against an exhaustive table, failing on anything unlisted
func parseEnum[T ~string](kind string, table map[string]T, raw string) (T, error) {
	if v, ok := table[raw]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", kind, raw)
}

func scanEnum[T ~string](kind string, table map[string]T, src any, dst *T) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into %s", src, kind)
	}
	parsed, err := parseEnum(kind, table, raw)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

func unmarshalEnum[T ~string](kind string, table map[string]T, data []byte, dst *T) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode %s: %s", kind, err)
	}
	parsed, err := parseEnum(kind, table, raw)
	if err != nil {
		return err
	}
	*dst = parsed
	return nil
}

// DBType identifies the role a connection profile plays
type DBType string

const (
	MySQL      DBType = "mysql"
	RisingWave DBType = "risingwave"
	StarRocks  DBType = "starrocks"
)

var dbTypes = map[string]DBType{
	string(MySQL):      MySQL,
	string(RisingWave): RisingWave,
	string(StarRocks):  StarRocks,
}

func ParseDBType(raw string) (DBType, error) {
	return parseEnum("database type", dbTypes, raw)
}

func (d DBType) Value() (driver.Value, error) {
	if _, err := ParseDBType(string(d)); err != nil {
		return nil, err
	}
	return string(d), nil
}

func (d *DBType) Scan(src any) error {
	return scanEnum("database type", dbTypes, src, d)
}

func (d *DBType) UnmarshalJSON(data []byte) error {
	return unmarshalEnum("database type", dbTypes, data, d)
}

// TaskStatus is the lifecycle state of a sync task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

var taskStatuses = map[string]TaskStatus{
	string(TaskPending):   TaskPending,
	string(TaskRunning):   TaskRunning,
	string(TaskCompleted): TaskCompleted,
	string(TaskFailed):    TaskFailed,
	string(TaskCancelled): TaskCancelled,
}

func ParseTaskStatus(raw string) (TaskStatus, error) {
	return parseEnum("task status", taskStatuses, raw)
}

// IsTerminal reports whether no further transition may leave s
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// TerminalStatuses lists every final state
func TerminalStatuses() []TaskStatus {
	return []TaskStatus{TaskCompleted, TaskFailed, TaskCancelled}
}

func (s TaskStatus) Value() (driver.Value, error) {
	if _, err := ParseTaskStatus(string(s)); err != nil {
		return nil, err
	}
	return string(s), nil
}

func (s *TaskStatus) Scan(src any) error {
	return scanEnum("task status", taskStatuses, src, s)
}

func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	return unmarshalEnum("task status", taskStatuses, data, s)
}

// LogLevel grades a task log line
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

var logLevels = map[string]LogLevel{
	string(LogInfo):  LogInfo,
	string(LogWarn):  LogWarn,
	string(LogError): LogError,
}

func ParseLogLevel(raw string) (LogLevel, error) {
	return parseEnum("log level", logLevels, raw)
}

func (l LogLevel) Value() (driver.Value, error) {
	if _, err := ParseLogLevel(string(l)); err != nil {
		return nil, err
	}
	return string(l), nil
}

func (l *LogLevel) Scan(src any) error {
	return scanEnum("log level", logLevels, src, l)
}

func (l *LogLevel) UnmarshalJSON(data []byte) error {
	return unmarshalEnum("log level", logLevels, data, l)
}
