package types

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// SyncTask is the persisted record of one submitted batch
type SyncTask struct {
	ID                int64      `json:"id" db:"id"`
	TaskName          string     `json:"task_name" db:"task_name"`
	SourceConfigID    int64      `json:"mysql_config_id" db:"mysql_config_id"`
	StreamingConfigID int64      `json:"rw_config_id" db:"rw_config_id"`
	WarehouseConfigID int64      `json:"sr_config_id" db:"sr_config_id"`
	SourceDatabase    string     `json:"source_database" db:"mysql_database"`
	SourceTable       string     `json:"source_table" db:"mysql_table"`
	TargetSchema      string     `json:"target_database" db:"target_database"`
	TargetTable       string     `json:"target_table" db:"target_table"`
	Status            TaskStatus `json:"status" db:"status"`
	Options           string     `json:"options" db:"options"`
	Tables            string     `json:"tables" db:"tables"`
	ErrorMessage      *string    `json:"error_message,omitempty" db:"error_message"`
	StartedAt         time.Time  `json:"started_at" db:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// NewSyncTask builds the running task record for a validated batch
func NewSyncTask(batch []SyncRequest) (*SyncTask, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	first := batch[0]

	refs := make([]TableRef, 0, len(batch))
	for _, request := range batch {
		refs = append(refs, request.TableRef)
	}
	name, sourceLabel, targetLabel := BatchLabels(refs)

	options, err := json.Marshal(first.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize options: %s", err)
	}
	tables, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize batch members: %s", err)
	}

	return &SyncTask{
		TaskName:          name,
		SourceConfigID:    first.SourceConfigID,
		StreamingConfigID: first.StreamingConfigID,
		WarehouseConfigID: first.WarehouseConfigID,
		SourceDatabase:    first.SourceDatabase,
		SourceTable:       sourceLabel,
		TargetSchema:      first.TargetSchema,
		TargetTable:       targetLabel,
		Status:            TaskRunning,
		Options:           string(options),
		Tables:            string(tables),
		StartedAt:         time.Now().UTC(),
	}, nil
}

// Requests rebuilds the batch a task was submitted with
func (t *SyncTask) Requests() ([]SyncRequest, error) {
	var options SyncOptions
	if t.Options != "" {
		if err := json.Unmarshal([]byte(t.Options), &options); err != nil {
			return nil, fmt.Errorf("failed to decode options of task %d: %s", t.ID, err)
		}
	}

	var refs []TableRef
	if t.Tables != "" {
		if err := json.Unmarshal([]byte(t.Tables), &refs); err != nil {
			return nil, fmt.Errorf("failed to decode batch members of task %d: %s", t.ID, err)
		}
	}
	if len(refs) == 0 {
		refs = []TableRef{{
			SourceDatabase: t.SourceDatabase,
			SourceTable:    t.SourceTable,
			TargetSchema:   t.TargetSchema,
			TargetTable:    t.TargetTable,
		}}
	}

	requests := make([]SyncRequest, 0, len(refs))
	for _, ref := range refs {
		requests = append(requests, SyncRequest{
			SourceConfigID:    t.SourceConfigID,
			StreamingConfigID: t.StreamingConfigID,
			WarehouseConfigID: t.WarehouseConfigID,
			TableRef:          ref,
			Options:           options,
		})
	}
	return requests, nil
}

// TaskLogEntry is one progress line of a task
type TaskLogEntry struct {
	ID        int64     `json:"id" db:"id"`
	TaskID    int64     `json:"task_id" db:"task_id"`
	Level     LogLevel  `json:"level" db:"log_level"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
