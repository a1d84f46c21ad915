package types

import (
	"fmt"
	"strings"
)

// SyncOptions tune how existing objects are treated. TruncateSRTable is
// ignored when RecreateSRTable is set.
type SyncOptions struct {
	RecreateRWSource bool `json:"recreate_rw_source"`
	RecreateSRTable  bool `json:"recreate_sr_table"`
	TruncateSRTable  bool `json:"truncate_sr_table"`
}

// TableRef names one source table and where it lands
type TableRef struct {
	SourceDatabase string `json:"source_database" validate:"required,objectname"`
	SourceTable    string `json:"source_table" validate:"required,objectname"`
	TargetSchema   string `json:"target_schema" validate:"required,objectname"`
	TargetTable    string `json:"target_table" validate:"required,objectname"`
}

func (t TableRef) String() string {
	return fmt.Sprintf("%s.%s", t.SourceDatabase, t.SourceTable)
}

// SyncRequest asks for one table to be provisioned end to end
type SyncRequest struct {
	SourceConfigID    int64 `json:"mysql_config_id" validate:"required"`
	StreamingConfigID int64 `json:"rw_config_id" validate:"required"`
	WarehouseConfigID int64 `json:"sr_config_id" validate:"required"`
	TableRef
	Options SyncOptions `json:"options"`
}

// ConnectionKey identifies the profile triple a request runs against
type ConnectionKey struct {
	Source    int64
	Streaming int64
	Warehouse int64
}

func (r *SyncRequest) ConnectionKey() ConnectionKey {
	return ConnectionKey{Source: r.SourceConfigID, Streaming: r.StreamingConfigID, Warehouse: r.WarehouseConfigID}
}

// BatchLabels derives the display name and the source/target labels of a task
func BatchLabels(refs []TableRef) (name, sourceLabel, targetLabel string) {
	if len(refs) == 1 {
		ref := refs[0]
		return fmt.Sprintf("Sync %s.%s", ref.SourceDatabase, ref.SourceTable), ref.SourceTable, ref.TargetTable
	}

	qualified := make([]string, 0, len(refs))
	for _, ref := range refs {
		qualified = append(qualified, ref.String())
	}
	return fmt.Sprintf("Batch Sync %d tables", len(refs)),
		fmt.Sprintf("[Batch: %s]", strings.Join(qualified, ", ")),
		fmt.Sprintf("[Batch: %d tables]", len(refs))
}
