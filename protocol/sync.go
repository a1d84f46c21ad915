package protocol

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/datazip-inc/rwcdc/constants"
	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

var (
	batchPath  string
	followLogs bool
)

// batchFile is the YAML or JSON document accepted by the sync command.
// Table entries inherit source_database and target_schema from the document
// and target_table from their source_table when those are left empty.
type batchFile struct {
	SourceConfigID    int64             `json:"mysql_config_id"`
	StreamingConfigID int64             `json:"rw_config_id"`
	WarehouseConfigID int64             `json:"sr_config_id"`
	SourceDatabase    string            `json:"source_database,omitempty"`
	TargetSchema      string            `json:"target_schema,omitempty"`
	Options           types.SyncOptions `json:"options"`
	Tables            []types.TableRef  `json:"tables"`
}

func parseBatch(data []byte) ([]types.SyncRequest, error) {
	var file batchFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, utils.Wrap(utils.ValidationError, err, "failed to parse batch file")
	}
	if len(file.Tables) == 0 {
		return nil, utils.Errorf(utils.ValidationError, "batch file lists no tables")
	}

	batch := make([]types.SyncRequest, 0, len(file.Tables))
	for _, ref := range file.Tables {
		if ref.SourceDatabase == "" {
			ref.SourceDatabase = file.SourceDatabase
		}
		if ref.TargetSchema == "" {
			ref.TargetSchema = file.TargetSchema
		}
		if ref.TargetTable == "" {
			ref.TargetTable = ref.SourceTable
		}
		batch = append(batch, types.SyncRequest{
			SourceConfigID:    file.SourceConfigID,
			StreamingConfigID: file.StreamingConfigID,
			WarehouseConfigID: file.WarehouseConfigID,
			TableRef:          ref,
			Options:           file.Options,
		})
	}
	return batch, nil
}

func printLogs(cmd *cobra.Command, entries []types.TaskLogEntry) {
	for _, entry := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %-5s %s\n", entry.CreatedAt.Format(time.RFC3339), strings.ToUpper(string(entry.Level)), entry.Message)
	}
}

// watch polls taskID until it reaches a terminal state. The execution lives in
// this process, so an interrupt cancels the task instead of abandoning it.
func watch(ctx context.Context, cmd *cobra.Command, a *app, taskID int64, follow bool) (*types.SyncTask, error) {
	ticker := time.NewTicker(constants.TaskPollInterval)
	defer ticker.Stop()

	printed := 0
	flush := func() error {
		if !follow {
			return nil
		}
		entries, err := a.orchestrator.GetLogs(ctx, taskID)
		if err != nil {
			return err
		}
		if len(entries) > printed {
			printLogs(cmd, entries[printed:])
			printed = len(entries)
		}
		return nil
	}

	for {
		if err := flush(); err != nil {
			return nil, err
		}
		task, err := a.orchestrator.Get(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.Status.IsTerminal() {
			// set by another process when it cancelled the task
			a.orchestrator.Interrupt(taskID)
			a.orchestrator.Wait()
			return task, flush()
		}

		select {
		case <-ctx.Done():
			logger.Warnf("interrupted, cancelling task %d", taskID)
			ctx = context.WithoutCancel(ctx)
			if err := a.orchestrator.Cancel(ctx, taskID); err != nil && !utils.IsKind(err, utils.ValidationError) {
				return nil, err
			}
		case <-ticker.C:
		}
	}
}

func report(cmd *cobra.Command, task *types.SyncTask) error {
	if err := printJSON(cmd, task); err != nil {
		return err
	}
	if task.Status != types.TaskCompleted {
		message := ""
		if task.ErrorMessage != nil {
			message = *task.ErrorMessage
		}
		return fmt.Errorf("task %d %s: %s", task.ID, task.Status, message)
	}
	return nil
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "provision the pipeline for every table of a batch file",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if batchPath == "" {
			return utils.Errorf(utils.ValidationError, "--file is required")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := os.ReadFile(batchPath)
		if err != nil {
			return utils.Wrap(utils.ConfigError, err, "failed to read %s", batchPath)
		}
		batch, err := parseBatch(data)
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			taskID, err := a.orchestrator.Submit(ctx, batch)
			if err != nil {
				return err
			}
			logger.Infof("submitted task %d for %d tables", taskID, len(batch))

			task, err := watch(ctx, cmd, a, taskID, followLogs)
			if err != nil {
				return err
			}
			return report(cmd, task)
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "run the batch of a failed task again as a new task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			taskID, err := a.orchestrator.Retry(ctx, id)
			if err != nil {
				return err
			}
			task, err := watch(ctx, cmd, a, taskID, followLogs)
			if err != nil {
				return err
			}
			return report(cmd, task)
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "mark a running task failed and stop its execution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.orchestrator.Cancel(ctx, id); err != nil {
				return err
			}
			logger.Infof("task %d cancelled", id)
			return nil
		})
	},
}

func init() {
	syncCmd.Flags().StringVarP(&batchPath, "file", "f", "", "(Required) YAML or JSON batch file")
	for _, cmd := range []*cobra.Command{syncCmd, retryCmd} {
		cmd.Flags().BoolVarP(&followLogs, "wait", "w", false, "(Optional) Print task log lines while waiting for the task")
	}
}
