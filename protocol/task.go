package protocol

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/rwcdc/types"
	"github.com/datazip-inc/rwcdc/utils"
)

var (
	historyStatus string
	historyLimit  int
	historyOffset int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "inspect sync tasks",
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "show one task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			task, err := a.orchestrator.Get(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, task)
		})
	},
}

var taskLogsCmd = &cobra.Command{
	Use:   "logs <task-id>",
	Short: "print the progress log of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			entries, err := a.orchestrator.GetLogs(ctx, id)
			if err != nil {
				return err
			}
			printLogs(cmd, entries)
			return nil
		})
	},
}

type historyPage struct {
	Total int64            `json:"total"`
	Tasks []types.SyncTask `json:"tasks"`
}

var taskHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "list tasks, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var status *types.TaskStatus
		if historyStatus != "" {
			parsed, err := types.ParseTaskStatus(historyStatus)
			if err != nil {
				return utils.Wrap(utils.ValidationError, err, "invalid --status")
			}
			status = &parsed
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			tasks, err := a.orchestrator.ListHistory(ctx, status, historyLimit, historyOffset)
			if err != nil {
				return err
			}
			total, err := a.tasks.CountHistory(ctx, status)
			if err != nil {
				return err
			}
			return printJSON(cmd, historyPage{Total: total, Tasks: tasks})
		})
	},
}

func init() {
	taskHistoryCmd.Flags().StringVarP(&historyStatus, "status", "", "", "(Optional) Only tasks in this status")
	taskHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "", 0, "(Optional) Page size, defaults to 50")
	taskHistoryCmd.Flags().IntVarP(&historyOffset, "offset", "", 0, "(Optional) Tasks to skip")
	taskCmd.AddCommand(taskStatusCmd, taskLogsCmd, taskHistoryCmd)
}
