package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/cuemby/zkbalancer/pkg/manager"
	"github.com/cuemby/zkbalancer/pkg/types"
	"github.com/spf13/cobra"
)

// Task commands
var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage simulated node tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			list, err := mgr.Tasks().List(limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), list, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tNODE\tSTATUS\tUPDATED\tDETAILS")
				for _, t := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.ID, dash(t.Node), t.Status, formatTime(t.UpdatedAt), dash(t.Details))
				}
			})
		})
	},
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Queue a new task",
	RunE: func(cmd *cobra.Command, args []string) error {
		node, _ := cmd.Flags().GetString("node")
		raw, _ := cmd.Flags().GetString("payload")

		var payload map[string]any
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &payload); err != nil {
				return fmt.Errorf("payload must be a JSON object: %w", err)
			}
		}

		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			task, err := mgr.Tasks().Create(node, payload)
			if err != nil {
				return err
			}
			return printTask(cmd, task, "queued")
		})
	},
}

var taskStartCmd = &cobra.Command{
	Use:   "start ID",
	Short: "Mark a queued task as running",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			task, err := mgr.Tasks().Start(args[0])
			if err != nil {
				return err
			}
			return printTask(cmd, task, "started")
		})
	},
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete ID",
	Short: "Finish a running task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed, _ := cmd.Flags().GetBool("failed")
		details, _ := cmd.Flags().GetString("details")
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			task, err := mgr.Tasks().Complete(args[0], !failed, details)
			if err != nil {
				return err
			}
			return printTask(cmd, task, string(task.Status))
		})
	},
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel ID",
	Short: "Cancel a queued or running task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			task, err := mgr.Tasks().Cancel(args[0], reason)
			if err != nil {
				return err
			}
			return printTask(cmd, task, "cancelled")
		})
	},
}

var taskPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the most recently updated tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			removed, err := mgr.Tasks().Prune(keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d tasks\n", removed)
			return nil
		})
	},
}

func printTask(cmd *cobra.Command, task *types.Task, verb string) error {
	return render(cmd.OutOrStdout(), task, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "✓ Task %s %s\n", task.ID, verb)
	})
}

// Ops commands
var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "Inspect the operation audit log",
}

var opsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded operations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withManager(func(ctx context.Context, mgr *manager.Manager) error {
			entries, err := mgr.Store().ListAudit(limit)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), entries, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tTIME\tACTOR\tACTION\tNODE\tSTATUS\tDETAILS")
				for _, e := range entries {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
						e.ID, formatTime(e.Timestamp), dash(e.Actor), e.Action, dash(e.Node), e.Status, dash(e.Details))
				}
			})
		})
	},
}

func init() {
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskStartCmd)
	taskCmd.AddCommand(taskCompleteCmd)
	taskCmd.AddCommand(taskCancelCmd)
	taskCmd.AddCommand(taskPruneCmd)

	taskListCmd.Flags().Int("limit", 50, "Maximum number of tasks to show (0 for all)")
	taskCreateCmd.Flags().String("node", "", "Node the task targets")
	taskCreateCmd.Flags().String("payload", "", "Task payload as a JSON object")
	taskCompleteCmd.Flags().Bool("failed", false, "Mark the task as failed instead of succeeded")
	taskCompleteCmd.Flags().String("details", "", "Completion details")
	taskCancelCmd.Flags().String("reason", "", "Cancellation reason")
	taskPruneCmd.Flags().Int("keep", 100, "Number of tasks to keep")

	opsCmd.AddCommand(opsListCmd)
	opsListCmd.Flags().Int("limit", 50, "Maximum number of entries to show (0 for all)")
}
