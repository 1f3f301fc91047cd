package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/agentboard/internal/core"
	"github.com/valter-silva-au/agentboard/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks (add, list, claim, update, complete, fail, approve, archive, show)",
	Long: `Task lifecycle commands.

Add work to the backlog, list what is available, claim a task for an
agent, report progress, and drive completed or failed work into the
archive.`,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Add a new task to the backlog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}

		idFlag, _ := cmd.Flags().GetString("id")
		priorityFlag, _ := cmd.Flags().GetString("priority")
		depsFlag, _ := cmd.Flags().GetStringSlice("depends-on")
		actorFlag, _ := cmd.Flags().GetString("actor")

		record := models.Task{
			ID:           idFlag,
			Description:  args[0],
			Priority:     models.Priority(priorityFlag),
			Dependencies: depsFlag,
		}
		task, err := Coord.AddTask(record, actorFlag)
		if err != nil {
			return fmt.Errorf("adding task: %w", err)
		}

		fmt.Printf("Added task %s\n", task.ID)
		fmt.Printf("  Priority:     %s\n", task.Priority)
		if len(task.Dependencies) > 0 {
			fmt.Printf("  Depends on:   %s\n", strings.Join(task.Dependencies, ", "))
		}
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks available to claim",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}

		priorityFlags, _ := cmd.Flags().GetStringSlice("priority")
		limitFlag, _ := cmd.Flags().GetInt("limit")

		filter := core.Filter{Limit: limitFlag}
		for _, p := range priorityFlags {
			filter.Priorities = append(filter.Priorities, models.Priority(p))
		}

		tasks, err := Coord.ListAvailable(filter)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks available.")
			return nil
		}

		for _, t := range tasks {
			fmt.Printf("%-40s  %-8s  %s\n", t.ID, t.Priority, t.Description)
		}
		fmt.Printf("\n%d task(s) available\n", len(tasks))
		return nil
	},
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim <task-id>",
	Short: "Claim an unclaimed task for an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		agentFlag, _ := cmd.Flags().GetString("agent")

		task, err := Coord.ClaimTask(args[0], agentFlag)
		if err != nil {
			return fmt.Errorf("claiming task: %w", err)
		}
		fmt.Printf("Claimed %s for %s\n", task.ID, task.AssignedAgent)
		return nil
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Update a claimed task's fields or working/blocked status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		agentFlag, _ := cmd.Flags().GetString("agent")
		noteFlag, _ := cmd.Flags().GetString("note")

		patch := core.Patch{Note: noteFlag}
		if cmd.Flags().Changed("description") {
			desc, _ := cmd.Flags().GetString("description")
			patch.Description = &desc
		}
		if cmd.Flags().Changed("priority") {
			p, _ := cmd.Flags().GetString("priority")
			prio := models.Priority(p)
			patch.Priority = &prio
		}
		if cmd.Flags().Changed("status") {
			s, _ := cmd.Flags().GetString("status")
			status := models.TaskStatus(s)
			patch.Status = &status
		}
		if cmd.Flags().Changed("depends-on") {
			deps, _ := cmd.Flags().GetStringSlice("depends-on")
			patch.Dependencies = deps
		}

		task, err := Coord.UpdateTask(args[0], agentFlag, patch)
		if err != nil {
			return fmt.Errorf("updating task: %w", err)
		}
		fmt.Printf("Updated %s (status %s)\n", task.ID, task.Status)
		return nil
	},
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Mark a working task completed, pending review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		agentFlag, _ := cmd.Flags().GetString("agent")
		summaryFlag, _ := cmd.Flags().GetString("summary")

		task, err := Coord.CompleteTask(args[0], agentFlag, summaryFlag, nil)
		if err != nil {
			return fmt.Errorf("completing task: %w", err)
		}
		fmt.Printf("Completed %s, awaiting review\n", task.ID)
		return nil
	},
}

var taskApproveCmd = &cobra.Command{
	Use:   "approve <task-id>",
	Short: "Approve a task pending review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		reviewerFlag, _ := cmd.Flags().GetString("reviewer")

		task, err := Coord.ApproveTask(args[0], reviewerFlag)
		if err != nil {
			return fmt.Errorf("approving task: %w", err)
		}
		fmt.Printf("Approved %s\n", task.ID)
		return nil
	},
}

var taskFailCmd = &cobra.Command{
	Use:   "fail <task-id>",
	Short: "Mark a task failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		actorFlag, _ := cmd.Flags().GetString("actor")
		reasonFlag, _ := cmd.Flags().GetString("reason")

		task, err := Coord.FailTask(args[0], actorFlag, reasonFlag)
		if err != nil {
			return fmt.Errorf("failing task: %w", err)
		}
		fmt.Printf("Failed %s: %s\n", task.ID, reasonFlag)
		return nil
	},
}

var taskArchiveCmd = &cobra.Command{
	Use:   "archive <task-id>",
	Short: "Archive a completed or failed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}
		actorFlag, _ := cmd.Flags().GetString("actor")

		if err := Coord.ArchiveTask(args[0], actorFlag); err != nil {
			return fmt.Errorf("archiving task: %w", err)
		}
		fmt.Printf("Archived %s\n", args[0])
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Coord == nil {
			return fmt.Errorf("coordinator not initialized")
		}

		task, board, err := Coord.GetTask(args[0])
		if err != nil {
			return fmt.Errorf("showing task: %w", err)
		}

		fmt.Printf("Task %s (%s board)\n", task.ID, board)
		fmt.Printf("  Status:       %s\n", task.Status)
		fmt.Printf("  Priority:     %s\n", task.Priority)
		fmt.Printf("  Description:  %s\n", task.Description)
		if task.AssignedAgent != "" {
			fmt.Printf("  Assigned to:  %s\n", task.AssignedAgent)
		}
		if len(task.Dependencies) > 0 {
			fmt.Printf("  Depends on:   %s\n", strings.Join(task.Dependencies, ", "))
		}
		if task.Summary != "" {
			fmt.Printf("  Summary:      %s\n", task.Summary)
		}
		fmt.Printf("  Created:      %s\n", task.Created.Format("2006-01-02 15:04:05 UTC"))
		fmt.Printf("  Updated:      %s\n", task.Updated.Format("2006-01-02 15:04:05 UTC"))

		if len(task.History) > 0 {
			fmt.Println("  History:")
			for _, h := range task.History {
				old := string(h.OldStatus)
				if old == "" {
					old = "(new)"
				}
				line := fmt.Sprintf("    %s  %s -> %s  by %s",
					h.Timestamp.Format("2006-01-02 15:04:05"), old, h.NewStatus, h.Actor)
				if h.Note != "" {
					line += "  (" + h.Note + ")"
				}
				fmt.Println(line)
			}
		}
		return nil
	},
}

func init() {
	taskAddCmd.Flags().String("id", "", "explicit task id (generated when omitted)")
	taskAddCmd.Flags().String("priority", "", "task priority (critical, high, normal, low)")
	taskAddCmd.Flags().StringSlice("depends-on", nil, "task ids this task depends on")
	taskAddCmd.Flags().String("actor", "", "identity recorded as the creator")

	taskListCmd.Flags().StringSlice("priority", nil, "only show these priorities")
	taskListCmd.Flags().Int("limit", 0, "cap the number of results")

	taskClaimCmd.Flags().String("agent", "", "agent identity claiming the task")
	_ = taskClaimCmd.MarkFlagRequired("agent")

	taskUpdateCmd.Flags().String("agent", "", "agent identity making the update")
	_ = taskUpdateCmd.MarkFlagRequired("agent")
	taskUpdateCmd.Flags().String("description", "", "replace the description")
	taskUpdateCmd.Flags().String("priority", "", "replace the priority")
	taskUpdateCmd.Flags().String("status", "", "set status to working or blocked")
	taskUpdateCmd.Flags().StringSlice("depends-on", nil, "replace the dependency list")
	taskUpdateCmd.Flags().String("note", "", "history note for this update")

	taskCompleteCmd.Flags().String("agent", "", "agent identity completing the task")
	_ = taskCompleteCmd.MarkFlagRequired("agent")
	taskCompleteCmd.Flags().String("summary", "", "summary of the completed work")

	taskApproveCmd.Flags().String("reviewer", "", "reviewer identity")

	taskFailCmd.Flags().String("actor", "", "identity recording the failure")
	_ = taskFailCmd.MarkFlagRequired("actor")
	taskFailCmd.Flags().String("reason", "", "why the task failed")

	taskArchiveCmd.Flags().String("actor", "", "identity archiving the task")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskClaimCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskCompleteCmd)
	taskCmd.AddCommand(taskApproveCmd)
	taskCmd.AddCommand(taskFailCmd)
	taskCmd.AddCommand(taskArchiveCmd)
	taskCmd.AddCommand(taskShowCmd)
	rootCmd.AddCommand(taskCmd)
}
