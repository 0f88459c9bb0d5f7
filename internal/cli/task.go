package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для управления tasks через API.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskCreateCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
		newTaskControlCmd("pause", "Pause a running task", clientFn, outputFn),
		newTaskControlCmd("resume", "Resume a paused task", clientFn, outputFn),
		newTaskControlCmd("cancel", "Cancel a running task", clientFn, outputFn),
	)

	return cmd
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(ListTasksOpts{Status: status, Limit: limit})
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STATUS", "PROGRESS", "STEPS", "CREATED"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.ID, t.Name, t.Status, formatProgress(t.Progress), strconv.Itoa(t.TotalSteps), t.CreatedAt}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, running, paused, completed, failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newTaskCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "create FILE",
		Short: "Create a task from a JSON or YAML definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read definition: %w", err)
			}

			task, err := client.CreateTask(data, contentTypeFor(args[0]))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task %s created (%d steps)", task.ID, task.TotalSteps))
			if out.jsonMode {
				out.JSON(task)
			}
			return nil
		},
	}
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.GetTask(args[0])
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(task)
				return nil
			}

			headers := []string{"FIELD", "VALUE"}
			rows := [][]string{
				{"ID", task.ID},
				{"Name", task.Name},
				{"Status", task.Status},
				{"Progress", formatProgress(task.Progress)},
				{"Step", fmt.Sprintf("%d/%d", task.CurrentStepIndex+1, task.TotalSteps)},
				{"Created", task.CreatedAt},
			}
			if task.StartedAt != "" {
				rows = append(rows, []string{"Started", task.StartedAt})
			}
			if task.FinishedAt != "" {
				rows = append(rows, []string{"Finished", task.FinishedAt})
			}
			if task.Error != "" {
				rows = append(rows, []string{"Error", task.Error})
			}

			out.Table(headers, rows)
			return nil
		},
	}
}

func newTaskControlCmd(action, short string, clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.ControlTask(args[0], action)
			if err != nil {
				return err
			}

			if resp.Applied {
				out.Success(fmt.Sprintf("Task %s: %s applied", args[0], action))
			} else {
				out.Success(fmt.Sprintf("Task %s: %s sent to the instance running it", args[0], action))
			}
			return nil
		},
	}
}

// contentTypeFor выбирает Content-Type по расширению файла.
func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/json"
	}
}
