package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewInputCmd создаёт группу команд для ответов на wait шаги.
func NewInputCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "input",
		Short: "Answer steps waiting for user input",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List pending inputs",
			RunE: func(cmd *cobra.Command, args []string) error {
				client := clientFn()
				out := outputFn()

				inputs, err := client.ListInputs()
				if err != nil {
					return err
				}

				headers := []string{"STEP_ID", "TASK_ID", "TYPE", "PROMPT", "CHOICES", "EXPIRES"}
				rows := make([][]string, len(inputs))
				for i, in := range inputs {
					rows[i] = []string{in.StepID, in.TaskID, in.InputType, in.Prompt, strings.Join(in.Choices, ","), in.ExpiresAt}
				}

				out.Print(headers, rows, inputs)
				return nil
			},
		},
		newInputProvideCmd(clientFn, outputFn),
	)

	return cmd
}

func newInputProvideCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "provide STEP_ID VALUE",
		Short: "Provide a value; JSON literals (true, 3, [..]) are decoded",
		Long: "Provide a value for a waiting step.\n" +
			"Without --task the step ID must be unique among pending inputs of the instance.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.ProvideInput(taskID, args[0], ParseValue(args[1]))
			if err != nil {
				return err
			}

			if resp.Forwarded {
				out.Success(fmt.Sprintf("Input for step %s sent to the instance running task %s", args[0], taskID))
			} else {
				out.Success(fmt.Sprintf("Input for step %s accepted", args[0]))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "Task ID owning the step")
	return cmd
}

// ParseValue декодирует JSON литерал, иначе возвращает строку как есть.
func ParseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}
