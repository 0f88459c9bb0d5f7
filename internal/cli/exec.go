package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/conductor/internal/config"
	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/engine"
	"github.com/shaiso/conductor/internal/events"
	"github.com/shaiso/conductor/internal/llm"
	"github.com/shaiso/conductor/internal/orchestrator"
	"github.com/shaiso/conductor/internal/steps"
	"github.com/shaiso/conductor/internal/telemetry"
	"github.com/shaiso/conductor/internal/tools"
)

// NewExecCmd создаёт команду локального выполнения task из файла.
// Не требует API, БД и RabbitMQ: движок работает в процессе CLI.
func NewExecCmd(outputFn func() *Output) *cobra.Command {
	var vars []string
	var inputTimeout time.Duration
	var verbose bool

	cmd := &cobra.Command{
		Use:   "exec FILE",
		Short: "Execute a task definition locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			task, err := engine.LoadTaskFile(args[0])
			if err != nil {
				return err
			}
			for _, kv := range vars {
				key, value, ok := strings.Cut(kv, "=")
				if !ok || key == "" {
					return fmt.Errorf("invalid --var %q, expected key=value", kv)
				}
				task.InitialContext[key] = ParseValue(value)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("input-timeout") {
				cfg.InputTimeout = inputTimeout
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := telemetry.NewLogger(out.errW, level, "text")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			result, err := runLocal(ctx, task, cfg, cmd.InOrStdin(), out.errW, logger)
			if err != nil {
				return err
			}

			out.TaskResult(result)
			if result.Status != domain.TaskStatusCompleted {
				return fmt.Errorf("task %s: %s", result.Status, result.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&vars, "var", nil, "Initial context variable key=value (repeatable, JSON values decoded)")
	cmd.Flags().DurationVar(&inputTimeout, "input-timeout", steps.DefaultInputTimeout, "How long wait steps wait for input")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log engine events")

	return cmd
}

// runLocal собирает движок со встроенными инструментами и выполняет task.
// Ответы на wait шаги читаются из in.
func runLocal(ctx context.Context, task *domain.Task, cfg config.Config, in io.Reader, errW io.Writer, logger *slog.Logger) (*domain.TaskResult, error) {
	inputs := steps.NewInputBroker()
	prompter := newStdinPrompter(in, errW, inputs.Provide)
	sink := events.NewMulti(events.LogSink{Logger: logger}, prompter)

	execCfg := steps.Config{
		Tools:        tools.DefaultRegistry(logger),
		Inputs:       inputs,
		Events:       sink,
		InputTimeout: cfg.InputTimeout,
		Logger:       logger,
	}

	model, err := llm.NewModel(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if model != nil {
		execCfg.Model = llm.NewClient(model, cfg.LLM, logger).Generate
	}

	eng := orchestrator.New(orchestrator.Config{
		Executor: steps.NewExecutor(execCfg),
		Events:   sink,
		Logger:   logger,
	})

	return eng.ExecuteTask(ctx, task), nil
}

// stdinPrompter отвечает на input.pending, читая строку из ввода.
// Одновременно задаётся один вопрос.
type stdinPrompter struct {
	mu      sync.Mutex
	in      *bufio.Reader
	errW    io.Writer
	provide func(taskID uuid.UUID, stepID string, value any) bool
}

func newStdinPrompter(in io.Reader, errW io.Writer, provide func(uuid.UUID, string, any) bool) *stdinPrompter {
	return &stdinPrompter{in: bufio.NewReader(in), errW: errW, provide: provide}
}

// Emit реализует events.Sink. Не блокирует движок.
func (p *stdinPrompter) Emit(_ context.Context, ev events.Event) {
	if ev.Type != events.InputPending || ev.Input == nil {
		return
	}
	go p.ask(*ev.Input)
}

func (p *stdinPrompter) ask(req domain.InputRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.errW, "[%s] %s", req.StepID, req.Prompt)
	switch {
	case len(req.Choices) > 0:
		fmt.Fprintf(p.errW, " (%s)", strings.Join(req.Choices, "/"))
	case req.InputType == domain.InputTypeConfirm:
		fmt.Fprint(p.errW, " [y/n]")
	}
	fmt.Fprint(p.errW, ": ")

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return
	}

	if !p.provide(req.TaskID, req.StepID, inputValue(req.InputType, strings.TrimSpace(line))) {
		fmt.Fprintf(p.errW, "step %s is no longer waiting for input\n", req.StepID)
	}
}

// inputValue приводит ответ к типу запроса.
func inputValue(typ domain.InputType, s string) any {
	switch typ {
	case domain.InputTypeConfirm:
		switch strings.ToLower(s) {
		case "y", "yes", "true", "1":
			return true
		default:
			return false
		}
	case domain.InputTypeNumber:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
