package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shaiso/conductor/internal/domain"
)

const jsonTask = `{
	"name": "briefing",
	"initial_context": {"city": "Paris"},
	"steps": [
		{"id": "weather", "type": "tool", "config": {"tool": "http", "params": {"url": "https://example.com/{{city}}"}}},
		{"id": "summary", "type": "llm", "depends_on": ["weather"], "error_strategy": "retry", "max_retries": 2,
		 "config": {"prompt": "Summarize {{weather}}", "output_variable": "summary"}},
		{"id": "fanout", "type": "parallel", "config": {"steps": ["a", "b"], "max_concurrency": 1, "wait_for": "first"},
		 "substeps": [
			{"id": "a", "type": "delay", "config": {"duration_ms": 10}},
			{"id": "b", "type": "delay", "config": {"duration_ms": 20}}
		 ]},
		{"id": "ask", "type": "wait", "error_strategy": "skip", "config": {"prompt": "Continue?", "input_type": "confirm", "default_value": true}}
	]
}`

const yamlTask = `
name: digest
initial_context:
  items: [1, 2, 3]
steps:
  - id: each
    type: loop
    config:
      items_variable: items
      item_variable: item
      step: echo
      max_iterations: 2
    substeps:
      - id: echo
        type: tool
        config:
          tool: echo
          params:
            value: "{{item}}"
  - id: check
    type: condition
    depends_on: [each]
    config:
      expression: "item > 1"
      then_step: done
      else_step: retry
`

func TestParseTask_JSON(t *testing.T) {
	task, err := ParseTask([]byte(jsonTask), FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if task.Name != "briefing" {
		t.Errorf("name = %q", task.Name)
	}
	if task.Status != domain.TaskStatusPending {
		t.Errorf("expected pending status, got %s", task.Status)
	}
	if len(task.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(task.Steps))
	}

	tool, ok := task.Steps[0].Config.(*domain.ToolConfig)
	if !ok {
		t.Fatalf("expected ToolConfig, got %T", task.Steps[0].Config)
	}
	if tool.Tool != "http" {
		t.Errorf("tool = %q", tool.Tool)
	}

	summary := task.Steps[1]
	if summary.ErrorStrategy != domain.ErrorStrategyRetry || summary.RetryLimit() != 2 {
		t.Errorf("unexpected retry settings: %s/%d", summary.ErrorStrategy, summary.RetryLimit())
	}
	llm := summary.Config.(*domain.LLMConfig)
	if llm.OutputVariable != "summary" {
		t.Errorf("output_variable = %q", llm.OutputVariable)
	}

	par := task.Steps[2].Config.(*domain.ParallelConfig)
	if par.MaxConcurrency != 1 || par.WaitFor != domain.WaitForFirst || len(task.Steps[2].Substeps) != 2 {
		t.Errorf("unexpected parallel config: %+v", par)
	}

	wait := task.Steps[3].Config.(*domain.WaitConfig)
	if wait.DefaultValue != true || wait.InputType != domain.InputTypeConfirm {
		t.Errorf("unexpected wait config: %+v", wait)
	}
	if task.Steps[3].ErrorStrategy != domain.ErrorStrategySkip {
		t.Errorf("error_strategy = %s", task.Steps[3].ErrorStrategy)
	}
	if task.Steps[0].ErrorStrategy != domain.ErrorStrategyFail {
		t.Errorf("default error_strategy should be fail, got %s", task.Steps[0].ErrorStrategy)
	}
}

func TestParseTask_YAML(t *testing.T) {
	task, err := ParseTask([]byte(yamlTask), FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loop, ok := task.Steps[0].Config.(*domain.LoopConfig)
	if !ok {
		t.Fatalf("expected LoopConfig, got %T", task.Steps[0].Config)
	}
	if loop.Limit() != 2 || loop.Step != "echo" {
		t.Errorf("unexpected loop config: %+v", loop)
	}

	echo := task.Steps[0].Substep("echo")
	if echo == nil || echo.Kind() != domain.StepKindTool {
		t.Fatalf("substep echo not decoded: %+v", echo)
	}

	cond := task.Steps[1].Config.(*domain.ConditionConfig)
	if cond.ThenStep != "done" || cond.ElseStep != "retry" {
		t.Errorf("unexpected condition config: %+v", cond)
	}

	items, ok := task.InitialContext["items"].([]any)
	if !ok || len(items) != 3 {
		t.Errorf("initial context items = %v", task.InitialContext["items"])
	}
}

func TestParseTask_JSONRoundTripKeepsKinds(t *testing.T) {
	task, err := ParseTask([]byte(jsonTask), FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := task.Steps[2].MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var step domain.Step
	if err := step.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if step.Kind() != domain.StepKindParallel || len(step.Substeps) != 2 {
		t.Errorf("parallel step lost shape: kind=%s substeps=%d", step.Kind(), len(step.Substeps))
	}
}

func TestParseTask_EmptySteps(t *testing.T) {
	task, err := ParseTask([]byte(`{"name": "noop", "steps": []}`), FormatJSON)
	if err != nil {
		t.Fatalf("empty step list must be valid: %v", err)
	}
	if len(task.Steps) != 0 {
		t.Errorf("expected no steps")
	}
}

func TestParseTask_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name:    "empty id",
			body:    `{"steps": [{"type": "delay", "config": {"duration_ms": 1}}]}`,
			wantErr: ErrEmptyStepID,
		},
		{
			name:    "duplicate id",
			body:    `{"steps": [{"id": "a", "type": "delay"}, {"id": "a", "type": "delay"}]}`,
			wantErr: ErrDuplicateStepID,
		},
		{
			name:    "unknown type",
			body:    `{"steps": [{"id": "a", "type": "teleport"}]}`,
			wantErr: ErrUnknownStepType,
		},
		{
			name:    "missing dependency",
			body:    `{"steps": [{"id": "a", "type": "delay", "depends_on": ["ghost"]}]}`,
			wantErr: ErrMissingDependency,
		},
		{
			name:    "self dependency",
			body:    `{"steps": [{"id": "a", "type": "delay", "depends_on": ["a"]}]}`,
			wantErr: ErrSelfDependency,
		},
		{
			name: "cycle",
			body: `{"steps": [
				{"id": "a", "type": "delay", "depends_on": ["b"]},
				{"id": "b", "type": "delay", "depends_on": ["a"]}]}`,
			wantErr: ErrCyclicDependency,
		},
		{
			name: "forward dependency",
			body: `{"steps": [
				{"id": "a", "type": "delay", "depends_on": ["b"]},
				{"id": "b", "type": "delay"}]}`,
			wantErr: ErrForwardDependency,
		},
		{
			name:    "parallel unknown substep",
			body:    `{"steps": [{"id": "p", "type": "parallel", "config": {"steps": ["x"]}}]}`,
			wantErr: ErrMissingSubstep,
		},
		{
			name:    "tool without name",
			body:    `{"steps": [{"id": "t", "type": "tool", "config": {}}]}`,
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "broken json",
			body:    `{"steps": [`,
			wantErr: ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTask([]byte(tt.body), FormatJSON)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	_, err := ParseTask([]byte(`{"steps": [{"id": "a", "type": "teleport"}]}`), FormatJSON)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if vErr.StepID != "a" || vErr.Field != "type" {
		t.Errorf("unexpected validation error: %+v", vErr)
	}
	if vErr.Error() != "step a: unknown step type: teleport" {
		t.Errorf("message = %q", vErr.Error())
	}
}

func TestLoadTaskFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "digest.yaml")
	if err := os.WriteFile(path, []byte(yamlTask), 0o644); err != nil {
		t.Fatal(err)
	}

	task, err := LoadTaskFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Name != "digest" {
		t.Errorf("name = %q", task.Name)
	}

	if _, err := LoadTaskFile(filepath.Join(dir, "task.toml")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}
