package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/conductor/internal/domain"
)

// Format — формат определения task.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat определяет формат по расширению файла.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ParseTask декодирует определение task и валидирует его.
//
// Пустые поля (ID, статус, время создания) заполняются значениями по умолчанию.
func ParseTask(data []byte, format Format) (*domain.Task, error) {
	var task domain.Task

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &task); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	task.Normalize()

	if err := Validate(&task); err != nil {
		return nil, err
	}

	return &task, nil
}

// LoadTaskFile читает и разбирает файл определения task.
func LoadTaskFile(path string) (*domain.Task, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	return ParseTask(data, format)
}

// Validate выполняет полную валидацию task.
//
// Проверяет:
// - Уникальность и непустоту ID шагов (включая substeps)
// - Корректность типов шагов
// - Ссылки parallel и loop на существующие substeps
// - Валидность depends_on, отсутствие циклов
// - Что зависимости стоят в списке раньше зависимых шагов
//
// Пустой список шагов допустим.
func Validate(task *domain.Task) error {
	if task == nil || len(task.Steps) == 0 {
		return nil
	}

	stepIDs := make(map[string]bool)
	for i := range task.Steps {
		if err := ValidateStep(&task.Steps[i], stepIDs); err != nil {
			return err
		}
	}

	for i := range task.Steps {
		step := &task.Steps[i]
		for _, dep := range step.DependsOn {
			if dep == step.ID {
				return NewValidationError(step.ID, "depends_on",
					"step depends on itself", ErrSelfDependency)
			}
		}
	}

	dag, err := BuildDAG(task.Steps)
	if err != nil {
		return err
	}

	return dag.CheckListOrder()
}

// ValidateStep валидирует шаг и его substeps.
// stepIDs — уже встреченные ID шагов (для проверки уникальности).
func ValidateStep(step *domain.Step, stepIDs map[string]bool) error {
	if step.ID == "" {
		return NewValidationError("", "id", "step has empty ID", ErrEmptyStepID)
	}

	if stepIDs[step.ID] {
		return NewValidationError(step.ID, "id",
			fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
	}
	stepIDs[step.ID] = true

	if err := validateConfig(step); err != nil {
		return err
	}

	for i := range step.Substeps {
		if err := ValidateStep(&step.Substeps[i], stepIDs); err != nil {
			return err
		}
	}

	return nil
}

// validateConfig проверяет конфигурацию конкретного типа.
func validateConfig(step *domain.Step) error {
	switch cfg := step.Config.(type) {
	case nil:
		return NewValidationError(step.ID, "type", "step has empty type", ErrUnknownStepType)

	case *domain.UnknownConfig:
		return NewValidationError(step.ID, "type",
			fmt.Sprintf("unknown step type: %s", cfg.Type), ErrUnknownStepType)

	case *domain.ToolConfig:
		if cfg.Tool == "" {
			return NewValidationError(step.ID, "config.tool", "tool name is required", ErrInvalidConfig)
		}

	case *domain.LLMConfig:
		if cfg.Prompt == "" {
			return NewValidationError(step.ID, "config.prompt", "prompt is required", ErrInvalidConfig)
		}

	case *domain.ConditionConfig:
		if strings.TrimSpace(cfg.Expression) == "" {
			return NewValidationError(step.ID, "config.expression", "expression is required", ErrInvalidConfig)
		}

	case *domain.ParallelConfig:
		for _, id := range cfg.Steps {
			if step.Substep(id) == nil {
				return NewValidationError(step.ID, "config.steps",
					fmt.Sprintf("unknown substep: %s", id), ErrMissingSubstep)
			}
		}

	case *domain.LoopConfig:
		if cfg.ItemsVariable == "" || cfg.ItemVariable == "" {
			return NewValidationError(step.ID, "config",
				"items_variable and item_variable are required", ErrInvalidConfig)
		}
		if step.Substep(cfg.Step) == nil {
			return NewValidationError(step.ID, "config.step",
				fmt.Sprintf("unknown substep: %s", cfg.Step), ErrMissingSubstep)
		}

	case *domain.DelayConfig:
		if cfg.DurationMs < 0 {
			return NewValidationError(step.ID, "config.duration_ms", "duration must not be negative", ErrInvalidConfig)
		}

	case *domain.WaitConfig:
	}

	return nil
}
