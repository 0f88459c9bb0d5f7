package domain

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// StepKind — тип шага.
type StepKind string

const (
	StepKindTool      StepKind = "tool"
	StepKindLLM       StepKind = "llm"
	StepKindWait      StepKind = "wait"
	StepKindCondition StepKind = "condition"
	StepKindParallel  StepKind = "parallel"
	StepKindLoop      StepKind = "loop"
	StepKindDelay     StepKind = "delay"
)

// Значения по умолчанию для составных шагов.
const (
	DefaultMaxIterations = 1000
)

// StepConfig — конфигурация шага, помеченная его типом.
//
// Реализации: ToolConfig, LLMConfig, WaitConfig, ConditionConfig,
// ParallelConfig, LoopConfig, DelayConfig и UnknownConfig.
// Интерфейс закрыт: новые типы добавляются только в этом пакете.
type StepConfig interface {
	Kind() StepKind
	isStepConfig()
}

// ToolConfig — вызов внешнего инструмента.
type ToolConfig struct {
	// Tool — имя инструмента в ToolInvoker.
	Tool string `json:"tool" yaml:"tool"`

	// Params — параметры; строки проходят через подстановку {{var}}.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`

	// OutputVariable — опционально, переменная контекста для результата.
	OutputVariable string `json:"output_variable,omitempty" yaml:"output_variable,omitempty"`
}

// LLMConfig — вызов языковой модели.
type LLMConfig struct {
	Prompt       string `json:"prompt" yaml:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`

	// OutputVariable — имя переменной контекста для ответа модели.
	OutputVariable string `json:"output_variable,omitempty" yaml:"output_variable,omitempty"`
}

// InputType — вид ожидаемого пользовательского ввода.
type InputType string

const (
	InputTypeText    InputType = "text"
	InputTypeChoice  InputType = "choice"
	InputTypeConfirm InputType = "confirm"
	InputTypeNumber  InputType = "number"
)

// WaitConfig — ожидание ввода от пользователя.
type WaitConfig struct {
	Prompt    string    `json:"prompt" yaml:"prompt"`
	InputType InputType `json:"input_type,omitempty" yaml:"input_type,omitempty"`
	Choices   []string  `json:"choices,omitempty" yaml:"choices,omitempty"`

	// DefaultValue — значение при таймауте. nil — значения нет, таймаут это ошибка.
	DefaultValue any `json:"default_value,omitempty" yaml:"default_value,omitempty"`

	OutputVariable string `json:"output_variable,omitempty" yaml:"output_variable,omitempty"`
}

// ConditionConfig — вычисление условия.
type ConditionConfig struct {
	Expression string `json:"expression" yaml:"expression"`
	ThenStep   string `json:"then_step,omitempty" yaml:"then_step,omitempty"`
	ElseStep   string `json:"else_step,omitempty" yaml:"else_step,omitempty"`
}

// WaitMode — когда parallel шаг перестаёт запускать батчи.
type WaitMode string

const (
	WaitForAll   WaitMode = "all"
	WaitForFirst WaitMode = "first"
)

// ParallelConfig — конкурентное выполнение substeps батчами.
type ParallelConfig struct {
	// Steps — ID substeps, которые нужно выполнить.
	Steps []string `json:"steps" yaml:"steps"`

	// MaxConcurrency — размер батча. 0 — все шаги одним батчем.
	MaxConcurrency int `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`

	WaitFor WaitMode `json:"wait_for,omitempty" yaml:"wait_for,omitempty"`
}

// LoopConfig — выполнение substep для каждого элемента массива.
type LoopConfig struct {
	ItemsVariable string `json:"items_variable" yaml:"items_variable"`
	ItemVariable  string `json:"item_variable" yaml:"item_variable"`

	// IndexVariable — опционально, имя переменной для индекса итерации.
	IndexVariable string `json:"index_variable,omitempty" yaml:"index_variable,omitempty"`

	// Step — ID substep, выполняемого на каждой итерации.
	Step string `json:"step" yaml:"step"`

	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

// Limit возвращает эффективный потолок итераций.
func (c *LoopConfig) Limit() int {
	if c.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return c.MaxIterations
}

// DelayConfig — пауза в миллисекундах.
type DelayConfig struct {
	DurationMs int `json:"duration_ms" yaml:"duration_ms"`
}

// UnknownConfig — конфигурация с нераспознанным типом.
// Сохраняется при декодировании, чтобы ошибка проявилась при выполнении.
type UnknownConfig struct {
	Type string         `json:"-" yaml:"-"`
	Raw  map[string]any `json:"raw,omitempty" yaml:"raw,omitempty"`
}

func (*ToolConfig) Kind() StepKind      { return StepKindTool }
func (*LLMConfig) Kind() StepKind       { return StepKindLLM }
func (*WaitConfig) Kind() StepKind      { return StepKindWait }
func (*ConditionConfig) Kind() StepKind { return StepKindCondition }
func (*ParallelConfig) Kind() StepKind  { return StepKindParallel }
func (*LoopConfig) Kind() StepKind      { return StepKindLoop }
func (*DelayConfig) Kind() StepKind     { return StepKindDelay }
func (c *UnknownConfig) Kind() StepKind { return StepKind(c.Type) }

func (*ToolConfig) isStepConfig()      {}
func (*LLMConfig) isStepConfig()       {}
func (*WaitConfig) isStepConfig()      {}
func (*ConditionConfig) isStepConfig() {}
func (*ParallelConfig) isStepConfig()  {}
func (*LoopConfig) isStepConfig()      {}
func (*DelayConfig) isStepConfig()     {}
func (*UnknownConfig) isStepConfig()   {}

// NewStepConfig возвращает пустую конфигурацию для типа.
// Для неизвестного типа возвращает *UnknownConfig.
func NewStepConfig(kind StepKind) StepConfig {
	switch kind {
	case StepKindTool:
		return &ToolConfig{}
	case StepKindLLM:
		return &LLMConfig{}
	case StepKindWait:
		return &WaitConfig{}
	case StepKindCondition:
		return &ConditionConfig{}
	case StepKindParallel:
		return &ParallelConfig{}
	case StepKindLoop:
		return &LoopConfig{}
	case StepKindDelay:
		return &DelayConfig{}
	default:
		return &UnknownConfig{Type: string(kind)}
	}
}

// Step — один узел в списке шагов task.
//
// Status изменяется движком по ходу выполнения.
type Step struct {
	// ID — уникальный идентификатор шага в рамках task.
	ID string

	// Name — человекочитаемое имя.
	Name string

	// Config — конфигурация, тип шага определяется Config.Kind().
	Config StepConfig

	// DependsOn — ID шагов, которые должны завершиться успешно до этого шага.
	DependsOn []string

	ErrorStrategy ErrorStrategy

	// MaxRetries — потолок попыток для retry. 0 — DefaultMaxRetries.
	MaxRetries int

	// Substeps — вложенные шаги для parallel и loop.
	Substeps []Step

	Status StepStatus
}

// Kind возвращает тип шага.
func (s *Step) Kind() StepKind {
	if s.Config == nil {
		return ""
	}
	return s.Config.Kind()
}

// RetryLimit возвращает эффективный потолок попыток.
func (s *Step) RetryLimit() int {
	if s.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return s.MaxRetries
}

// Substep ищет вложенный шаг по ID.
func (s *Step) Substep(id string) *Step {
	for i := range s.Substeps {
		if s.Substeps[i].ID == id {
			return &s.Substeps[i]
		}
	}
	return nil
}

// stepDoc — форма шага в JSON/YAML определениях.
type stepDoc struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
	Type          StepKind `json:"type" yaml:"type"`
	DependsOn     []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	ErrorStrategy string   `json:"error_strategy,omitempty" yaml:"error_strategy,omitempty"`
	MaxRetries    int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	Substeps      []Step   `json:"substeps,omitempty" yaml:"substeps,omitempty"`
	Status        string   `json:"status,omitempty" yaml:"status,omitempty"`
}

func (d *stepDoc) apply(s *Step, cfg StepConfig) {
	s.ID = d.ID
	s.Name = d.Name
	s.Config = cfg
	s.DependsOn = d.DependsOn
	s.ErrorStrategy = ParseErrorStrategy(d.ErrorStrategy)
	s.MaxRetries = d.MaxRetries
	s.Substeps = d.Substeps
	s.Status = StepStatus(d.Status)
	if s.Status == "" {
		s.Status = StepStatusPending
	}
}

// MarshalJSON сериализует шаг в формат определения.
func (s Step) MarshalJSON() ([]byte, error) {
	type out struct {
		stepDoc
		Config StepConfig `json:"config,omitempty"`
	}
	o := out{
		stepDoc: stepDoc{
			ID:            s.ID,
			Name:          s.Name,
			Type:          s.Kind(),
			DependsOn:     s.DependsOn,
			ErrorStrategy: string(s.ErrorStrategy),
			MaxRetries:    s.MaxRetries,
			Substeps:      s.Substeps,
			Status:        string(s.Status),
		},
		Config: s.Config,
	}
	if u, ok := s.Config.(*UnknownConfig); ok {
		return json.Marshal(struct {
			stepDoc
			Config map[string]any `json:"config,omitempty"`
		}{o.stepDoc, u.Raw})
	}
	return json.Marshal(o)
}

// UnmarshalJSON декодирует шаг, выбирая тип конфигурации по полю type.
func (s *Step) UnmarshalJSON(data []byte) error {
	var in struct {
		stepDoc
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	cfg := NewStepConfig(in.Type)
	if len(in.Config) > 0 && string(in.Config) != "null" {
		target := any(cfg)
		if u, ok := cfg.(*UnknownConfig); ok {
			target = &u.Raw
		}
		if err := json.Unmarshal(in.Config, target); err != nil {
			return fmt.Errorf("step %s: decode %s config: %w", in.ID, in.Type, err)
		}
	}

	in.stepDoc.apply(s, cfg)
	return nil
}

// UnmarshalYAML декодирует шаг из YAML.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	var in struct {
		stepDoc `yaml:",inline"`
		Config  yaml.Node `yaml:"config"`
	}
	if err := node.Decode(&in); err != nil {
		return err
	}

	cfg := NewStepConfig(in.Type)
	if !in.Config.IsZero() {
		target := any(cfg)
		if u, ok := cfg.(*UnknownConfig); ok {
			target = &u.Raw
		}
		if err := in.Config.Decode(target); err != nil {
			return fmt.Errorf("step %s: decode %s config: %w", in.ID, in.Type, err)
		}
	}

	in.stepDoc.apply(s, cfg)
	return nil
}
