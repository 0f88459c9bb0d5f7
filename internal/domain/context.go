package domain

import (
	"encoding/json"
	"maps"
	"sync"
	"time"
)

// TaskContext — изменяемое состояние, общее для всех шагов одного выполнения task.
//
// Содержит плоский набор переменных и результаты шагов по ID.
// Принадлежит одному выполнению и отбрасывается после его завершения.
//
// Конкурентные шаги внутри parallel пишут в один и тот же контекст:
// записи сериализуются мьютексом, побеждает последняя запись.
type TaskContext struct {
	mu        sync.RWMutex
	variables map[string]any
	results   map[string]*StepResult

	SessionID string
	StartedAt time.Time
}

// NewTaskContext создаёт контекст, засеянный копией initial.
func NewTaskContext(initial map[string]any, sessionID string) *TaskContext {
	vars := make(map[string]any, len(initial))
	maps.Copy(vars, initial)
	return &TaskContext{
		variables: vars,
		results:   make(map[string]*StepResult),
		SessionID: sessionID,
		StartedAt: time.Now(),
	}
}

// Lookup возвращает значение переменной.
func (c *TaskContext) Lookup(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.variables[name]
	return v, ok
}

// Set записывает переменную.
func (c *TaskContext) Set(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables[name] = value
}

// Variables возвращает копию переменных.
func (c *TaskContext) Variables() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.variables)
}

// RecordResult индексирует результат шага по его ID.
func (c *TaskContext) RecordResult(r *StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[r.StepID] = r
}

// Result возвращает последний результат шага.
func (c *TaskContext) Result(stepID string) (*StepResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[stepID]
	return r, ok
}

// DependenciesMet проверяет, что у каждого шага из deps есть completed результат.
func (c *TaskContext) DependenciesMet(deps []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range deps {
		if !c.results[id].IsCompleted() {
			return false
		}
	}
	return true
}

// MarshalJSON сериализует снимок контекста.
func (c *TaskContext) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(struct {
		Variables map[string]any         `json:"variables"`
		Results   map[string]*StepResult `json:"results"`
		SessionID string                 `json:"session_id,omitempty"`
		StartedAt time.Time              `json:"started_at"`
	}{c.variables, c.results, c.SessionID, c.StartedAt})
}

// UnmarshalJSON восстанавливает контекст из снимка.
func (c *TaskContext) UnmarshalJSON(data []byte) error {
	var in struct {
		Variables map[string]any         `json:"variables"`
		Results   map[string]*StepResult `json:"results"`
		SessionID string                 `json:"session_id,omitempty"`
		StartedAt time.Time              `json:"started_at"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.variables = in.Variables
	if c.variables == nil {
		c.variables = make(map[string]any)
	}
	c.results = in.Results
	if c.results == nil {
		c.results = make(map[string]*StepResult)
	}
	c.SessionID = in.SessionID
	c.StartedAt = in.StartedAt
	return nil
}
