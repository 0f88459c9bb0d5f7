package steps

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/shaiso/conductor/internal/domain"
)

// executeLoop выполняет substep для каждого элемента массива из контекста.
//
// Итерации идут строго по порядку, по одной. Отмена проверяется
// перед стартом цикла и на границе каждой итерации.
func (e *Executor) executeLoop(ctx context.Context, task *domain.Task, step *domain.Step, cfg *domain.LoopConfig, tc *domain.TaskContext, started time.Time) (*domain.StepResult, error) {
	if ctx.Err() != nil {
		return domain.Failed(step.ID, msgCancelled, started), nil
	}

	sub := step.Substep(cfg.Step)
	if sub == nil {
		return domain.Failed(step.ID, fmt.Sprintf(msgUnknownSubFmt, cfg.Step), started), nil
	}

	raw, _ := tc.Lookup(cfg.ItemsVariable)
	items, ok := asSlice(raw)
	if !ok {
		return domain.Failed(step.ID, fmt.Sprintf(msgNotAnArrayFmt, cfg.ItemsVariable), started), nil
	}

	if limit := cfg.Limit(); len(items) > limit {
		e.logger.Warn("loop truncated", "task_id", task.ID, "step_id", step.ID,
			"items", len(items), "max_iterations", limit)
		items = items[:limit]
	}

	results := make([]*domain.StepResult, 0, len(items))

	for i, item := range items {
		if ctx.Err() != nil {
			r := domain.Failed(step.ID, msgCancelled, started)
			r.Data = results
			return r, nil
		}

		tc.Set(cfg.ItemVariable, item)
		if cfg.IndexVariable != "" {
			tc.Set(cfg.IndexVariable, i)
		}

		r, err := e.Execute(ctx, task, sub, tc)
		if err != nil {
			return nil, err
		}
		tc.RecordResult(r)
		results = append(results, r)
	}

	if failed := len(results) - domain.CountCompleted(results); failed > 0 {
		r := domain.Failed(step.ID, fmt.Sprintf(msgIterationsFmt, failed, len(results)), started)
		r.Data = results
		return r, nil
	}

	return domain.Completed(step.ID, results, started), nil
}

// asSlice приводит значение переменной к []any.
// Поддерживает любые срезы и массивы, не только []any из JSON.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
