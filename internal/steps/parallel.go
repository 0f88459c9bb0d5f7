package steps

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/conductor/internal/domain"
)

// executeParallel выполняет substeps батчами по MaxConcurrency.
//
// Батчи идут строго последовательно, шаги внутри батча — конкурентно.
// Порядок результатов совпадает с порядком ID в конфигурации.
// При wait_for=first новые батчи не запускаются после первого успеха.
//
// ID без substep пропускаются: определения с такими ссылками отклоняет
// engine.Parse, сюда они доходят только из Task, собранной в коде.
func (e *Executor) executeParallel(ctx context.Context, task *domain.Task, step *domain.Step, cfg *domain.ParallelConfig, tc *domain.TaskContext, started time.Time) (*domain.StepResult, error) {
	substeps := make([]*domain.Step, 0, len(cfg.Steps))
	for _, id := range cfg.Steps {
		if sub := step.Substep(id); sub != nil {
			substeps = append(substeps, sub)
		}
	}

	batchSize := cfg.MaxConcurrency
	if batchSize <= 0 || batchSize > len(substeps) {
		batchSize = len(substeps)
	}

	results := make([]*domain.StepResult, 0, len(substeps))

	for start := 0; start < len(substeps); start += batchSize {
		if cfg.WaitFor == domain.WaitForFirst && anyCompleted(results) {
			break
		}

		end := min(start+batchSize, len(substeps))
		batch := substeps[start:end]
		batchResults := make([]*domain.StepResult, len(batch))

		// Ошибка конфигурации из substep отменяет остальные шаги батча
		g, gctx := errgroup.WithContext(ctx)
		for i, sub := range batch {
			i, sub := i, sub
			g.Go(func() error {
				r, err := e.Execute(gctx, task, sub, tc)
				if err != nil {
					return err
				}
				tc.RecordResult(r)
				batchResults[i] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		results = append(results, batchResults...)
	}

	failed := len(results) - domain.CountCompleted(results)

	ok := failed == 0
	if cfg.WaitFor == domain.WaitForFirst {
		ok = anyCompleted(results) || len(results) == 0
	}

	if !ok {
		r := domain.Failed(step.ID, fmt.Sprintf(msgParallelFmt, failed, len(results)), started)
		r.Data = results
		return r, nil
	}

	return domain.Completed(step.ID, results, started), nil
}

func anyCompleted(results []*domain.StepResult) bool {
	for _, r := range results {
		if r.IsCompleted() {
			return true
		}
	}
	return false
}
