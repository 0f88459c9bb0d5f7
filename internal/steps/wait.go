package steps

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/events"
)

// InputBroker хранит wait шаги, ожидающие ввода пользователя.
//
// Ключ — пара (task, шаг): одинаковые ID шагов в разных tasks не мешают
// друг другу. Provide доставляет значение ровно одному ожиданию;
// после доставки, таймаута или отмены запись удаляется.
type InputBroker struct {
	mu      sync.Mutex
	pending map[inputKey]*pendingInput
}

type inputKey struct {
	taskID uuid.UUID
	stepID string
}

type pendingInput struct {
	req domain.InputRequest
	ch  chan any
}

// NewInputBroker создаёт пустой реестр.
func NewInputBroker() *InputBroker {
	return &InputBroker{
		pending: make(map[inputKey]*pendingInput),
	}
}

func keyOf(req domain.InputRequest) inputKey {
	return inputKey{taskID: req.TaskID, stepID: req.StepID}
}

// register добавляет ожидание. Канал буферизован, чтобы Provide не блокировался.
func (b *InputBroker) register(req domain.InputRequest) (*pendingInput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := keyOf(req)
	if _, exists := b.pending[key]; exists {
		return nil, ErrInputAlreadyPending
	}

	p := &pendingInput{req: req, ch: make(chan any, 1)}
	b.pending[key] = p
	return p, nil
}

// remove снимает ожидание. Возвращает false, если его уже снял Provide.
func (b *InputBroker) remove(p *pendingInput) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := keyOf(p.req)
	if b.pending[key] != p {
		return false
	}
	delete(b.pending, key)
	return true
}

// lookup находит ожидание. uuid.Nil вместо taskID — поиск только по шагу,
// успешный, если такое ожидание ровно одно. Вызывается под mu.
func (b *InputBroker) lookup(taskID uuid.UUID, stepID string) (inputKey, *pendingInput, bool) {
	if taskID != uuid.Nil {
		key := inputKey{taskID: taskID, stepID: stepID}
		p, ok := b.pending[key]
		return key, p, ok
	}

	var (
		found    *pendingInput
		foundKey inputKey
		n        int
	)
	for key, p := range b.pending {
		if key.stepID == stepID {
			found, foundKey = p, key
			n++
		}
	}
	if n != 1 {
		return inputKey{}, nil, false
	}
	return foundKey, found, true
}

// Provide передаёт значение ожидающему шагу.
// taskID может быть uuid.Nil, если stepID однозначен среди ожиданий.
// Возвращает false, если ожидание не найдено или stepID неоднозначен.
func (b *InputBroker) Provide(taskID uuid.UUID, stepID string, value any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	key, p, ok := b.lookup(taskID, stepID)
	if !ok {
		return false
	}
	delete(b.pending, key)
	p.ch <- value
	return true
}

// Get возвращает запрос ввода; taskID — как в Provide.
func (b *InputBroker) Get(taskID uuid.UUID, stepID string) (domain.InputRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, p, ok := b.lookup(taskID, stepID)
	if !ok {
		return domain.InputRequest{}, false
	}
	return p.req, true
}

// Pending возвращает все ожидающие запросы, старые первыми.
func (b *InputBroker) Pending() []domain.InputRequest {
	b.mu.Lock()
	out := make([]domain.InputRequest, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p.req)
	}
	b.mu.Unlock()

	slices.SortFunc(out, func(a, b domain.InputRequest) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}

// executeWait регистрирует запрос ввода и ждёт значение, таймаут или отмену.
func (e *Executor) executeWait(ctx context.Context, task *domain.Task, step *domain.Step, cfg *domain.WaitConfig, tc *domain.TaskContext, started time.Time) *domain.StepResult {
	inputType := cfg.InputType
	if inputType == "" {
		inputType = domain.InputTypeText
	}

	now := time.Now()
	req := domain.InputRequest{
		TaskID:    task.ID,
		StepID:    step.ID,
		Prompt:    cfg.Prompt,
		InputType: inputType,
		Choices:   cfg.Choices,
		CreatedAt: now,
		ExpiresAt: now.Add(e.inputTimeout),
	}

	p, err := e.inputs.register(req)
	if err != nil {
		return domain.Failed(step.ID, err.Error(), started)
	}

	ev := events.New(events.InputPending, task.ID)
	ev.StepID = step.ID
	ev.StepKind = domain.StepKindWait
	ev.Input = &req
	e.events.Emit(ctx, ev)

	e.logger.Info("waiting for user input", "task_id", task.ID, "step_id", step.ID, "timeout", e.inputTimeout)

	timer := time.NewTimer(e.inputTimeout)
	defer timer.Stop()

	var value any
	select {
	case value = <-p.ch:
	case <-timer.C:
		if e.inputs.remove(p) {
			if cfg.DefaultValue == nil {
				return domain.Failed(step.ID, msgInputTimeout, started)
			}
			value = cfg.DefaultValue
		} else {
			// Provide успел раньше таймера
			value = <-p.ch
		}
	case <-ctx.Done():
		e.inputs.remove(p)
		return domain.Failed(step.ID, msgCancelled, started)
	}

	if cfg.OutputVariable != "" {
		tc.Set(cfg.OutputVariable, value)
	}

	return domain.Completed(step.ID, value, started)
}
