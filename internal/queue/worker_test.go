package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/events"
	"github.com/shaiso/conductor/internal/mq"
	"github.com/shaiso/conductor/internal/repo"
)

// fakeStore — TaskStore в памяти.
type fakeStore struct {
	mu       sync.Mutex
	tasks    map[uuid.UUID]*repo.TaskRecord
	order    []uuid.UUID
	progress map[uuid.UUID]float64
	index    map[uuid.UUID]int
}

func newFakeStore(tasks ...*domain.Task) *fakeStore {
	s := &fakeStore{
		tasks:    make(map[uuid.UUID]*repo.TaskRecord),
		progress: make(map[uuid.UUID]float64),
		index:    make(map[uuid.UUID]int),
	}
	for _, t := range tasks {
		s.tasks[t.ID] = &repo.TaskRecord{Task: *t}
		s.order = append(s.order, t.ID)
	}
	return s
}

func (s *fakeStore) ListRunnable(_ context.Context, limit int) ([]*repo.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*repo.TaskRecord
	for _, id := range s.order {
		rec := s.tasks[id]
		if rec.Task.Status == domain.TaskStatusPending && len(out) < limit {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeStore) Claim(_ context.Context, id uuid.UUID) (*repo.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if rec.Task.Status != domain.TaskStatusPending {
		return nil, repo.ErrInvalidState
	}
	rec.Task.Status = domain.TaskStatusRunning
	copied := *rec
	return &copied, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[id]
	if !ok {
		return repo.ErrNotFound
	}
	rec.Task.Status = status
	return nil
}

func (s *fakeStore) UpdateProgress(_ context.Context, id uuid.UUID, index int, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index[id] = index
	s.progress[id] = progress
	return nil
}

func (s *fakeStore) status(id uuid.UUID) domain.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].Task.Status
}

// fakeRunner блокирует ExecuteTask до закрытия gate.
type fakeRunner struct {
	mu       sync.Mutex
	gate     chan struct{}
	started  chan uuid.UUID
	running  int
	maxSeen  int
	controls []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		gate:    make(chan struct{}),
		started: make(chan uuid.UUID, 16),
	}
}

func (r *fakeRunner) ExecuteTask(ctx context.Context, task *domain.Task) *domain.TaskResult {
	r.mu.Lock()
	r.running++
	if r.running > r.maxSeen {
		r.maxSeen = r.running
	}
	r.mu.Unlock()

	r.started <- task.ID

	select {
	case <-r.gate:
	case <-ctx.Done():
	}

	r.mu.Lock()
	r.running--
	r.mu.Unlock()

	return &domain.TaskResult{TaskID: task.ID, Status: domain.TaskStatusCompleted}
}

func (r *fakeRunner) control(action string, id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls = append(r.controls, action+":"+id.String())
	return true
}

func (r *fakeRunner) PauseTask(id uuid.UUID) bool  { return r.control("pause", id) }
func (r *fakeRunner) ResumeTask(id uuid.UUID) bool { return r.control("resume", id) }
func (r *fakeRunner) CancelTask(id uuid.UUID) bool { return r.control("cancel", id) }

func waitStarted(t *testing.T, r *fakeRunner) uuid.UUID {
	t.Helper()
	select {
	case id := <-r.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("task was not started")
		return uuid.Nil
	}
}

func newTask(name string) *domain.Task {
	return domain.NewTask(name, []domain.Step{{ID: "s1", Config: &domain.DelayConfig{}}}, nil)
}

func TestPoll_ClaimsAndExecutes(t *testing.T) {
	task := newTask("poll")
	store := newFakeStore(task)
	runner := newFakeRunner()
	w := New(Config{Store: store, Runner: runner, MaxConcurrent: 2})

	w.poll(context.Background())

	if id := waitStarted(t, runner); id != task.ID {
		t.Errorf("expected %s to start, got %s", task.ID, id)
	}
	if store.status(task.ID) != domain.TaskStatusRunning {
		t.Errorf("expected task to be claimed, got %s", store.status(task.ID))
	}

	close(runner.gate)
	w.tasksWg.Wait()

	// Второй poll ничего не находит
	w.poll(context.Background())
	select {
	case id := <-runner.started:
		t.Errorf("unexpected second start of %s", id)
	default:
	}
}

func TestPoll_RespectsConcurrencyLimit(t *testing.T) {
	tasks := []*domain.Task{newTask("a"), newTask("b"), newTask("c")}
	store := newFakeStore(tasks...)
	runner := newFakeRunner()
	w := New(Config{Store: store, Runner: runner, MaxConcurrent: 1})

	w.poll(context.Background())
	waitStarted(t, runner)

	pending := 0
	for _, task := range tasks {
		if store.status(task.ID) == domain.TaskStatusPending {
			pending++
		}
	}
	if pending != 2 {
		t.Errorf("expected 2 tasks left pending, got %d", pending)
	}

	close(runner.gate)
	w.tasksWg.Wait()

	// Освободившийся слот забирает следующий task
	w.poll(context.Background())
	waitStarted(t, runner)
	w.tasksWg.Wait()

	if runner.maxSeen != 1 {
		t.Errorf("expected at most 1 concurrent task, got %d", runner.maxSeen)
	}
}

func TestProcessTask_Errors(t *testing.T) {
	running := newTask("running")
	running.Status = domain.TaskStatusRunning
	store := newFakeStore(running)

	tests := []struct {
		name string
		id   uuid.UUID
		want error
	}{
		{"not found", uuid.New(), ErrTaskNotFound},
		{"already claimed", running.ID, ErrTaskNotPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(Config{Store: store, Runner: newFakeRunner(), MaxConcurrent: 1})
			if !w.sem.TryAcquire(1) {
				t.Fatal("expected free slot")
			}

			err := w.processTask(context.Background(), tt.id)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}

			// Слот возвращён
			if !w.sem.TryAcquire(1) {
				t.Error("slot was not released after error")
			}
		})
	}
}

func TestHandleTaskRunnable(t *testing.T) {
	task := newTask("mq")
	store := newFakeStore(task)
	runner := newFakeRunner()
	w := New(Config{Store: store, Runner: runner})

	delivery := &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeTaskRunnable, mq.TaskRunnablePayload{TaskID: task.ID})}
	if err := w.handleTaskRunnable(context.Background(), delivery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitStarted(t, runner)

	// Повторная доставка подтверждается без запуска
	if err := w.handleTaskRunnable(context.Background(), delivery); err != nil {
		t.Errorf("expected duplicate to be acked, got %v", err)
	}

	// Чужой тип сообщения — в DLQ, без запуска
	wrong := &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeEvent, mq.TaskRunnablePayload{TaskID: task.ID})}
	if err := w.handleTaskRunnable(context.Background(), wrong); !errors.Is(err, mq.ErrUnexpectedMessage) {
		t.Errorf("expected ErrUnexpectedMessage, got %v", err)
	}

	close(runner.gate)
	w.tasksWg.Wait()
}

func TestHandleControl(t *testing.T) {
	task := newTask("control")
	task.Status = domain.TaskStatusRunning
	store := newFakeStore(task)
	runner := newFakeRunner()
	w := New(Config{Store: store, Runner: runner})

	tests := []struct {
		action mq.ControlAction
		status domain.TaskStatus
	}{
		{mq.ControlPause, domain.TaskStatusPaused},
		{mq.ControlResume, domain.TaskStatusRunning},
		{mq.ControlCancel, domain.TaskStatusRunning},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			msg := mq.NewMessage(mq.MessageTypeTaskControl, mq.TaskControlPayload{TaskID: task.ID, Action: tt.action})
			if err := w.handleControl(context.Background(), &mq.Delivery{Message: *msg}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := store.status(task.ID); got != tt.status {
				t.Errorf("expected status %s, got %s", tt.status, got)
			}
		})
	}

	if len(runner.controls) != 3 {
		t.Errorf("expected 3 controls, got %v", runner.controls)
	}

	if _, err := w.applyControl(mq.TaskControlPayload{TaskID: task.ID, Action: "explode"}); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("expected ErrUnknownAction, got %v", err)
	}
}

// fakeInputs — InputProvider с набором ожидающих шагов.
type fakeInputs struct {
	mu       sync.Mutex
	waiting  map[uuid.UUID]string
	provided map[string]any
}

func (f *fakeInputs) ProvideInput(taskID uuid.UUID, stepID string, value any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.waiting[taskID] != stepID {
		return false
	}
	delete(f.waiting, taskID)
	f.provided[stepID] = value
	return true
}

func TestHandleControl_ProvideInput(t *testing.T) {
	task := newTask("input")
	task.Status = domain.TaskStatusRunning
	store := newFakeStore(task)
	inputs := &fakeInputs{
		waiting:  map[uuid.UUID]string{task.ID: "confirm"},
		provided: make(map[string]any),
	}
	w := New(Config{Store: store, Runner: newFakeRunner(), Inputs: inputs})

	deliver := func(p mq.TaskControlPayload) {
		t.Helper()
		// Через JSON, как после доставки из очереди
		data, err := json.Marshal(mq.NewMessage(mq.MessageTypeTaskControl, p))
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var msg mq.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := w.handleControl(context.Background(), &mq.Delivery{Message: msg}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Ответ для task другого экземпляра игнорируется
	deliver(mq.TaskControlPayload{TaskID: uuid.New(), Action: mq.ControlProvideInput, StepID: "confirm", Value: "no"})
	if len(inputs.provided) != 0 {
		t.Fatalf("foreign input must be ignored, got %v", inputs.provided)
	}

	deliver(mq.TaskControlPayload{TaskID: task.ID, Action: mq.ControlProvideInput, StepID: "confirm", Value: true})
	if inputs.provided["confirm"] != true {
		t.Errorf("expected value true, got %v", inputs.provided["confirm"])
	}
	// Статус task не меняется
	if got := store.status(task.ID); got != domain.TaskStatusRunning {
		t.Errorf("expected running, got %s", got)
	}

	if _, err := w.applyControl(mq.TaskControlPayload{TaskID: task.ID, Action: mq.ControlProvideInput}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProgressSink(t *testing.T) {
	task := newTask("progress")
	store := newFakeStore(task)
	sink := NewProgressSink(store, nil)

	sink.Emit(context.Background(), events.New(events.StepStarted, task.ID))
	if _, ok := store.progress[task.ID]; ok {
		t.Error("non-progress event must be ignored")
	}

	ev := events.New(events.TaskProgress, task.ID)
	ev.Progress = 50
	ev.StepIndex = 1
	sink.Emit(context.Background(), ev)

	if store.progress[task.ID] != 50 || store.index[task.ID] != 1 {
		t.Errorf("unexpected progress: %v / %v", store.progress[task.ID], store.index[task.ID])
	}
}
