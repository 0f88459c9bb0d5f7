package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/conductor/internal/domain"
)

// TaskRecord — task вместе с тем, что движок записал о его выполнении.
type TaskRecord struct {
	Task domain.Task `json:"task"`

	// Result — сводка последнего выполнения, nil пока task не завершён.
	Result *domain.TaskResult `json:"result,omitempty"`

	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TaskFilter — параметры выборки для List.
type TaskFilter struct {
	Status domain.TaskStatus
	Limit  int
	Offset int
}

// TaskRepo — репозиторий для работы с tasks.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `
	id, name, steps, initial_context, session_id, status, current_step_index,
	progress, result, error, created_at, started_at, finished_at, updated_at
`

// Create сохраняет новый task.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	stepsJSON, err := json.Marshal(task.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	initial := task.InitialContext
	if initial == nil {
		initial = map[string]any{}
	}
	initialJSON, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("marshal initial context: %w", err)
	}

	query := `
		INSERT INTO tasks (id, name, steps, initial_context, session_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.Name,
		stepsJSON,
		initialJSON,
		nullString(task.SessionID),
		task.Status,
		task.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID возвращает task по ID.
func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// List возвращает tasks с фильтрацией, новые первыми.
func (r *TaskRepo) List(ctx context.Context, filter TaskFilter) ([]*TaskRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, nullString(string(filter.Status)), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return collectTasks(rows)
}

// ListRunnable возвращает самые старые pending tasks.
// Используется поллингом, когда сообщение из очереди потерялось.
func (r *TaskRepo) ListRunnable(ctx context.Context, limit int) ([]*TaskRecord, error) {
	query := `SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runnable tasks: %w", err)
	}
	return collectTasks(rows)
}

// Claim атомарно переводит pending task в running и возвращает его.
// Если task уже забрал другой экземпляр, возвращает ErrInvalidState.
func (r *TaskRepo) Claim(ctx context.Context, id uuid.UUID) (*TaskRecord, error) {
	query := `
		UPDATE tasks
		SET status = 'running', started_at = now(), finished_at = NULL,
		    error = NULL, updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + taskColumns
	rec, err := scanTask(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	return rec, err
}

// UpdateStatus меняет статус незавершённого task.
func (r *TaskRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error {
	query := `
		UPDATE tasks
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`
	result, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// UpdateProgress сохраняет текущий шаг и процент выполнения.
func (r *TaskRepo) UpdateProgress(ctx context.Context, id uuid.UUID, index int, progress float64) error {
	query := `
		UPDATE tasks
		SET current_step_index = $2, progress = $3, updated_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, index, progress)
	if err != nil {
		return fmt.Errorf("update task progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteTask записывает итог выполнения.
// Реализует orchestrator.Completer.
func (r *TaskRepo) CompleteTask(ctx context.Context, res *domain.TaskResult) error {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		UPDATE tasks
		SET status = $2, result = $3, error = $4, progress = CASE WHEN $2 = 'completed' THEN 100 ELSE progress END,
		    finished_at = $5, updated_at = now()
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		res.TaskID,
		res.Status,
		resultJSON,
		nullString(res.Error),
		res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет завершённый task.
func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND status IN ('completed', 'failed', 'pending')`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidState
	}
	return nil
}

func collectTasks(rows pgx.Rows) ([]*TaskRecord, error) {
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*TaskRecord, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect tasks: %w", err)
	}
	return tasks, nil
}

// scanTask сканирует строку в TaskRecord.
func scanTask(row pgx.Row) (*TaskRecord, error) {
	var (
		rec         TaskRecord
		stepsJSON   []byte
		initialJSON []byte
		resultJSON  []byte
		sessionID   *string
		errMsg      *string
	)

	err := row.Scan(
		&rec.Task.ID,
		&rec.Task.Name,
		&stepsJSON,
		&initialJSON,
		&sessionID,
		&rec.Task.Status,
		&rec.Task.CurrentStepIndex,
		&rec.Task.Progress,
		&resultJSON,
		&errMsg,
		&rec.Task.CreatedAt,
		&rec.StartedAt,
		&rec.FinishedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &rec.Task.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	if len(initialJSON) > 0 {
		if err := json.Unmarshal(initialJSON, &rec.Task.InitialContext); err != nil {
			return nil, fmt.Errorf("unmarshal initial context: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		rec.Result = &domain.TaskResult{}
		if err := json.Unmarshal(resultJSON, rec.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if sessionID != nil {
		rec.Task.SessionID = *sessionID
	}
	if errMsg != nil {
		rec.Error = *errMsg
	}

	return &rec, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
