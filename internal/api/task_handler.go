package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shaiso/conductor/internal/domain"
	"github.com/shaiso/conductor/internal/engine"
	"github.com/shaiso/conductor/internal/mq"
	"github.com/shaiso/conductor/internal/repo"
)

// maxDefinitionSize — предел размера тела с определением task.
const maxDefinitionSize = 1 << 20

// ListTasks возвращает список tasks с фильтрацией.
// GET /api/v1/tasks?status=...&limit=...&offset=...
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := repo.TaskFilter{
		Status: domain.TaskStatus(r.URL.Query().Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	tasks, err := h.store.List(r.Context(), filter)
	if HandleRepoError(w, h.log(r), err, "") {
		return
	}

	result := make([]TaskResponse, len(tasks))
	for i, rec := range tasks {
		result[i] = TaskFromRecord(rec, false)
	}

	List(w, result, len(result))
}

// CreateTask сохраняет task и ставит его в очередь.
// POST /api/v1/tasks
//
// Тело — определение task в JSON или YAML (Content-Type: application/yaml).
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDefinitionSize))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	task, err := engine.ParseTask(data, requestFormat(r))
	if err != nil {
		DefinitionError(w, err)
		return
	}

	// Новый task всегда начинает с pending, что бы ни пришло в теле
	task.Status = domain.TaskStatusPending

	if err := h.store.Create(r.Context(), task); HandleRepoError(w, h.log(r), err, "") {
		return
	}

	h.log(r).Info("task created", "task_id", task.ID, "name", task.Name, "steps", len(task.Steps))

	if h.notifier != nil {
		// Ошибка публикации не фатальна: task подхватит polling
		if err := h.notifier.PublishTaskRunnable(r.Context(), task.ID); err != nil {
			h.log(r).Warn("failed to publish task.runnable", "task_id", task.ID, "error", err)
		}
	}

	rec, err := h.store.GetByID(r.Context(), task.ID)
	if HandleRepoError(w, h.log(r), err, "task not found") {
		return
	}
	Created(w, TaskFromRecord(rec, true))
}

// GetTask возвращает task по ID.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	rec, err := h.store.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "task not found") {
		return
	}

	resp := TaskFromRecord(rec, true)
	if h.controller != nil {
		if stats, ok := h.controller.Stats(id); ok {
			resp.Live = &stats
		}
	}
	Success(w, resp)
}

// PauseTask приостанавливает task.
// POST /api/v1/tasks/{id}/pause
func (h *Handler) PauseTask(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, mq.ControlPause)
}

// ResumeTask возобновляет task.
// POST /api/v1/tasks/{id}/resume
func (h *Handler) ResumeTask(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, mq.ControlResume)
}

// CancelTask отменяет task.
// POST /api/v1/tasks/{id}/cancel
func (h *Handler) CancelTask(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, mq.ControlCancel)
}

// control применяет команду к task этого экземпляра,
// а если task выполняется в другом — рассылает её через conductor.control.
func (h *Handler) control(w http.ResponseWriter, r *http.Request, action mq.ControlAction) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	rec, err := h.store.GetByID(r.Context(), id)
	if HandleRepoError(w, h.log(r), err, "task not found") {
		return
	}

	switch rec.Task.Status {
	case domain.TaskStatusRunning, domain.TaskStatusPaused:
	default:
		InvalidState(w, "task is "+string(rec.Task.Status))
		return
	}

	resp := ControlResponse{TaskID: id, Action: string(action)}

	if h.apply(id, action) {
		resp.Applied = true
		if status, ok := action.ResultingStatus(); ok {
			if err := h.store.UpdateStatus(r.Context(), id, status); err != nil && !errors.Is(err, repo.ErrInvalidState) {
				h.log(r).Warn("failed to store task status", "task_id", id, "status", status, "error", err)
			}
		}
		h.log(r).Info("control applied", "task_id", id, "action", action)
		Success(w, resp)
		return
	}

	if h.notifier == nil {
		NotFound(w, "task is not in flight")
		return
	}

	if err := h.notifier.PublishControl(r.Context(), id, action); err != nil {
		InternalError(w, h.log(r), err)
		return
	}
	Accepted(w, resp)
}

func (h *Handler) apply(id uuid.UUID, action mq.ControlAction) bool {
	if h.controller == nil {
		return false
	}
	switch action {
	case mq.ControlPause:
		return h.controller.PauseTask(id)
	case mq.ControlResume:
		return h.controller.ResumeTask(id)
	case mq.ControlCancel:
		return h.controller.CancelTask(id)
	default:
		return false
	}
}

func taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return uuid.Nil, false
	}
	return id, true
}

// requestFormat выбирает формат по Content-Type. По умолчанию JSON.
func requestFormat(r *http.Request) engine.Format {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return engine.FormatYAML
	default:
		return engine.FormatJSON
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
