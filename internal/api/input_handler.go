package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shaiso/conductor/internal/domain"
)

// ListInputs возвращает wait шаги, ожидающие ввода.
// GET /api/v1/inputs
func (h *Handler) ListInputs(w http.ResponseWriter, _ *http.Request) {
	if h.inputs == nil {
		List(w, []any{}, 0)
		return
	}

	pending := h.inputs.Pending()
	List(w, pending, len(pending))
}

// ProvideInput передаёт ответ пользователя ожидающему wait шагу.
// POST /api/v1/inputs/{stepID}
// POST /api/v1/inputs/{taskID}/{stepID}
//
// Без taskID шаг ищется только среди ожидающих в этом экземпляре и должен
// быть однозначен. С taskID ответ, не нашедший шага локально, рассылается
// через conductor.control (202).
func (h *Handler) ProvideInput(w http.ResponseWriter, r *http.Request) {
	stepID := chi.URLParam(r, "stepID")

	id := uuid.Nil
	if raw := chi.URLParam(r, "taskID"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			BadRequest(w, "invalid task id")
			return
		}
		id = parsed
	}

	var req ProvideInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	resp := ProvideInputResponse{StepID: stepID}
	if id != uuid.Nil {
		resp.TaskID = &id
	}

	if h.inputs != nil && h.inputs.Provide(id, stepID, req.Value) {
		resp.Accepted = true
		h.log(r).Info("input provided", "task_id", id, "step_id", stepID)
		Success(w, resp)
		return
	}

	if id == uuid.Nil || h.notifier == nil {
		NotFound(w, "no pending input for step "+stepID)
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

	if err := h.notifier.PublishInput(r.Context(), id, stepID, req.Value); err != nil {
		InternalError(w, h.log(r), err)
		return
	}

	resp.Forwarded = true
	h.log(r).Info("input forwarded", "task_id", id, "step_id", stepID)
	Accepted(w, resp)
}
