package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes собирает роутер API.
// extra — дополнительные middleware (например, метрики).
func (h *Handler) Routes(extra ...Middleware) chi.Router {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		Logging(h.logger),
		Recovery(),
	)
	r.Use(extra...)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		NotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		MethodNotAllowed(w)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Tasks
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTask)
				r.Post("/pause", h.PauseTask)
				r.Post("/resume", h.ResumeTask)
				r.Post("/cancel", h.CancelTask)
			})
		})

		// Inputs
		r.Get("/inputs", h.ListInputs)
		r.Post("/inputs/{stepID}", h.ProvideInput)
		r.Post("/inputs/{taskID}/{stepID}", h.ProvideInput)
	})

	return r
}
