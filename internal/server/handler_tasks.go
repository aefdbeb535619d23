package server

import (
	"encoding/json"
	"net/http"

	"github.com/me/flowc/internal/controlplane"
	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var tpl flow.TaskTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}
	if tpl.ID.ResourceType != flow.ResourceTask || tpl.ID.Name == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid task template",
				model.FieldError{Field: "id", Message: "a task id with a name is required"}))
		return
	}
	if err := tpl.ID.Validate(); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid task template", model.FieldError{Field: "id", Message: err.Error()}))
		return
	}

	err := s.cp.CreateTask(r.Context(), tpl)
	switch {
	case controlplane.IsAlreadyExists(err):
		respondError(w, reqID, http.StatusConflict, model.NewConflictError("task", tpl.ID.String()))
		return
	case err != nil:
		respondInternal(w, reqID, err)
		return
	}
	respondCreated(w, reqID, tpl)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	id, ok := identifierParam(w, r, flow.ResourceTask)
	if !ok {
		return
	}
	tpl, err := s.cp.GetTask(r.Context(), id)
	switch {
	case controlplane.IsNotFound(err):
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", id.String()))
		return
	case err != nil:
		respondInternal(w, reqID, err)
		return
	}
	respondOK(w, reqID, tpl)
}
