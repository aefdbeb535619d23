package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/flowc/internal/controlplane"
	"github.com/me/flowc/pkg/flow"
	"github.com/me/flowc/pkg/model"
)

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	req, ok := s.decodeWorkflow(w, r)
	if !ok {
		return
	}
	if err := s.validateSpec(r.Context(), req.Spec); err != nil {
		respondCompileError(w, reqID, err)
		return
	}

	err := s.cp.CreateWorkflow(r.Context(), req.ID, req.Spec)
	switch {
	case controlplane.IsAlreadyExists(err):
		respondError(w, reqID, http.StatusConflict, model.NewConflictError("workflow", req.ID.String()))
		return
	case err != nil:
		respondInternal(w, reqID, err)
		return
	}

	respondCreated(w, reqID, model.WorkflowSummary{
		ID:           req.ID.String(),
		Project:      req.ID.Project,
		Domain:       req.ID.Domain,
		Name:         req.ID.Name,
		Version:      req.ID.Version,
		NodeCount:    len(req.Spec.Template.Nodes),
		SubWorkflows: len(req.Spec.SubWorkflows),
	})
}

// handleValidateWorkflow checks an uploaded workflow without storing it.
func (s *Server) handleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	req, ok := s.decodeWorkflow(w, r)
	if !ok {
		return
	}
	if err := s.validateSpec(r.Context(), req.Spec); err != nil {
		respondCompileError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"valid": true, "id": req.ID.String()})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	workflows, page, err := s.cp.ListWorkflows(r.Context(), listOptions(r))
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	respondList(w, reqID, workflows, page)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	id, ok := identifierParam(w, r, flow.ResourceWorkflow)
	if !ok {
		return
	}
	closure, err := s.cp.GetWorkflow(r.Context(), id)
	switch {
	case controlplane.IsNotFound(err):
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("workflow", id.String()))
		return
	case err != nil:
		respondInternal(w, reqID, err)
		return
	}
	respondOK(w, reqID, closure)
}

// decodeWorkflow reads a CreateWorkflowRequest and checks that its id
// names a workflow and agrees with the template it carries.
func (s *Server) decodeWorkflow(w http.ResponseWriter, r *http.Request) (model.CreateWorkflowRequest, bool) {
	reqID := RequestIDFromContext(r.Context())

	var req model.CreateWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return req, false
	}

	var problems []model.FieldError
	if req.ID.ResourceType != flow.ResourceWorkflow {
		problems = append(problems, model.FieldError{Field: "id.resource_type", Message: "must be workflow"})
	}
	if req.ID.Name == "" {
		problems = append(problems, model.FieldError{Field: "id.name", Message: "name is required"})
	}
	if err := req.ID.Validate(); err != nil {
		problems = append(problems, model.FieldError{Field: "id", Message: err.Error()})
	}
	if req.Spec.Template.ID != req.ID {
		problems = append(problems, model.FieldError{
			Field:   "spec.template.id",
			Message: "template id " + req.Spec.Template.ID.String() + " does not match " + req.ID.String(),
		})
	}
	if len(problems) > 0 {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid workflow request", problems...))
		return req, false
	}
	return req, true
}

// validateSpec promotes spec against the stored task templates and runs
// the compiler's validation over the result.
func (s *Server) validateSpec(ctx context.Context, spec flow.WorkflowSpec) error {
	subs := make(map[flow.Identifier]flow.WorkflowTemplate, len(spec.SubWorkflows))
	for _, sub := range spec.SubWorkflows {
		subs[sub.ID] = sub
	}

	tasks := map[flow.Identifier]flow.TaskTemplate{}
	for _, tpl := range append([]flow.WorkflowTemplate{spec.Template}, spec.SubWorkflows...) {
		for _, ref := range tpl.TaskRefs() {
			if _, seen := tasks[ref]; seen {
				continue
			}
			rec, err := s.store.GetTask(ctx, ref)
			if err != nil {
				return controlplane.ErrorIO("get task", err)
			}
			if rec != nil {
				tasks[ref] = rec.Template
			}
		}
	}

	wf, err := s.compiler.Promote(spec.Template, subs, tasks)
	if err != nil {
		return err
	}
	return wf.Validate()
}

// identifierParam parses the {id} route parameter. The resource type
// may be omitted, in which case want is assumed.
func identifierParam(w http.ResponseWriter, r *http.Request, want flow.ResourceType) (flow.Identifier, bool) {
	reqID := RequestIDFromContext(r.Context())

	raw, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err == nil && strings.Count(raw, ":") == 3 {
		raw = string(want) + ":" + raw
	}
	var id flow.Identifier
	if err == nil {
		id, err = flow.ParseIdentifier(raw)
	}
	if err == nil && id.ResourceType != want {
		err = fmt.Errorf("identifier %s: expected resource type %s", raw, want)
	}
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid identifier", model.FieldError{Field: "id", Message: err.Error()}))
		return flow.Identifier{}, false
	}
	return id, true
}

func listOptions(r *http.Request) model.ListOptions {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	opts.Project = q.Get("project")
	opts.Domain = q.Get("domain")
	opts.Clamp()
	return opts
}
