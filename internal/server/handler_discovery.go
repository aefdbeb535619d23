package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "flowc control plane",
		Version:     "v1",
		Description: "Registry for compiled workflow templates and the task templates they reference",
		Endpoints: []endpointInfo{
			{"/api/v1/workflows", []string{"GET", "POST"}, "List or register compiled workflows"},
			{"/api/v1/workflows/validate", []string{"POST"}, "Validate a compiled workflow without storing it"},
			{"/api/v1/workflows/{id}", []string{"GET"}, "Workflow closure: template, sub-workflows and tasks"},
			{"/api/v1/tasks", []string{"POST"}, "Register a task template"},
			{"/api/v1/tasks/{id}", []string{"GET"}, "Single task template"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
