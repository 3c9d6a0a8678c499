package httpserver

import (
	"mime"
	"net/http"
	"strings"

	"github.com/ronappleton/rubricflow/internal/workflow"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if id, ok := s.wf.ActiveRun(); ok {
		body["active_run"] = id
	}
	writeJSON(w, body)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	items, err := s.wf.ListWorkflows(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"items": items})
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf workflow.Workflow
	if err := decodeJSON(r, &wf); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.wf.CreateWorkflow(r.Context(), wf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, created)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.wf.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, wf)
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf workflow.Workflow
	if err := decodeJSON(r, &wf); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.wf.UpdateWorkflow(r.Context(), r.PathValue("id"), wf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, updated)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.wf.DeleteWorkflow(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportWorkflow(w http.ResponseWriter, r *http.Request) {
	data, filename, err := s.wf.ExportWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("content-type", "application/json")
	w.Header().Set("content-disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	_, _ = w.Write(data)
}

// handleImportWorkflow accepts the exported file either as the raw body or
// as the "file" part of a multipart form.
func (s *Server) handleImportWorkflow(w http.ResponseWriter, r *http.Request) {
	var data []byte
	if strings.HasPrefix(r.Header.Get("content-type"), "multipart/form-data") {
		b, _, err := formFile(r, "file")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		data = b
	} else {
		data = readBody(r)
	}
	wf, err := s.wf.ImportWorkflow(r.Context(), data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, wf)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"items": workflow.BuiltinTemplates()})
}
