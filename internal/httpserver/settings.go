package httpserver

import (
	"net/http"

	"github.com/ronappleton/rubricflow/internal/tutor"
)

func (s *Server) handleAPIKeyStatus(w http.ResponseWriter, r *http.Request) {
	saved, err := s.session.HasSavedAPIKey(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	key, err := s.session.APIKey(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"saved": saved, "configured": key != ""})
}

func (s *Server) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.SetAPIKey(r.Context(), body.APIKey); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearAPIKey(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSelectedWorkflow(w http.ResponseWriter, r *http.Request) {
	id, err := s.session.SelectedWorkflow(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"workflow_id": id})
}

func (s *Server) handleSelectWorkflow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkflowID string `json:"workflow_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.WorkflowID != "" {
		if _, err := s.wf.GetWorkflow(r.Context(), body.WorkflowID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	if err := s.session.SelectWorkflow(r.Context(), body.WorkflowID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"workflow_id": body.WorkflowID})
}

func (s *Server) handleGetTutorSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.session.TutorSettings(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, settings)
}

func (s *Server) handleSaveTutorSettings(w http.ResponseWriter, r *http.Request) {
	settings := tutor.DefaultSettings()
	if err := decodeJSON(r, &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.SaveTutorSettings(r.Context(), settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, settings)
}

func (s *Server) handleGetTutorPrompts(w http.ResponseWriter, r *http.Request) {
	presets, err := s.session.TutorPrompts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"items": presets})
}

func (s *Server) handleSaveTutorPrompts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []tutor.Preset `json:"items"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.SaveTutorPrompts(r.Context(), body.Items); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"items": body.Items})
}

func (s *Server) handleTutorChat(w http.ResponseWriter, r *http.Request) {
	var in tutor.ChatInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	reply, err := s.tutor.Respond(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, reply)
}

func (s *Server) handleTutorHistory(w http.ResponseWriter, r *http.Request) {
	attempts, err := s.session.Attempts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"items": attempts})
}

func (s *Server) handleClearTutorHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearAttempts(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
