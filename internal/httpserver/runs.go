package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ronappleton/rubricflow/internal/session"
	"github.com/ronappleton/rubricflow/internal/workflow"
)

type startRunRequest struct {
	WorkflowID string                  `json:"workflow_id"`
	Workflow   *workflow.Workflow      `json:"workflow,omitempty"`
	Question   *workflow.QuestionInput `json:"question,omitempty"`
}

// handleStartRun starts a run. The workflow defaults to the selected one,
// then the built-in default; the question defaults to the detected one.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()

	in, err := s.runInput(r, req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var run workflow.Run
	if req.Workflow != nil {
		if err := workflow.Validate(*req.Workflow); err != nil {
			s.writeError(w, r, err)
			return
		}
		run, err = s.wf.StartWorkflowRun(*req.Workflow, in)
	} else {
		id := strings.TrimSpace(req.WorkflowID)
		if id == "" {
			if id, err = s.session.SelectedWorkflow(ctx); err != nil {
				s.writeError(w, r, err)
				return
			}
		}
		if id == "" {
			id = workflow.DefaultWorkflowID
		}
		run, err = s.wf.StartRun(ctx, id, in)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, run)
}

func (s *Server) runInput(r *http.Request, q *workflow.QuestionInput) (workflow.QuestionInput, error) {
	if q != nil {
		return *q, nil
	}
	d, err := s.session.DetectedQuestion(r.Context())
	if errors.Is(err, session.ErrNoDetectedQuestion) {
		return workflow.QuestionInput{}, badRequest("no question given and none detected")
	}
	if err != nil {
		return workflow.QuestionInput{}, err
	}
	return workflow.QuestionInput{Text: d.Text, Type: d.Type, Format: d.Format}, nil
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.wf.GetRun(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.wf.CancelRun(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, run)
}

func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.wf.ListLogs(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"items": logs})
}

// handleLogStream sends each log line as an SSE data event and a final
// "done" event carrying the run status once the run has finished.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if _, err := s.wf.GetRun(runID); err != nil {
		s.writeError(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.streamEvery)
	defer ticker.Stop()

	lastIdx := 0
	for {
		// read the status first so no line appended before it is missed
		run, err := s.wf.GetRun(runID)
		if err != nil {
			return
		}
		logs, _ := s.wf.ListLogs(runID)
		for lastIdx < len(logs) {
			for _, line := range strings.Split(logs[lastIdx], "\n") {
				_, _ = fmt.Fprintf(w, "data: %s\n", line)
			}
			_, _ = w.Write([]byte("\n"))
			lastIdx++
		}
		if run.Finished() {
			_, _ = fmt.Fprintf(w, "event: done\ndata: %s\n\n", run.Status)
			flusher.Flush()
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
