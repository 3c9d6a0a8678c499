package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ronappleton/rubricflow/internal/generation"
	"github.com/ronappleton/rubricflow/internal/session"
	"github.com/ronappleton/rubricflow/internal/tutor"
	"github.com/ronappleton/rubricflow/internal/workflow"
	"go.uber.org/zap"
)

const maxBodyBytes = 20 << 20

var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func readBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return b
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.Unmarshal(readBody(r), v); err != nil {
		return badRequest("invalid JSON body")
	}
	return nil
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errBadRequest}, args...)...)
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, workflow.ErrInvalidWorkflow),
		errors.Is(err, workflow.ErrEmptyQuestion),
		errors.Is(err, generation.ErrInvalidImage),
		errors.Is(err, generation.ErrMalformedCredential),
		errors.Is(err, tutor.ErrEmptyAnswer):
		return http.StatusBadRequest
	case errors.Is(err, generation.ErrMissingCredential),
		errors.Is(err, workflow.ErrMissingCredential),
		errors.Is(err, generation.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, workflow.ErrNotFound),
		errors.Is(err, session.ErrNoDetectedQuestion),
		errors.Is(err, tutor.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, generation.ErrRateLimited),
		errors.Is(err, generation.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, generation.ErrMalformedResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := errorBody{Error: generation.UserMessage(err)}
	var verr *workflow.ValidationError
	if errors.As(err, &verr) {
		body.Problems = verr.Problems()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeJSONStatus(w, status, body)
}
