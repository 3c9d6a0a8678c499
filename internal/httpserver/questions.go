package httpserver

import (
	"io"
	"net/http"
	"strings"

	"github.com/ronappleton/rubricflow/internal/generation"
)

const maxImageBytes = 10 << 20

type detectRequest struct {
	ImageDataURL string `json:"image_data_url"`
	Prompt       string `json:"prompt"`
}

func formFile(r *http.Request, field string) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, "", badRequest("invalid multipart form")
	}
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return nil, "", badRequest("missing %q file", field)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxImageBytes {
		return nil, "", badRequest("file too large")
	}
	return data, hdr.Header.Get("content-type"), nil
}

// handleDetect accepts either a multipart "image" file or a JSON body with a
// data URL, detects the question and saves it to the session.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if strings.HasPrefix(r.Header.Get("content-type"), "multipart/form-data") {
		data, contentType, err := formFile(r, "image")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !strings.HasPrefix(contentType, "image/") {
			contentType = http.DetectContentType(data)
		}
		req.ImageDataURL = generation.EncodeImage(contentType, data)
		req.Prompt = r.FormValue("prompt")
	} else if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	q, err := s.detector.DetectQuestion(r.Context(), req.ImageDataURL, req.Prompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.session.SaveDetectedQuestion(r.Context(), q); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, q)
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.session.DetectedQuestion(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, q)
}

func (s *Server) handleClearQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearDetectedQuestion(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
