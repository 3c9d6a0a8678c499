package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ronappleton/rubricflow/internal/config"
	"github.com/ronappleton/rubricflow/internal/generation"
	"github.com/ronappleton/rubricflow/internal/kvstore"
	"github.com/ronappleton/rubricflow/internal/metrics"
	"github.com/ronappleton/rubricflow/internal/session"
	"github.com/ronappleton/rubricflow/internal/tutor"
	"github.com/ronappleton/rubricflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validKey = "sk-abcdefghijklmnopqrstuvwxyz0123456789"

type stubGenerator struct {
	mu    sync.Mutex
	gate  chan struct{}
	calls int
}

func (g *stubGenerator) Ready(context.Context) error { return nil }

func (g *stubGenerator) Complete(ctx context.Context, prompt, _ string) (string, error) {
	g.mu.Lock()
	g.calls++
	gate := g.gate
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "TYPE: short_answer\n1. Accurate (2 pts)", nil
}

type stubDetector struct {
	got []string
	q   generation.DetectedQuestion
	err error
}

func (d *stubDetector) DetectQuestion(_ context.Context, dataURL, _ string) (generation.DetectedQuestion, error) {
	d.got = append(d.got, dataURL)
	if d.err != nil {
		return generation.DetectedQuestion{}, d.err
	}
	if !generation.IsImageDataURL(dataURL) {
		return generation.DetectedQuestion{}, generation.ErrInvalidImage
	}
	return d.q, nil
}

type stubChat struct{ reply string }

func (c stubChat) Chat(context.Context, string, string) (string, error) { return c.reply, nil }

type fixture struct {
	srv      *httptest.Server
	gen      *stubGenerator
	detector *stubDetector
	session  *session.Store
	wf       *workflow.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	m := metrics.New()
	gen := &stubGenerator{}
	runs := workflow.NewRunStore()
	svc := workflow.NewService(
		workflow.NewRepository(kv),
		runs,
		workflow.NewEngine(gen, nil),
		workflow.NewNotifier(runs, nil, m, "", ""),
		nil,
	)
	t.Cleanup(svc.Close)
	sess := session.New(kv, "", nil)
	det := &stubDetector{q: generation.DetectedQuestion{Text: "What is 2+2?", Type: "short_answer", RawType: "short", Format: "Open"}}

	s := NewServer(Deps{
		Config:   config.Default(),
		Workflow: svc,
		Session:  sess,
		Tutor:    tutor.New(stubChat{reply: "Not quite, think again"}, sess, nil),
		Detector: det,
		Metrics:  m,
	})
	s.streamEvery = 5 * time.Millisecond
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, gen: gen, detector: det, session: sess, wf: svc}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(t, err)
	if rdr != nil {
		req.Header.Set("content-type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]any](t, resp)["status"])

	resp = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWorkflowCRUD(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/v1/workflows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[struct{ Items []workflow.Workflow }](t, resp)
	require.Len(t, list.Items, 1)
	assert.Equal(t, workflow.DefaultWorkflowID, list.Items[0].ID)

	resp = f.do(t, http.MethodPost, "/v1/workflows", map[string]any{"name": "", "steps": []any{}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	bad := decode[errorBody](t, resp)
	assert.Contains(t, bad.Problems, "Missing workflow name")

	resp = f.do(t, http.MethodPost, "/v1/workflows", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/workflows", workflow.LinearTemplate())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[workflow.Workflow](t, resp)

	created.Name = "Trimmed"
	resp = f.do(t, http.MethodPut, "/v1/workflows/"+created.ID, created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Trimmed", decode[workflow.Workflow](t, resp).Name)

	resp = f.do(t, http.MethodGet, "/v1/workflows/"+created.ID+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("content-disposition"), `filename=trimmed.json`)
	exported, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	resp = f.do(t, http.MethodDelete, "/v1/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/v1/workflows/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/workflows/import", string(exported))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, created.ID, decode[workflow.Workflow](t, resp).ID)

	resp = f.do(t, http.MethodPost, "/v1/workflows/import", `{"name":"x"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Problems, "Missing workflow ID")
}

func TestTemplates(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/v1/templates", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[struct{ Items []workflow.Workflow }](t, resp).Items, 2)
}

func TestDetectAndCurrentQuestion(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/v1/questions/current", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/questions/detect", map[string]string{"image_data_url": "not-an-image"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/questions/detect", map[string]string{"image_data_url": "data:image/png;base64,AAAA"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, f.detector.q, decode[generation.DetectedQuestion](t, resp))

	resp = f.do(t, http.MethodGet, "/v1/questions/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "What is 2+2?", decode[generation.DetectedQuestion](t, resp).Text)

	resp = f.do(t, http.MethodDelete, "/v1/questions/current", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/v1/questions/current", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDetectMultipart(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "q.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.srv.URL+"/v1/questions/detect", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, f.detector.got, 1)
	assert.True(t, strings.HasPrefix(f.detector.got[0], "data:image/png;base64,"))
}

func TestDetectMapsModelErrors(t *testing.T) {
	f := newFixture(t)
	f.detector.err = &generation.APIError{Kind: generation.ErrQuotaExceeded, StatusCode: 429}

	resp := f.do(t, http.MethodPost, "/v1/questions/detect", map[string]string{"image_data_url": "data:image/png;base64,AAAA"})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "OpenAI API quota exceeded. Please check your usage limits.", decode[errorBody](t, resp).Error)
}

func waitRun(t *testing.T, f *fixture, id string) workflow.Run {
	t.Helper()
	var run workflow.Run
	require.Eventually(t, func() bool {
		r, err := f.wf.GetRun(id)
		run = r
		return err == nil && r.Finished()
	}, 2*time.Second, 5*time.Millisecond)
	return run
}

func TestRunLifecycle(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/v1/runs", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "no question and none detected")

	resp = f.do(t, http.MethodPost, "/v1/runs", map[string]any{"question": map[string]string{"text": "   "}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/runs", map[string]any{
		"question": map[string]string{"text": "What is 2+2?", "type": "Short Answer"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	started := decode[workflow.Run](t, resp)
	assert.Equal(t, workflow.DefaultWorkflowID, started.WorkflowID)

	run := waitRun(t, f, started.ID)
	assert.Equal(t, workflow.StatusSucceeded, run.Status)
	assert.Equal(t, "1. Accurate (2 pts)", run.Result)

	resp = f.do(t, http.MethodGet, "/v1/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, workflow.StatusSucceeded, decode[workflow.Run](t, resp).Status)

	resp = f.do(t, http.MethodGet, "/v1/runs/"+run.ID+"/logs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logs := decode[struct{ Items []string }](t, resp).Items
	require.NotEmpty(t, logs)
	assert.Equal(t, "Workflow completed", logs[len(logs)-1])

	resp = f.do(t, http.MethodGet, "/v1/runs/run_missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunUsesDetectedQuestionAndInlineWorkflow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.SaveDetectedQuestion(context.Background(), f.detector.q))

	resp := f.do(t, http.MethodPost, "/v1/runs", map[string]any{"workflow": workflow.LinearTemplate()})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	run := waitRun(t, f, decode[workflow.Run](t, resp).ID)
	assert.Equal(t, workflow.StatusSucceeded, run.Status)
	assert.Equal(t, "What is 2+2?", run.Input.Text)
	assert.Equal(t, workflow.ModeLinear, run.Mode)

	resp = f.do(t, http.MethodPost, "/v1/runs", map[string]any{"workflow": map[string]any{"name": "broken"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunConflictAndCancel(t *testing.T) {
	f := newFixture(t)
	f.gen.gate = make(chan struct{})

	body := map[string]any{"question": map[string]string{"text": "q", "type": "short_answer"}}
	resp := f.do(t, http.MethodPost, "/v1/runs", body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	first := decode[workflow.Run](t, resp)

	resp = f.do(t, http.MethodPost, "/v1/runs", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/runs/"+first.ID+"/cancel", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, workflow.StatusCanceled, waitRun(t, f, first.ID).Status)
}

func TestLogStream(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/v1/runs", map[string]any{"question": map[string]string{"text": "q", "type": "essay"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	run := decode[workflow.Run](t, resp)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/v1/runs/"+run.ID+"/logs/stream", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	raw, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, "data: Starting workflow")
	assert.Contains(t, text, "data: Workflow completed\n\n")
	assert.True(t, strings.HasSuffix(text, "event: done\ndata: SUCCEEDED\n\n"))
}

func TestAPIKeySettings(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/v1/settings/api-key", map[string]string{"api_key": "sk-short"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/v1/settings/api-key", map[string]string{"api_key": validKey})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/v1/settings/api-key", nil)
	status := decode[map[string]bool](t, resp)
	assert.True(t, status["saved"])
	assert.True(t, status["configured"])

	resp = f.do(t, http.MethodDelete, "/v1/settings/api-key", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/v1/settings/api-key", nil)
	assert.False(t, decode[map[string]bool](t, resp)["saved"])
}

func TestSelectedWorkflow(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/v1/settings/workflow", map[string]string{"workflow_id": "wf_missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/v1/settings/workflow", map[string]string{"workflow_id": workflow.DefaultWorkflowID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/v1/settings/workflow", nil)
	assert.Equal(t, workflow.DefaultWorkflowID, decode[map[string]string](t, resp)["workflow_id"])
}

func TestTutorEndpoints(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/v1/settings/tutor", nil)
	assert.Equal(t, tutor.DefaultSettings(), decode[tutor.Settings](t, resp))

	resp = f.do(t, http.MethodPut, "/v1/settings/tutor", map[string]string{"spokenLanguage": "emoji"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[tutor.Settings](t, resp)
	assert.Equal(t, "emoji", saved.SpokenLanguage)
	assert.Equal(t, "encouraging", saved.Tone)

	resp = f.do(t, http.MethodGet, "/v1/tutor/prompts", nil)
	assert.Len(t, decode[struct{ Items []tutor.Preset }](t, resp).Items, 3)

	resp = f.do(t, http.MethodPost, "/v1/tutor/chat", map[string]any{"question": "2+2?", "answer": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/v1/tutor/chat", map[string]any{"question": "2+2?", "rubric": "4", "answer": "5", "promptId": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decode[tutor.Reply](t, resp)
	assert.Equal(t, "Not quite, think again", reply.Feedback)
	assert.Equal(t, int64(3), reply.Attempt.PromptID)

	resp = f.do(t, http.MethodPost, "/v1/tutor/chat", map[string]any{"answer": "5", "promptId": 77})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/v1/tutor/history", nil)
	assert.Len(t, decode[struct{ Items []tutor.Attempt }](t, resp).Items, 1)

	resp = f.do(t, http.MethodDelete, "/v1/tutor/history", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/v1/tutor/history", nil)
	assert.Empty(t, decode[struct{ Items []tutor.Attempt }](t, resp).Items)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{badRequest("x"), http.StatusBadRequest},
		{&generation.APIError{Kind: generation.ErrAuth}, http.StatusUnauthorized},
		{generation.ErrMissingCredential, http.StatusUnauthorized},
		{&generation.APIError{Kind: generation.ErrRateLimited}, http.StatusTooManyRequests},
		{&generation.APIError{Kind: generation.ErrMalformedResponse}, http.StatusBadGateway},
		{workflow.ErrRunInProgress, http.StatusConflict},
		{workflow.ErrNotFound, http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
