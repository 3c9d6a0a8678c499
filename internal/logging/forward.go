package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const forwardBuffer = 200

type forwardPayload struct {
	Source   string            `json:"source"`
	Level    string            `json:"level"`
	Message  string            `json:"message"`
	Time     time.Time         `json:"time"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// forwarder posts log entries to a collector's /v1/logs endpoint from a
// single goroutine. Entries are dropped when the buffer is full.
type forwarder struct {
	baseURL string
	apiKey  string
	source  string
	client  *http.Client
	ch      chan forwardPayload

	closeOnce sync.Once
	done      chan struct{}
}

func newForwarder(baseURL, apiKey, source string, client *http.Client) *forwarder {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	return &forwarder{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		source:  source,
		client:  client,
		ch:      make(chan forwardPayload, forwardBuffer),
		done:    make(chan struct{}),
	}
}

func (f *forwarder) start() {
	go func() {
		defer close(f.done)
		for payload := range f.ch {
			f.post(payload)
		}
	}()
}

func (f *forwarder) post(payload forwardPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, f.baseURL+"/v1/logs", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

func (f *forwarder) enqueue(p forwardPayload) {
	select {
	case f.ch <- p:
	default:
	}
}

// stop drains the buffer or gives up when ctx ends.
func (f *forwarder) stop(ctx context.Context) error {
	f.closeOnce.Do(func() { close(f.ch) })
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type forwardCore struct {
	level  zapcore.LevelEnabler
	fields []zapcore.Field
	fwd    *forwarder
}

func (c *forwardCore) Enabled(level zapcore.Level) bool {
	return c.level.Enabled(level)
}

func (c *forwardCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *forwardCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *forwardCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	metadata := make(map[string]string, len(enc.Fields)+1)
	for k, v := range enc.Fields {
		metadata[k] = fmt.Sprint(v)
	}
	if entry.LoggerName != "" {
		metadata["logger"] = entry.LoggerName
	}
	c.fwd.enqueue(forwardPayload{
		Source:   c.fwd.source,
		Level:    entry.Level.String(),
		Message:  entry.Message,
		Time:     entry.Time,
		Metadata: metadata,
	})
	return nil
}

func (c *forwardCore) Sync() error { return nil }

// attachForwarder tees logger into a forwarding core at info level and up.
func attachForwarder(logger *zap.Logger, fwd *forwarder) *zap.Logger {
	core := &forwardCore{level: zapcore.InfoLevel, fwd: fwd}
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	}))
}
