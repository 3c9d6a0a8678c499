// Package session keeps the single-user application state in the kv store
// under the key names the browser client used.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ronappleton/rubricflow/internal/generation"
	"github.com/ronappleton/rubricflow/internal/kvstore"
	"github.com/ronappleton/rubricflow/internal/tutor"
	"go.uber.org/zap"
)

const (
	APIKeyKey           = "openai_api_key"
	DetectedQuestionKey = "detectedQuestion"
	SelectedWorkflowKey = "selectedWorkflow"
	AttemptHistoryKey   = "attemptHistory"
	TutorPromptsKey     = "aiTutorPrompts"
	TutorSettingsKey    = "aiTutorSettings"
)

var ErrNoDetectedQuestion = errors.New("no detected question")

type Store struct {
	kv          kvstore.Store
	fallbackKey string
	logger      *zap.Logger

	// serializes read-modify-write of the attempt history
	mu sync.Mutex
}

// New returns a Store over kv. fallbackKey is used when no key has been
// saved, typically the configured one.
func New(kv kvstore.Store, fallbackKey string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, fallbackKey: strings.TrimSpace(fallbackKey), logger: logger}
}

// SetAPIKey stores key after the shape check. Nothing is stored when the
// check fails.
func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if err := generation.CheckKey(key); err != nil {
		return err
	}
	return s.kv.Set(ctx, APIKeyKey, key)
}

// APIKey returns the saved key, or the fallback key when none is saved.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	key, err := s.kv.Get(ctx, APIKeyKey)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		return s.fallbackKey, nil
	case err != nil:
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return s.fallbackKey, nil
	}
	return key, nil
}

// HasSavedAPIKey reports whether a key was saved, ignoring the fallback.
func (s *Store) HasSavedAPIKey(ctx context.Context) (bool, error) {
	_, err := s.kv.Get(ctx, APIKeyKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ClearAPIKey removes the saved key together with the attempt history.
func (s *Store) ClearAPIKey(ctx context.Context) error {
	if err := s.kv.Remove(ctx, APIKeyKey); err != nil {
		return err
	}
	s.logger.Info("api key removed, clearing attempt history")
	return s.ClearAttempts(ctx)
}

func (s *Store) SaveDetectedQuestion(ctx context.Context, q generation.DetectedQuestion) error {
	return kvstore.SetJSON(ctx, s.kv, DetectedQuestionKey, q)
}

// DetectedQuestion returns ErrNoDetectedQuestion when nothing is saved.
func (s *Store) DetectedQuestion(ctx context.Context) (generation.DetectedQuestion, error) {
	var q generation.DetectedQuestion
	err := kvstore.GetJSON(ctx, s.kv, DetectedQuestionKey, &q)
	if errors.Is(err, kvstore.ErrNotFound) {
		return q, ErrNoDetectedQuestion
	}
	return q, err
}

func (s *Store) ClearDetectedQuestion(ctx context.Context) error {
	return s.kv.Remove(ctx, DetectedQuestionKey)
}

// SelectedWorkflow returns "" when none is selected.
func (s *Store) SelectedWorkflow(ctx context.Context) (string, error) {
	id, err := s.kv.Get(ctx, SelectedWorkflowKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", nil
	}
	return id, err
}

func (s *Store) SelectWorkflow(ctx context.Context, id string) error {
	if id == "" {
		return s.kv.Remove(ctx, SelectedWorkflowKey)
	}
	return s.kv.Set(ctx, SelectedWorkflowKey, id)
}

// TutorSettings returns the saved settings or the defaults.
func (s *Store) TutorSettings(ctx context.Context) (tutor.Settings, error) {
	settings := tutor.DefaultSettings()
	err := kvstore.GetJSON(ctx, s.kv, TutorSettingsKey, &settings)
	if errors.Is(err, kvstore.ErrNotFound) {
		return tutor.DefaultSettings(), nil
	}
	return settings, err
}

func (s *Store) SaveTutorSettings(ctx context.Context, settings tutor.Settings) error {
	return kvstore.SetJSON(ctx, s.kv, TutorSettingsKey, settings)
}

// TutorPrompts returns the saved presets or the built-in ones.
func (s *Store) TutorPrompts(ctx context.Context) ([]tutor.Preset, error) {
	var presets []tutor.Preset
	err := kvstore.GetJSON(ctx, s.kv, TutorPromptsKey, &presets)
	if errors.Is(err, kvstore.ErrNotFound) {
		return tutor.Presets(), nil
	}
	if err != nil {
		return nil, err
	}
	return presets, nil
}

func (s *Store) SaveTutorPrompts(ctx context.Context, presets []tutor.Preset) error {
	if presets == nil {
		presets = []tutor.Preset{}
	}
	return kvstore.SetJSON(ctx, s.kv, TutorPromptsKey, presets)
}

// Attempts returns the attempt history, oldest first.
func (s *Store) Attempts(ctx context.Context) ([]tutor.Attempt, error) {
	var attempts []tutor.Attempt
	err := kvstore.GetJSON(ctx, s.kv, AttemptHistoryKey, &attempts)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []tutor.Attempt{}, nil
	}
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (s *Store) AppendAttempt(ctx context.Context, a tutor.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempts, err := s.Attempts(ctx)
	if err != nil {
		return err
	}
	return kvstore.SetJSON(ctx, s.kv, AttemptHistoryKey, append(attempts, a))
}

func (s *Store) ClearAttempts(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Remove(ctx, AttemptHistoryKey)
}
