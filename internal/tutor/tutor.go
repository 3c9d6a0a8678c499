// Package tutor produces rubric-guided feedback on a student's answer.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrEmptyAnswer    = errors.New("answer is empty")
	ErrPresetNotFound = errors.New("tutor prompt not found")
)

// Chatter sends one system prompt and one user message to a chat model.
type Chatter interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// State is where settings, presets and attempt history are kept between
// calls.
type State interface {
	TutorSettings(ctx context.Context) (Settings, error)
	TutorPrompts(ctx context.Context) ([]Preset, error)
	Attempts(ctx context.Context) ([]Attempt, error)
	AppendAttempt(ctx context.Context, a Attempt) error
}

type Tutor struct {
	chat   Chatter
	state  State
	logger *zap.Logger
	now    func() time.Time
}

func New(chat Chatter, state State, logger *zap.Logger) *Tutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tutor{chat: chat, state: state, logger: logger, now: time.Now}
}

func Module() fx.Option {
	return fx.Provide(func(chat Chatter, state State, logger *zap.Logger) *Tutor {
		return New(chat, state, logger.Named("tutor"))
	})
}

// Feedback asks the chat model to assess req.Answer. It does not record
// anything.
func (t *Tutor) Feedback(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Answer) == "" {
		return "", ErrEmptyAnswer
	}
	system := BuildSystemPrompt(req)
	t.logger.Debug("tutor feedback requested",
		zap.String("preset", req.Preset.Name),
		zap.Int("history", len(req.History)),
		zap.Int("system_prompt_len", len(system)),
	)
	out, err := t.chat.Chat(ctx, system, UserMessage(req.Answer))
	if err != nil {
		return "", fmt.Errorf("tutor feedback: %w", err)
	}
	return out, nil
}

// ChatInput is one student turn. PresetID zero selects the first preset.
type ChatInput struct {
	Question string `json:"question"`
	Type     string `json:"type"`
	Format   string `json:"format"`
	Rubric   string `json:"rubric"`
	Answer   string `json:"answer"`
	PresetID int64  `json:"promptId"`
}

type Reply struct {
	Feedback        string  `json:"feedback"`
	Attempt         Attempt `json:"attempt"`
	DirectToTeacher bool    `json:"directToTeacher"`
}

// Respond loads the saved settings, preset and history, asks for feedback
// and records the attempt.
func (t *Tutor) Respond(ctx context.Context, in ChatInput) (Reply, error) {
	if strings.TrimSpace(in.Answer) == "" {
		return Reply{}, ErrEmptyAnswer
	}
	settings, err := t.state.TutorSettings(ctx)
	if err != nil {
		return Reply{}, err
	}
	presets, err := t.state.TutorPrompts(ctx)
	if err != nil {
		return Reply{}, err
	}
	preset, err := pickPreset(presets, in.PresetID)
	if err != nil {
		return Reply{}, err
	}
	history, err := t.state.Attempts(ctx)
	if err != nil {
		return Reply{}, err
	}

	feedback, err := t.Feedback(ctx, Request{
		Question: in.Question,
		Type:     in.Type,
		Format:   in.Format,
		Rubric:   in.Rubric,
		Answer:   in.Answer,
		Preset:   preset,
		History:  history,
		Settings: &settings,
	})
	if err != nil {
		return Reply{}, err
	}

	attempt := NewAttempt(in.Answer, feedback, preset.ID, t.now())
	if err := t.state.AppendAttempt(ctx, attempt); err != nil {
		return Reply{}, err
	}
	history = append(history, attempt)
	return Reply{
		Feedback:        feedback,
		Attempt:         attempt,
		DirectToTeacher: ShouldDirectToTeacher(history, DefaultMaxAttempts),
	}, nil
}

func pickPreset(presets []Preset, id int64) (Preset, error) {
	if len(presets) == 0 {
		presets = Presets()
	}
	if id == 0 {
		return presets[0], nil
	}
	for _, p := range presets {
		if p.ID == id {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %d", ErrPresetNotFound, id)
}
