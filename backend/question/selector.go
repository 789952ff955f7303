// Package question picks the next thing to ask the user and phrases it.
// Selection is deterministic (first unmet requirement in declaration
// order); phrasing is delegated to the generation collaborator with a
// mandatory static fallback, so the selector itself never fails.
package question

import (
	"context"
	"log/slog"
	"strings"

	"github.com/intentlabs/transformd/backend/flow"
	"github.com/intentlabs/transformd/backend/model"
	"github.com/intentlabs/transformd/backend/phase"
)

// Question is the next prompt to put to the user.
type Question struct {
	// Key is the fact key this question targets.
	Key string `json:"key"`
	// Text is the phrasing shown to the user.
	Text string `json:"text"`
	// Fallback is true when the static template was used because the
	// collaborator could not phrase the question.
	Fallback bool `json:"fallback,omitempty"`
}

type Selector struct {
	provider model.Provider
	history  int
	log      *slog.Logger
}

// NewSelector builds a selector that hands at most history recent turns
// to the collaborator as phrasing context.
func NewSelector(provider model.Provider, history int, log *slog.Logger) *Selector {
	if log == nil {
		log = slog.Default()
	}
	return &Selector{provider: provider, history: history, log: log}
}

// Next returns the question for the first unmet requirement. Calling it
// with nothing missing is a programming error: the state machine only
// keeps a phase current while something is missing.
func (s *Selector) Next(ctx context.Context, p phase.Phase, missing []flow.Requirement, history []model.Turn) Question {
	if len(missing) == 0 {
		panic("question: Next called with no missing requirements")
	}
	target := missing[0]

	resp, err := s.provider.GenerateQuestion(ctx, &model.QuestionRequest{
		Target: model.TargetKey{
			Key:         target.Key,
			Description: target.Description,
			Shape:       target.Shape,
		},
		Phase:   p,
		History: s.trim(history),
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		if err != nil {
			s.log.Warn("question phrasing failed, using template",
				slog.String("key", target.Key),
				slog.String("error", err.Error()))
		}
		return Question{Key: target.Key, Text: target.Template, Fallback: true}
	}
	return Question{Key: target.Key, Text: strings.TrimSpace(resp.Text)}
}

func (s *Selector) trim(history []model.Turn) []model.Turn {
	if s.history <= 0 || len(history) <= s.history {
		return history
	}
	return history[len(history)-s.history:]
}
