// Package modeltest provides a deterministic Provider double for tests.
package modeltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/intentlabs/transformd/backend/model"
)

// Provider answers extraction requests from a scripted fact table and
// question requests with a canned phrasing. Tests mutate the fields
// between calls to simulate a conversation.
type Provider struct {
	mu sync.Mutex

	// Facts is returned for any requested target key present in the map.
	Facts map[string]model.ExtractedFact
	// ExtractErr, when set, fails every extraction call.
	ExtractErr error
	// QuestionErr, when set, fails every question call (exercising the
	// selector's static fallback).
	QuestionErr error
	// QuestionText overrides the generated phrasing when non-empty.
	QuestionText string

	ExtractCalls  int
	QuestionCalls []string
}

var _ model.Provider = (*Provider)(nil)

func New() *Provider {
	return &Provider{Facts: make(map[string]model.ExtractedFact)}
}

// SetFact scripts a fact the next extraction will report.
func (p *Provider) SetFact(key string, f model.ExtractedFact) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Facts[key] = f
}

// ClearFacts empties the scripted table.
func (p *Provider) ClearFacts() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Facts = make(map[string]model.ExtractedFact)
}

func (p *Provider) ExtractFacts(_ context.Context, req *model.ExtractRequest) (*model.ExtractResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.ExtractCalls++
	if p.ExtractErr != nil {
		return nil, p.ExtractErr
	}

	resp := &model.ExtractResponse{Facts: make(map[string]model.ExtractedFact, len(req.Targets))}
	for _, target := range req.Targets {
		if f, ok := p.Facts[target.Key]; ok {
			resp.Facts[target.Key] = f
		} else {
			resp.Facts[target.Key] = model.ExtractedFact{Found: false}
		}
	}
	return resp, nil
}

func (p *Provider) GenerateQuestion(_ context.Context, req *model.QuestionRequest) (*model.QuestionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.QuestionCalls = append(p.QuestionCalls, req.Target.Key)
	if p.QuestionErr != nil {
		return nil, p.QuestionErr
	}
	if p.QuestionText != "" {
		return &model.QuestionResponse{Text: p.QuestionText}, nil
	}
	return &model.QuestionResponse{Text: fmt.Sprintf("Tell me about %s.", req.Target.Key)}, nil
}
