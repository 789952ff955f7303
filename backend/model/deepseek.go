package model

import (
	"context"
	"fmt"

	deepseek "github.com/cohesion-org/deepseek-go"
	"github.com/cohesion-org/deepseek-go/constants"
)

type DeepSeekProvider struct {
	core
	client *deepseek.Client
}

func NewDeepSeekProvider(apiKey string, opts ...ProviderOption) (*DeepSeekProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}

	options := DefaultProviderOptions("deepseek")
	for _, opt := range opts {
		opt(options)
	}
	if options.Model == "" {
		options.Model = deepseek.DeepSeekChat
	}

	var client *deepseek.Client
	if options.URL != "" {
		client = deepseek.NewClient(apiKey, options.URL)
	} else {
		client = deepseek.NewClient(apiKey)
	}

	return &DeepSeekProvider{
		core:   newCore("deepseek", options),
		client: client,
	}, nil
}

func (p *DeepSeekProvider) ExtractFacts(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
	return p.extractFacts(ctx, req, p.complete)
}

func (p *DeepSeekProvider) GenerateQuestion(ctx context.Context, req *QuestionRequest) (*QuestionResponse, error) {
	return p.generateQuestion(ctx, req, p.complete)
}

func (p *DeepSeekProvider) complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	response, err := p.client.CreateChatCompletion(ctx, &deepseek.ChatCompletionRequest{
		Model: p.model,
		Messages: []deepseek.ChatCompletionMessage{
			{Role: constants.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: constants.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", p.classifyTransport(err)
	}
	if len(response.Choices) == 0 {
		return "", NewProviderError(p.name, ProviderErrorKindMalformedOutput, fmt.Errorf("no choices in completion"))
	}
	return response.Choices[0].Message.Content, nil
}
