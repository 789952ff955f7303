package model

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultOpenAIModel = "gpt-4o-mini"

type OpenAIProvider struct {
	core
	client *openai.Client
}

func NewOpenAIProvider(apiKey string, opts ...ProviderOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	options := DefaultProviderOptions("openai")
	for _, opt := range opts {
		opt(options)
	}
	if options.Model == "" {
		options.Model = defaultOpenAIModel
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if options.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(options.URL))
	}

	return &OpenAIProvider{
		core:   newCore("openai", options),
		client: openai.NewClient(clientOptions...),
	}, nil
}

func (p *OpenAIProvider) ExtractFacts(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
	return p.extractFacts(ctx, req, p.complete)
}

func (p *OpenAIProvider) GenerateQuestion(ctx context.Context, req *QuestionRequest) (*QuestionResponse, error) {
	return p.generateQuestion(ctx, req, p.complete)
}

func (p *OpenAIProvider) complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.F(p.model),
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		}),
		MaxTokens:   openai.F(int64(1024)),
		Temperature: openai.F(0.2),
	})
	if err != nil {
		return "", p.parseError(err)
	}
	if len(completion.Choices) == 0 {
		return "", NewProviderError(p.name, ProviderErrorKindMalformedOutput, fmt.Errorf("no choices in completion"))
	}
	return completion.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) parseError(err error) *ProviderError {
	if apiErr, ok := err.(*openai.Error); ok {
		return p.classifyStatus(apiErr.StatusCode, err)
	}
	return p.classifyTransport(err)
}
