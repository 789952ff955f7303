package model

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-sonnet-20241022"

type AnthropicProvider struct {
	core
	client *anthropic.Client
}

func NewAnthropicProvider(apiKey string, opts ...ProviderOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	options := DefaultProviderOptions("anthropic")
	for _, opt := range opts {
		opt(options)
	}
	if options.Model == "" {
		options.Model = defaultAnthropicModel
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if options.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(options.URL))
	}

	return &AnthropicProvider{
		core:   newCore("anthropic", options),
		client: anthropic.NewClient(clientOptions...),
	}, nil
}

func (p *AnthropicProvider) ExtractFacts(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
	return p.extractFacts(ctx, req, p.complete)
}

func (p *AnthropicProvider) GenerateQuestion(ctx context.Context, req *QuestionRequest) (*QuestionResponse, error) {
	return p.generateQuestion(ctx, req, p.complete)
}

func (p *AnthropicProvider) complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.F(p.model),
		MaxTokens:   anthropic.F(int64(1024)),
		Temperature: anthropic.F(0.2),
		System: anthropic.F([]anthropic.TextBlockParam{
			{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(systemPrompt),
			},
		}),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}),
	})
	if err != nil {
		return "", p.parseError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if textBlock, ok := block.AsUnion().(anthropic.TextBlock); ok {
			text.WriteString(textBlock.Text)
		}
	}
	return text.String(), nil
}

func (p *AnthropicProvider) parseError(err error) *ProviderError {
	if apiErr, ok := err.(*anthropic.Error); ok {
		pe := p.classifyStatus(apiErr.StatusCode, err)
		if apiErr.Response != nil {
			if retryAfter := apiErr.Response.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, convErr := strconv.Atoi(retryAfter); convErr == nil {
					pe.RetryAfter = time.Duration(seconds) * time.Second
				}
			}
		}
		return pe
	}
	return p.classifyTransport(err)
}
