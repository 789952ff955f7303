package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/shared/conv"
)

const extractionSystemPrompt = `You are a data extraction expert for business transformation conversations.
Extract information from the user's message and return only a JSON object, no prose and no markdown.
For every requested key return either null (not mentioned) or {"value": ..., "confidence": 0.0-1.0}.
Scalar keys take a single string or number, list keys take an array of strings, text keys take a string.
Never invent information that is not in the message.`

const questionSystemPrompt = `You are a business transformation consultant guiding a structured discovery conversation.
Ask exactly one clear, specific question that elicits the requested information.
Reference what the user already said where it helps continuity. Reply with the question text only.`

func buildExtractionPrompt(req *ExtractRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation phase: %s\n\nRequested keys:\n", req.Phase)
	for _, t := range req.Targets {
		fmt.Fprintf(&b, "- %s (%s): %s\n", t.Key, t.Shape, t.Description)
	}
	fmt.Fprintf(&b, "\nUser message:\n%s\n", req.Message)
	return b.String()
}

func buildQuestionPrompt(req *QuestionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation phase: %s\n", req.Phase)
	fmt.Fprintf(&b, "Information needed: %s\n", req.Target.Description)
	fmt.Fprintf(&b, "Fact key: %s\n", req.Target.Key)
	if len(req.History) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, turn := range req.History {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Text)
		}
	}
	return b.String()
}

var trailingCommas = regexp.MustCompile(`,\s*([}\]])`)

// extractionItem is the per-key wire format of the extraction contract.
type extractionItem struct {
	Value      json.RawMessage `json:"value"`
	Confidence *float64        `json:"confidence"`
}

// DecodeExtraction parses a collaborator's extraction response into
// per-key results. Models wrap JSON in markdown fences or leave trailing
// commas often enough that both are tolerated. A response that is not a
// JSON object at all is malformed output, which the caller may retry.
func DecodeExtraction(provider, content string, targets []TargetKey) (*ExtractResponse, error) {
	cleaned := stripFences(content)
	cleaned = trailingCommas.ReplaceAllString(cleaned, "$1")

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, NewProviderError(provider, ProviderErrorKindMalformedOutput, err)
	}

	resp := &ExtractResponse{Facts: make(map[string]ExtractedFact, len(targets))}
	for _, target := range targets {
		item, ok := raw[target.Key]
		if !ok || string(item) == "null" {
			resp.Facts[target.Key] = ExtractedFact{Found: false}
			continue
		}

		var parsed extractionItem
		if err := json.Unmarshal(item, &parsed); err != nil || len(parsed.Value) == 0 || string(parsed.Value) == "null" {
			resp.Facts[target.Key] = ExtractedFact{Found: false}
			continue
		}

		value, ok := decodeValue(parsed.Value, target.Shape)
		if !ok {
			resp.Facts[target.Key] = ExtractedFact{Found: false}
			continue
		}

		resp.Facts[target.Key] = ExtractedFact{
			Found:      true,
			Value:      value,
			Confidence: clamp(conv.FromPtrOr(parsed.Confidence, 0.6)),
		}
	}
	return resp, nil
}

// decodeValue maps the JSON value onto a fact value. The shape reflects
// what the JSON actually contained; conformance with the target's
// declared shape is the extraction adapter's call, not ours.
func decodeValue(raw json.RawMessage, hint fact.Shape) (fact.Value, bool) {
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		items := make([]string, 0, len(list))
		for _, item := range list {
			items = append(items, stringify(item))
		}
		return fact.ListValue(items...), true
	}

	var scalar any
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return fact.Value{}, false
	}
	text := stringify(scalar)
	if hint == fact.ShapeText {
		return fact.TextValue(text), true
	}
	return fact.ScalarValue(text), true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func stripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
