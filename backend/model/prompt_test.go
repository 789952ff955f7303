package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/phase"
)

var decodeTargets = []TargetKey{
	{Key: "discover.target_technology", Description: "target framework", Shape: fact.ShapeScalar},
	{Key: "discover.pain_points", Description: "pain points", Shape: fact.ShapeList},
	{Key: "discover.business_challenge", Description: "business challenge", Shape: fact.ShapeText},
}

func TestDecodeExtraction(t *testing.T) {
	content := `{
		"discover.target_technology": {"value": "Vue", "confidence": 0.92},
		"discover.pain_points": {"value": ["slow builds", "flaky deploys"], "confidence": 0.8},
		"discover.business_challenge": null
	}`

	resp, err := DecodeExtraction("anthropic", content, decodeTargets)
	if err != nil {
		t.Fatalf("DecodeExtraction: %v", err)
	}

	tech := resp.Facts["discover.target_technology"]
	if !tech.Found || tech.Value.Scalar != "Vue" || tech.Confidence != 0.92 {
		t.Errorf("target_technology = %+v", tech)
	}
	pains := resp.Facts["discover.pain_points"]
	if !pains.Found || len(pains.Value.List) != 2 {
		t.Errorf("pain_points = %+v", pains)
	}
	if resp.Facts["discover.business_challenge"].Found {
		t.Error("explicit null reported as found")
	}
}

func TestDecodeExtractionToleratesFencesAndCommas(t *testing.T) {
	content := "```json\n{\"discover.target_technology\": {\"value\": \"Vue\",},}\n```"

	resp, err := DecodeExtraction("openai", content, decodeTargets[:1])
	if err != nil {
		t.Fatalf("DecodeExtraction: %v", err)
	}
	tech := resp.Facts["discover.target_technology"]
	if !tech.Found || tech.Value.Scalar != "Vue" {
		t.Errorf("target_technology = %+v", tech)
	}
	// Missing confidence falls back to the default.
	if tech.Confidence != 0.6 {
		t.Errorf("confidence = %v, want default 0.6", tech.Confidence)
	}
}

func TestDecodeExtractionNumericAndShapeHints(t *testing.T) {
	content := `{
		"discover.target_technology": {"value": 12, "confidence": 1.7},
		"discover.business_challenge": {"value": "slow releases"},
		"discover.pain_points": {"value": "not a list"}
	}`

	resp, err := DecodeExtraction("deepseek", content, decodeTargets)
	if err != nil {
		t.Fatalf("DecodeExtraction: %v", err)
	}

	tech := resp.Facts["discover.target_technology"]
	if tech.Value.Scalar != "12" {
		t.Errorf("numeric scalar = %+v", tech.Value)
	}
	if tech.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", tech.Confidence)
	}
	if got := resp.Facts["discover.business_challenge"].Value.Shape; got != fact.ShapeText {
		t.Errorf("text-hinted shape = %s", got)
	}
	// A plain string for a list key keeps its actual shape so the
	// adapter can reject the mismatch.
	if got := resp.Facts["discover.pain_points"].Value.Shape; got == fact.ShapeList {
		t.Error("string decoded as a list")
	}
}

func TestDecodeExtractionMalformed(t *testing.T) {
	_, err := DecodeExtraction("anthropic", "Sure! Here are the facts you asked for.", decodeTargets)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Kind != ProviderErrorKindMalformedOutput {
		t.Fatalf("err = %v, want malformed_output", err)
	}
	if retryable, _ := pe.Retryable(); !retryable {
		t.Error("malformed output should be retryable")
	}
}

func TestBuildPromptsCarryContext(t *testing.T) {
	extraction := buildExtractionPrompt(&ExtractRequest{
		Message: "we are on react",
		Phase:   phase.Discover,
		Targets: decodeTargets[:1],
	})
	for _, want := range []string{"discover", "discover.target_technology", "we are on react"} {
		if !strings.Contains(extraction, want) {
			t.Errorf("extraction prompt missing %q", want)
		}
	}

	question := buildQuestionPrompt(&QuestionRequest{
		Target: decodeTargets[1],
		Phase:  phase.Discover,
		History: []Turn{
			{Role: RoleSystem, Text: "What is your stack?"},
			{Role: RoleUser, Text: "React mostly"},
		},
	})
	for _, want := range []string{"pain points", "React mostly"} {
		if !strings.Contains(question, want) {
			t.Errorf("question prompt missing %q", want)
		}
	}
}

func TestProviderErrorRetryable(t *testing.T) {
	cases := []struct {
		kind ProviderErrorKind
		want bool
	}{
		{ProviderErrorKindRateLimitExceeded, true},
		{ProviderErrorKindOverloaded, true},
		{ProviderErrorKindInternal, true},
		{ProviderErrorKindTimeout, true},
		{ProviderErrorKindMalformedOutput, true},
		{ProviderErrorKindInvalidRequest, false},
		{ProviderErrorKindCanceled, false},
		{ProviderErrorKindUnknown, false},
	}
	for _, tc := range cases {
		pe := NewProviderError("test", tc.kind, nil)
		if got, _ := pe.Retryable(); got != tc.want {
			t.Errorf("Retryable(%s) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}
