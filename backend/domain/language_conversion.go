package domain

import (
	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/flow"
	"github.com/intentlabs/transformd/backend/phase"
)

// LanguageConversion covers whole-language rewrites such as Java to
// Kotlin or Python to Go.
func LanguageConversion() *Domain {
	return &Domain{
		Name:        "language_conversion",
		Description: "Language-to-language conversions (Java to Kotlin, Python to Go, ...)",
		Keywords: []string{
			"language", "rewrite", "port", "java", "kotlin", "python",
			"golang", "typescript", "rust", "c#", "cobol", "legacy",
		},
		Requirements: map[phase.Phase][]flow.Requirement{
			phase.Discover: {
				{
					Key:         "discover.business_challenge",
					Description: "The business challenge motivating the language conversion",
					Shape:       fact.ShapeText,
					Template:    "What business challenges are you trying to solve by converting languages?",
				},
				{
					Key:         "discover.source_language",
					Description: "The language the codebase is written in today",
					Shape:       fact.ShapeScalar,
					Template:    "What language is your codebase written in today?",
				},
				{
					Key:         "discover.target_language",
					Description: "The language the codebase should be converted to",
					Shape:       fact.ShapeScalar,
					Template:    "Which language do you want to convert to?",
				},
				{
					Key:         "discover.codebase_size",
					Description: "Rough size of the codebase (lines of code, modules, services)",
					Shape:       fact.ShapeScalar,
					Template:    "Roughly how large is the codebase you want to convert?",
				},
				{
					Key:         "discover.pain_points",
					Description: "The biggest pain points with the current language and toolchain",
					Shape:       fact.ShapeList,
					Template:    "What are the biggest pain points with your current language and toolchain?",
				},
			},
			phase.Assess: {
				{
					Key:         "assess.test_coverage",
					Description: "How well the current behavior is pinned down by tests; conversions without tests carry more risk",
					Shape:       fact.ShapeScalar,
					Template:    "How would you describe your current test coverage?",
				},
				{
					Key:         "assess.runtime_dependencies",
					Description: "Runtime dependencies and integrations that must keep working after conversion",
					Shape:       fact.ShapeList,
					Template:    "What runtime dependencies or integrations must keep working after the conversion?",
				},
				{
					Key:         "assess.skill_gaps",
					Description: "Team familiarity with the target language",
					Shape:       fact.ShapeText,
					Template:    "How familiar is your team with the target language?",
				},
			},
			phase.Justify: {
				{
					Key:         "justify.maintenance_cost",
					Description: "Current cost of maintaining the codebase in its present language",
					Shape:       fact.ShapeScalar,
					Template:    "What does maintaining the current codebase cost you today?",
				},
				{
					Key:         "justify.hiring_difficulty",
					Description: "How hard it is to hire for the current language; a common conversion driver",
					Shape:       fact.ShapeScalar,
					Template:    "How difficult is it to hire developers for your current language?",
				},
				{
					Key:         "justify.risk_tolerance",
					Description: "Organizational risk tolerance for a conversion of this size",
					Shape:       fact.ShapeScalar,
					Template:    "What's your organization's risk tolerance for this conversion?",
				},
			},
			phase.Plan: {
				{
					Key:         "plan.conversion_strategy",
					Description: "Preferred strategy: incremental strangler conversion, module-by-module, or big-bang rewrite",
					Shape:       fact.ShapeScalar,
					Template:    "Do you prefer an incremental conversion or a full rewrite?",
				},
				{
					Key:         "plan.freeze_tolerance",
					Description: "Whether feature development can pause during conversion and for how long",
					Shape:       fact.ShapeScalar,
					Template:    "Can feature development pause during the conversion, and for how long?",
				},
			},
		},
	}
}
