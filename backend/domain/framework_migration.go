package domain

import (
	"strconv"

	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/flow"
	"github.com/intentlabs/transformd/backend/phase"
)

// positiveNumber accepts scalar facts that parse as a number greater than
// zero, e.g. team sizes.
func positiveNumber(f fact.Fact) bool {
	n, err := strconv.ParseFloat(f.Value.Scalar, 64)
	return err == nil && n > 0
}

// FrameworkMigration covers framework-to-framework transformations such
// as React to Vue or Django to FastAPI.
func FrameworkMigration() *Domain {
	return &Domain{
		Name:        "framework_migration",
		Description: "Framework-to-framework transformations (React to Vue, Django to FastAPI, ...)",
		Keywords: []string{
			"migrate", "migration", "framework", "react", "vue", "angular",
			"svelte", "django", "fastapi", "express", "nestjs", "spring",
			"switch", "convert",
		},
		Requirements: map[phase.Phase][]flow.Requirement{
			phase.Discover: {
				{
					Key:         "discover.business_challenge",
					Description: "The specific business challenge driving the transformation; used to prioritize solutions and measure success",
					Shape:       fact.ShapeText,
					Template:    "What specific business challenges are you trying to solve with this transformation?",
				},
				{
					Key:         "discover.current_stack",
					Description: "The current system: technologies, frameworks and architecture in use",
					Shape:       fact.ShapeText,
					Template:    "Can you describe your current system? What technologies, frameworks, and architecture are you using?",
				},
				{
					Key:         "discover.target_technology",
					Description: "The framework or technology the user wants to move to",
					Shape:       fact.ShapeScalar,
					Template:    "Which framework or technology are you planning to move to?",
				},
				{
					Key:         "discover.team_size",
					Description: "Number of developers on the team; affects timeline, coordination and training",
					Shape:       fact.ShapeScalar,
					Template:    "How many developers are on your team?",
					Predicate:   positiveNumber,
				},
				{
					Key:         "discover.pain_points",
					Description: "The biggest pain points with the current system; quantifies the cost of inaction",
					Shape:       fact.ShapeList,
					Template:    "What are the biggest pain points with your current system?",
				},
				{
					Key:         "discover.success_metrics",
					Description: "The metrics that will measure transformation success for the business",
					Shape:       fact.ShapeList,
					Template:    "How will you measure success for this transformation? What metrics matter most to your business?",
				},
			},
			phase.Assess: {
				{
					Key:         "assess.system_complexity",
					Description: "Complexity of the current system on a 1-10 scale; affects timeline, risk and required expertise",
					Shape:       fact.ShapeScalar,
					Template:    "On a scale of 1-10, how would you rate the complexity of your current system?",
					Predicate:   positiveNumber,
				},
				{
					Key:         "assess.technical_debt",
					Description: "Amount of technical debt in the current system (minimal, moderate, significant, overwhelming)",
					Shape:       fact.ShapeScalar,
					Template:    "How much technical debt does your current system have?",
				},
				{
					Key:         "assess.maintenance_effort",
					Description: "Share of development time spent on maintenance versus new features",
					Shape:       fact.ShapeScalar,
					Template:    "What percentage of your development time is spent on maintenance vs. new features?",
				},
				{
					Key:         "assess.skill_gaps",
					Description: "Team experience with the target technology and any training needed",
					Shape:       fact.ShapeText,
					Template:    "Does your team have experience with the target technologies, or will training be needed?",
				},
			},
			phase.Justify: {
				{
					Key:         "justify.annual_revenue",
					Description: "Approximate annual revenue range; scales the business impact of productivity gains",
					Shape:       fact.ShapeScalar,
					Template:    "What's your approximate annual revenue? This helps calculate business impact.",
				},
				{
					Key:         "justify.developer_costs",
					Description: "Average cost per developer; used for productivity savings and training cost estimates",
					Shape:       fact.ShapeScalar,
					Template:    "What's the approximate average salary or cost per developer on your team?",
				},
				{
					Key:         "justify.risk_tolerance",
					Description: "Organizational risk tolerance for this transformation, from very conservative to very aggressive",
					Shape:       fact.ShapeScalar,
					Template:    "What's your organization's risk tolerance for this transformation?",
				},
				{
					Key:         "justify.strategic_importance",
					Description: "Strategic importance of the transformation to business goals on a 1-10 scale",
					Shape:       fact.ShapeScalar,
					Template:    "How strategically important is this transformation to your business goals, on a scale of 1-10?",
					Predicate:   positiveNumber,
				},
			},
			phase.Plan: {
				{
					Key:         "plan.preferred_approach",
					Description: "Preferred delivery approach: phased migration, complete rewrite, or hybrid",
					Shape:       fact.ShapeScalar,
					Template:    "Do you prefer a phased migration approach or a complete rewrite?",
				},
				{
					Key:         "plan.downtime_tolerance",
					Description: "How much downtime the business can tolerate during the transformation",
					Shape:       fact.ShapeScalar,
					Template:    "How much downtime can your business tolerate during the transformation?",
				},
				{
					Key:         "plan.resource_allocation",
					Description: "Share of the team that can be dedicated to the transformation",
					Shape:       fact.ShapeScalar,
					Template:    "What percentage of your team can be dedicated to this transformation?",
				},
			},
		},
	}
}
