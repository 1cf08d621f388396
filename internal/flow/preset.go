package flow

import (
	"time"

	"github.com/sendloop/waflow/internal/models"
)

// PresetFlowName is the name under which EnsurePreset materializes the
// built-in lead qualification script when no explicit name is given.
const PresetFlowName = "lead-qualification"

// BuildPreset returns the built-in lead qualification script. It exercises
// every step type: an opening reply, four questions, a budget condition that
// either hands off immediately or asks one more question, and a closing
// summary. Branch targets are step indices within the returned slice.
func BuildPreset(tenant, name string, now time.Time) models.Flow {
	steps := []models.Step{
		models.NewReplyStep("Hi! I can help you find the right property. Let me ask a few quick questions."),
		models.NewQuestionStep("name", "What is your name?"),
		models.NewQuestionStep("requirement", "Thanks {{name}}! What are you looking for? (e.g. 2BHK flat, office space)"),
		models.NewQuestionStep("location", "Which location do you prefer?"),
		models.NewQuestionStep("budget", "What is your budget? (e.g. 50L, 1.2Cr)"),
		models.NewConditionStep("budget >= 10L", 6, 7),
		models.NewHandoffStep("high_value_lead", "Great! One of our senior agents will reach out to you shortly."),
		models.NewQuestionStep("timeline", "When are you planning to move?"),
		models.NewEndStep("Thanks {{name}}! Noted: {{requirement}} in {{location}}, budget {{budget}}, timeline {{timeline}}. We will get back to you soon."),
	}
	assignStepIDs(steps)
	return models.Flow{
		Tenant:    tenant,
		Name:      name,
		Version:   1,
		Steps:     steps,
		CreatedAt: now,
	}
}
