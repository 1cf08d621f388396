// Package models defines the core data structures for waflow.
//
// It includes flow scripts, their steps, and the API response envelope
// shared across modules.
package models

import (
	"errors"
	"time"
)

// StepType defines the behavior of a single flow step.
type StepType string

const (
	// StepTypeReply emits rendered text and advances to the next step.
	StepTypeReply StepType = "reply"
	// StepTypeQuestion emits rendered text and waits for the answer field.
	StepTypeQuestion StepType = "question"
	// StepTypeCondition branches on an expression without emitting output.
	StepTypeCondition StepType = "condition"
	// StepTypeHandoff ends the conversation and flags it for a human operator.
	StepTypeHandoff StepType = "handoff"
	// StepTypeEnd ends the conversation.
	StepTypeEnd StepType = "end"
)

// Validation error variables for better error handling and testability
var (
	ErrEmptyFlowName      = errors.New("flow name cannot be empty")
	ErrEmptyTenant        = errors.New("tenant cannot be empty")
	ErrInvalidStepType    = errors.New("invalid step type")
	ErrEmptyReplyText     = errors.New("text is required for reply steps")
	ErrEmptyQuestionField = errors.New("field is required for question steps")
	ErrEmptyQuestionText  = errors.New("text is required for question steps")
	ErrEmptyCondition     = errors.New("if expression is required for condition steps")
	ErrEmptyHandoffReason = errors.New("reason is required for handoff steps")
)

// IsValidStepType checks if the given step type is supported.
func IsValidStepType(st StepType) bool {
	switch st {
	case StepTypeReply, StepTypeQuestion, StepTypeCondition, StepTypeHandoff, StepTypeEnd:
		return true
	default:
		return false
	}
}

// Step is one unit of flow behavior. Steps are addressed by their integer
// index within the flow; the id is informational only. Which optional
// fields are meaningful depends on Type, so steps should be created through
// the NewXxxStep constructors and checked with Validate.
type Step struct {
	ID            string   `json:"id,omitempty"`
	Type          StepType `json:"type"`
	Text          string   `json:"text,omitempty"`
	Field         string   `json:"field,omitempty"`
	If            string   `json:"if,omitempty"`
	ThenStepIndex *int     `json:"then_step_index,omitempty"`
	ElseStepIndex *int     `json:"else_step_index,omitempty"`
	Reason        string   `json:"reason,omitempty"`
}

// NewReplyStep creates a reply step that sends text and moves on.
func NewReplyStep(text string) Step {
	return Step{Type: StepTypeReply, Text: text}
}

// NewQuestionStep creates a question step that asks text and waits for field.
func NewQuestionStep(field, text string) Step {
	return Step{Type: StepTypeQuestion, Field: field, Text: text}
}

// NewConditionStep creates a condition step branching on the given expression.
func NewConditionStep(ifExpr string, thenIndex, elseIndex int) Step {
	return Step{Type: StepTypeCondition, If: ifExpr, ThenStepIndex: &thenIndex, ElseStepIndex: &elseIndex}
}

// NewHandoffStep creates a terminal handoff step with an optional message.
func NewHandoffStep(reason, text string) Step {
	return Step{Type: StepTypeHandoff, Reason: reason, Text: text}
}

// NewEndStep creates a terminal end step with an optional message.
func NewEndStep(text string) Step {
	return Step{Type: StepTypeEnd, Text: text}
}

// Validate checks that the step carries the fields its type requires.
func (s *Step) Validate() error {
	switch s.Type {
	case StepTypeReply:
		if s.Text == "" {
			return ErrEmptyReplyText
		}
	case StepTypeQuestion:
		if s.Field == "" {
			return ErrEmptyQuestionField
		}
		if s.Text == "" {
			return ErrEmptyQuestionText
		}
	case StepTypeCondition:
		if s.If == "" {
			return ErrEmptyCondition
		}
	case StepTypeHandoff:
		if s.Reason == "" {
			return ErrEmptyHandoffReason
		}
	case StepTypeEnd:
		// text is optional
	default:
		return ErrInvalidStepType
	}
	return nil
}

// Flow is a named, versioned script of ordered steps, scoped to a tenant.
// Identity is the tenant-scoped name. Save operations increment Version
// and refresh UpdatedAt.
type Flow struct {
	Tenant    string     `json:"tenant"`
	Name      string     `json:"name"`
	Version   int        `json:"version"`
	Steps     []Step     `json:"steps"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Validate performs structural validation on a Flow and all its steps.
func (f *Flow) Validate() error {
	if f.Tenant == "" {
		return ErrEmptyTenant
	}
	if f.Name == "" {
		return ErrEmptyFlowName
	}
	for i := range f.Steps {
		if err := f.Steps[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
