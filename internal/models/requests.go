// Package models defines API request types for waflow.
package models

import "errors"

// Request validation error variables
var (
	ErrEmptyTestBody = errors.New("body cannot be empty")
	ErrEmptyTestFrom = errors.New("from cannot be empty")
)

// CreateFlowRequest is the body of POST /flows. When FromPreset is set the
// flow is materialized from the built-in preset and Steps is ignored.
type CreateFlowRequest struct {
	Name       string `json:"name"`
	FromPreset bool   `json:"from_preset,omitempty"`
	Steps      []Step `json:"steps,omitempty"`
}

// Validate checks the create request for required fields.
func (r *CreateFlowRequest) Validate() error {
	if r.Name == "" {
		return ErrEmptyFlowName
	}
	return nil
}

// TestFlowRequest is the body of POST /flows/{name}/test: a synthetic
// inbound message run through the execution engine without touching the
// messaging provider.
type TestFlowRequest struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// Validate checks the test request for required fields.
func (r *TestFlowRequest) Validate() error {
	if r.From == "" {
		return ErrEmptyTestFrom
	}
	return nil
}
