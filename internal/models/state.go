// Package models defines conversation state structures for waflow flows.
package models

import (
	"strings"
	"time"
)

// Waiting records that a conversation has asked a question and is paused
// until the matching field is answered. StepIndex is the index of the
// question step that asked.
type Waiting struct {
	Field     string `json:"field"`
	StepIndex int    `json:"step_index"`
}

// Handoff records a terminal handoff outcome.
type Handoff struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Conversation is the persisted execution state of a flow for one
// counterparty. One record exists per (tenant, normalized counterparty).
// Data accumulates monotonically; answered fields are never cleared by
// later steps.
type Conversation struct {
	Tenant        string            `json:"tenant"`
	Counterparty  string            `json:"counterparty"`
	Flow          string            `json:"flow"`
	StepIndex     int               `json:"step_index"`
	Waiting       *Waiting          `json:"waiting,omitempty"`
	Data          map[string]string `json:"data,omitempty"`
	StartedAt     time.Time         `json:"started_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	LastInboundAt time.Time         `json:"last_inbound_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
	Handoff       *Handoff          `json:"handoff,omitempty"`
}

// Completed reports whether the conversation reached a terminal step.
func (c *Conversation) Completed() bool {
	return c.CompletedAt != nil
}

// NormalizeCounterparty reduces a counterparty identifier to its digits so
// that equivalent phone number representations collapse to one record.
// A leading "+" and any formatting characters are stripped.
func NormalizeCounterparty(id string) string {
	id = strings.TrimPrefix(strings.TrimSpace(id), "+")
	var b strings.Builder
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Response represents an incoming message from a counterparty.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}
