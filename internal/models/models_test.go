package models

import "testing"

func TestStepValidate(t *testing.T) {
	valid := []Step{
		NewReplyStep("hello"),
		NewQuestionStep("name", "What is your name?"),
		NewConditionStep("budget >= 10L", 2, 3),
		NewHandoffStep("high_value_lead", ""),
		NewEndStep(""),
	}
	for i, s := range valid {
		if err := s.Validate(); err != nil {
			t.Errorf("step %d (%s): unexpected validation error: %v", i, s.Type, err)
		}
	}

	invalid := []struct {
		step Step
		want error
	}{
		{Step{Type: StepTypeReply}, ErrEmptyReplyText},
		{Step{Type: StepTypeQuestion, Text: "hi"}, ErrEmptyQuestionField},
		{Step{Type: StepTypeQuestion, Field: "name"}, ErrEmptyQuestionText},
		{Step{Type: StepTypeCondition}, ErrEmptyCondition},
		{Step{Type: StepTypeHandoff}, ErrEmptyHandoffReason},
		{Step{Type: "bogus"}, ErrInvalidStepType},
		{Step{}, ErrInvalidStepType},
	}
	for i, tc := range invalid {
		if err := tc.step.Validate(); err != tc.want {
			t.Errorf("case %d: got %v, want %v", i, err, tc.want)
		}
	}
}

func TestFlowValidate(t *testing.T) {
	f := Flow{Tenant: "acme", Name: "welcome", Steps: []Step{NewReplyStep("hi")}}
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.Name = ""
	if err := f.Validate(); err != ErrEmptyFlowName {
		t.Errorf("got %v, want ErrEmptyFlowName", err)
	}

	f.Name = "welcome"
	f.Tenant = ""
	if err := f.Validate(); err != ErrEmptyTenant {
		t.Errorf("got %v, want ErrEmptyTenant", err)
	}

	f.Tenant = "acme"
	f.Steps = append(f.Steps, Step{Type: StepTypeQuestion})
	if err := f.Validate(); err != ErrEmptyQuestionField {
		t.Errorf("got %v, want ErrEmptyQuestionField", err)
	}
}

func TestNormalizeCounterparty(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+911234567890", "911234567890"},
		{"911234567890", "911234567890"},
		{"+91 12345-67890", "911234567890"},
		{"(91) 12345 67890", "911234567890"},
		{"  +911234567890  ", "911234567890"},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := NormalizeCounterparty(tc.in); got != tc.want {
			t.Errorf("NormalizeCounterparty(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConversationCompleted(t *testing.T) {
	var c Conversation
	if c.Completed() {
		t.Error("fresh conversation should not be completed")
	}
	now := c.UpdatedAt
	c.CompletedAt = &now
	if !c.Completed() {
		t.Error("conversation with CompletedAt set should be completed")
	}
}
