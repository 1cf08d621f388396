// Package models defines engine invocation results for waflow.
package models

// EngineAction describes the outcome of one engine invocation.
type EngineAction string

const (
	// EngineActionAsk indicates a question was emitted and the conversation is waiting.
	EngineActionAsk EngineAction = "ask"
	// EngineActionReply indicates a statement was emitted and the conversation advanced.
	EngineActionReply EngineAction = "reply"
	// EngineActionHandoff indicates the conversation completed with a human handoff.
	EngineActionHandoff EngineAction = "handoff"
	// EngineActionEnd indicates the conversation completed normally.
	EngineActionEnd EngineAction = "end"
	// EngineActionNoop indicates the script ran out of steps without a terminal step.
	EngineActionNoop EngineAction = "noop"
	// EngineActionError indicates the engine aborted, e.g. a condition cycle was detected.
	EngineActionError EngineAction = "error"
)

// OutboundMessage is the single message an engine invocation may produce.
type OutboundMessage struct {
	Text string `json:"text"`
}

// EngineResult is the outcome of processing one inbound message: the action
// taken, at most one outbound message, and the persisted conversation state.
type EngineResult struct {
	Action  EngineAction     `json:"action"`
	Message *OutboundMessage `json:"message,omitempty"`
	State   *Conversation    `json:"state,omitempty"`
}
