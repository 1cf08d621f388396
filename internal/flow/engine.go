package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sendloop/waflow/internal/expr"
	"github.com/sendloop/waflow/internal/models"
	"github.com/sendloop/waflow/internal/store"
)

// MaxConditionHops bounds the number of condition steps a single invocation
// may traverse. A flow whose branch targets form a cycle would otherwise
// spin forever; exceeding the ceiling aborts with EngineActionError.
const MaxConditionHops = 25

// LastInputField is the synthetic data field holding the raw inbound text,
// visible to condition expressions for the duration of one invocation.
const LastInputField = "_last"

// ErrFlowNotFound indicates the named flow does not exist for the tenant.
var ErrFlowNotFound = errors.New("flow not found")

// Engine executes flow scripts against conversation state. One inbound
// message produces one invocation, which yields at most one outbound
// message. Invocations are serialized per tenant so that concurrent inbound
// delivery for different counterparties under the same tenant cannot lose
// writes.
type Engine struct {
	store store.Store

	mu      sync.Mutex
	tenants map[string]*sync.Mutex
}

// NewEngine creates an Engine backed by the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st, tenants: make(map[string]*sync.Mutex)}
}

// tenantLock returns the mutex serializing invocations for a tenant,
// creating it on first use.
func (e *Engine) tenantLock(tenant string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.tenants[tenant]
	if !ok {
		l = &sync.Mutex{}
		e.tenants[tenant] = l
	}
	return l
}

// HandleInbound processes one inbound message for a counterparty against the
// named flow. It loads or creates the conversation, applies pending-answer
// capture, runs the step loop until a step emits output or the script ends,
// persists the updated state, and returns the action taken together with at
// most one outbound message.
//
// A missing flow is reported as an error wrapping ErrFlowNotFound with no
// state mutation. Storage failures propagate to the caller.
func (e *Engine) HandleInbound(ctx context.Context, tenant, counterparty, inboundText, flowName string, now time.Time) (*models.EngineResult, error) {
	lock := e.tenantLock(tenant)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := e.store.GetFlow(tenant, flowName)
	if err != nil {
		return nil, err
	}
	if f == nil {
		slog.Warn("Engine.HandleInbound flow not found", "tenant", tenant, "flow", flowName)
		return nil, fmt.Errorf("%w: %s/%s", ErrFlowNotFound, tenant, flowName)
	}

	conv, err := e.store.GetConversation(tenant, counterparty)
	if err != nil {
		return nil, err
	}
	// Reuse existing state only while it belongs to this flow and has not
	// reached a terminal step; otherwise start fresh at step 0.
	if conv == nil || conv.Flow != flowName || conv.Completed() {
		conv = &models.Conversation{
			Tenant:       tenant,
			Counterparty: models.NormalizeCounterparty(counterparty),
			Flow:         flowName,
			StepIndex:    0,
			Data:         make(map[string]string),
			StartedAt:    now,
		}
		slog.Debug("Engine.HandleInbound starting fresh conversation", "tenant", tenant, "counterparty", conv.Counterparty, "flow", flowName)
	}
	if conv.Data == nil {
		conv.Data = make(map[string]string)
	}
	conv.UpdatedAt = now
	conv.LastInboundAt = now

	// Pending-answer capture: a non-empty inbound message answers the field
	// the conversation is waiting on and moves the cursor past the question.
	if conv.Waiting != nil && strings.TrimSpace(inboundText) != "" {
		conv.Data[conv.Waiting.Field] = inboundText
		if next := conv.Waiting.StepIndex + 1; conv.StepIndex < next {
			conv.StepIndex = next
		}
		slog.Debug("Engine.HandleInbound captured answer", "tenant", tenant, "field", conv.Waiting.Field, "step", conv.StepIndex)
		conv.Waiting = nil
	}

	hops := 0
	for conv.StepIndex >= 0 && conv.StepIndex < len(f.Steps) {
		step := f.Steps[conv.StepIndex]
		if err := step.Validate(); err != nil {
			slog.Warn("Engine.HandleInbound skipping malformed step", "tenant", tenant, "flow", flowName, "step", conv.StepIndex, "error", err)
			conv.StepIndex++
			continue
		}

		switch step.Type {
		case models.StepTypeCondition:
			hops++
			if hops > MaxConditionHops {
				slog.Error("Engine.HandleInbound condition hop ceiling exceeded", "tenant", tenant, "flow", flowName, "step", conv.StepIndex, "hops", hops)
				if err := e.store.SaveConversation(*conv); err != nil {
					return nil, err
				}
				return &models.EngineResult{Action: models.EngineActionError, State: conv}, nil
			}
			target := step.ElseStepIndex
			if e.evalCondition(step.If, conv.Data, inboundText) {
				target = step.ThenStepIndex
			}
			if target != nil {
				conv.StepIndex = *target
			} else {
				conv.StepIndex++
			}
			if err := e.store.SaveConversation(*conv); err != nil {
				return nil, err
			}
			// Condition steps are invisible to the counterparty.

		case models.StepTypeQuestion:
			conv.Waiting = &models.Waiting{Field: step.Field, StepIndex: conv.StepIndex}
			if err := e.store.SaveConversation(*conv); err != nil {
				return nil, err
			}
			return &models.EngineResult{
				Action:  models.EngineActionAsk,
				Message: &models.OutboundMessage{Text: Render(step.Text, conv.Data)},
				State:   conv,
			}, nil

		case models.StepTypeReply:
			conv.StepIndex++
			if err := e.store.SaveConversation(*conv); err != nil {
				return nil, err
			}
			return &models.EngineResult{
				Action:  models.EngineActionReply,
				Message: &models.OutboundMessage{Text: Render(step.Text, conv.Data)},
				State:   conv,
			}, nil

		case models.StepTypeHandoff:
			conv.StepIndex = len(f.Steps)
			conv.CompletedAt = &now
			conv.Handoff = &models.Handoff{Reason: step.Reason, At: now}
			if err := e.store.SaveConversation(*conv); err != nil {
				return nil, err
			}
			slog.Info("Engine.HandleInbound handing off", "tenant", tenant, "counterparty", conv.Counterparty, "flow", flowName, "reason", step.Reason)
			return &models.EngineResult{
				Action:  models.EngineActionHandoff,
				Message: optionalMessage(step.Text, conv.Data),
				State:   conv,
			}, nil

		case models.StepTypeEnd:
			conv.StepIndex = len(f.Steps)
			conv.CompletedAt = &now
			if err := e.store.SaveConversation(*conv); err != nil {
				return nil, err
			}
			slog.Info("Engine.HandleInbound conversation ended", "tenant", tenant, "counterparty", conv.Counterparty, "flow", flowName)
			return &models.EngineResult{
				Action:  models.EngineActionEnd,
				Message: optionalMessage(step.Text, conv.Data),
				State:   conv,
			}, nil
		}
	}

	// The cursor ran past the last step without hitting a terminal step.
	if err := e.store.SaveConversation(*conv); err != nil {
		return nil, err
	}
	return &models.EngineResult{Action: models.EngineActionNoop, State: conv}, nil
}

// evalCondition evaluates a condition expression against the collected data
// plus the synthetic last-input field. Unparseable expressions evaluate to
// false so a single bad condition degrades the flow instead of failing it.
func (e *Engine) evalCondition(ifExpr string, data map[string]string, inboundText string) bool {
	parsed, err := expr.Parse(ifExpr)
	if err != nil {
		slog.Warn("Engine.evalCondition unparseable expression", "expression", ifExpr, "error", err)
		return false
	}
	scope := make(map[string]string, len(data)+1)
	for k, v := range data {
		scope[k] = v
	}
	scope[LastInputField] = inboundText
	return parsed.Eval(scope)
}

// optionalMessage renders text for terminal steps whose text is optional.
func optionalMessage(text string, data map[string]string) *models.OutboundMessage {
	if text == "" {
		return nil
	}
	return &models.OutboundMessage{Text: Render(text, data)}
}
