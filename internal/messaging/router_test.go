package messaging

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sendloop/waflow/internal/flow"
	"github.com/sendloop/waflow/internal/models"
	"github.com/sendloop/waflow/internal/store"
)

// stubService is an in-memory Service for router tests.
type stubService struct {
	mu        sync.Mutex
	sent      []string
	responses chan models.Response
}

func newStubService() *stubService {
	return &stubService{responses: make(chan models.Response, 10)}
}

func (s *stubService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizeRecipient(recipient)
}

func (s *stubService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, body)
	return nil
}

func (s *stubService) Start(ctx context.Context) error { return nil }
func (s *stubService) Stop() error                     { return nil }

func (s *stubService) Responses() <-chan models.Response { return s.responses }

func (s *stubService) sentMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestInboundRouterRunsFlow(t *testing.T) {
	st := store.NewInMemoryStore()
	svc := flow.NewService(st)
	if _, err := svc.EnsurePreset("acme", flow.PresetFlowName); err != nil {
		t.Fatalf("EnsurePreset: %v", err)
	}

	stub := newStubService()
	router := NewInboundRouter(flow.NewEngine(st), stub, "acme", flow.PresetFlowName)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router.Start(ctx)

	stub.responses <- models.Response{From: "+919876543210", Body: "hi", Time: time.Now().Unix()}
	waitFor(t, func() bool { return len(stub.sentMessages()) == 1 })

	stub.responses <- models.Response{From: "+919876543210", Body: "ok", Time: time.Now().Unix()}
	waitFor(t, func() bool { return len(stub.sentMessages()) == 2 })

	sent := stub.sentMessages()
	if !strings.Contains(sent[0], "quick questions") {
		t.Errorf("first outbound = %q, want the opening reply", sent[0])
	}
	if sent[1] != "What is your name?" {
		t.Errorf("second outbound = %q, want the name question", sent[1])
	}

	c, err := st.GetConversation("acme", "919876543210")
	if err != nil || c == nil {
		t.Fatalf("GetConversation: (%v, %v)", c, err)
	}
	if c.Waiting == nil || c.Waiting.Field != "name" {
		t.Errorf("conversation waiting = %+v, want field name", c.Waiting)
	}
}

func TestInboundRouterSurvivesEngineErrors(t *testing.T) {
	st := store.NewInMemoryStore()
	stub := newStubService()
	// No flow stored: every inbound fails with flow-not-found.
	router := NewInboundRouter(flow.NewEngine(st), stub, "acme", "missing")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router.Start(ctx)

	stub.responses <- models.Response{From: "+919876543210", Body: "hi", Time: time.Now().Unix()}
	stub.responses <- models.Response{From: "+919876543210", Body: "hello", Time: time.Now().Unix()}

	// Drain: the router must keep consuming rather than exit on error.
	waitFor(t, func() bool { return len(stub.responses) == 0 })
	if sent := stub.sentMessages(); len(sent) != 0 {
		t.Errorf("no messages should be sent for a missing flow, got %v", sent)
	}
}
