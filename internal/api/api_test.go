package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sendloop/waflow/internal/flow"
	"github.com/sendloop/waflow/internal/messaging"
	"github.com/sendloop/waflow/internal/models"
	"github.com/sendloop/waflow/internal/store"
	"github.com/sendloop/waflow/internal/twiliowhatsapp"
	"github.com/sendloop/waflow/internal/whatsapp"
)

func newTestServer(t *testing.T, msgService messaging.Service) *http.ServeMux {
	t.Helper()
	st := store.NewInMemoryStore()
	srv := NewServer(flow.NewService(st), flow.NewEngine(st), msgService, WithTenant("acme"))
	return srv.routes()
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body interface{}) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	var resp models.APIResponse
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestServer(t, messaging.NewWhatsAppService(whatsapp.NewMockClient()))

	w, resp := doJSON(t, mux, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || resp.Status != string(models.APIStatusOK) {
		t.Errorf("health = (%d, %+v)", w.Code, resp)
	}
}

func TestCreateFlowFromPreset(t *testing.T) {
	mux := newTestServer(t, messaging.NewWhatsAppService(whatsapp.NewMockClient()))

	w, _ := doJSON(t, mux, http.MethodPost, "/flows", models.CreateFlowRequest{Name: "lead-qualification", FromPreset: true})
	if w.Code != http.StatusCreated {
		t.Fatalf("first preset create status = %d, want %d", w.Code, http.StatusCreated)
	}
	w, _ = doJSON(t, mux, http.MethodPost, "/flows", models.CreateFlowRequest{Name: "lead-qualification", FromPreset: true})
	if w.Code != http.StatusOK {
		t.Errorf("repeat preset create status = %d, want %d", w.Code, http.StatusOK)
	}

	w, resp := doJSON(t, mux, http.MethodGet, "/flows", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	names, ok := resp.Result.([]interface{})
	if !ok || len(names) != 1 || names[0] != "lead-qualification" {
		t.Errorf("list result = %+v", resp.Result)
	}
}

func TestCreateFlowExplicitSteps(t *testing.T) {
	mux := newTestServer(t, messaging.NewWhatsAppService(whatsapp.NewMockClient()))

	req := models.CreateFlowRequest{
		Name:  "welcome",
		Steps: []models.Step{models.NewReplyStep("hello"), models.NewEndStep("")},
	}
	w, resp := doJSON(t, mux, http.MethodPost, "/flows", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d (%+v)", w.Code, resp)
	}

	w, resp = doJSON(t, mux, http.MethodGet, "/flows/welcome", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("show status = %d", w.Code)
	}
	raw, _ := json.Marshal(resp.Result)
	var f models.Flow
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode flow: %v", err)
	}
	if f.Version != 1 || len(f.Steps) != 2 {
		t.Errorf("shown flow = %+v", f)
	}
}

func TestCreateFlowRejectsBadRequests(t *testing.T) {
	mux := newTestServer(t, messaging.NewWhatsAppService(whatsapp.NewMockClient()))

	w, _ := doJSON(t, mux, http.MethodPost, "/flows", models.CreateFlowRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("nameless create status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	bad := models.CreateFlowRequest{Name: "broken", Steps: []models.Step{{Type: "bogus"}}}
	w, _ = doJSON(t, mux, http.MethodPost, "/flows", bad)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid step create status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestShowFlowNotFound(t *testing.T) {
	mux := newTestServer(t, messaging.NewWhatsAppService(whatsapp.NewMockClient()))

	w, _ := doJSON(t, mux, http.MethodGet, "/flows/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing flow status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAddStepEndpoint(t *testing.T) {
	mux := newTestServer(t, messaging.NewWhatsAppService(whatsapp.NewMockClient()))

	// Appending to an unknown flow materializes the preset first.
	w, resp := doJSON(t, mux, http.MethodPost, "/flows/lead-qualification/steps", models.NewReplyStep("extra"))
	if w.Code != http.StatusOK {
		t.Fatalf("append status = %d (%+v)", w.Code, resp)
	}
	raw, _ := json.Marshal(resp.Result)
	var f models.Flow
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode flow: %v", err)
	}
	if len(f.Steps) != 10 || f.Version != 2 {
		t.Errorf("flow after append = %d steps version %d", len(f.Steps), f.Version)
	}

	w, _ = doJSON(t, mux, http.MethodPost, "/flows/lead-qualification/steps", models.Step{Type: "bogus"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus step status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTestEndpointRunsEngine(t *testing.T) {
	mux := newTestServer(t, messaging.NewWhatsAppService(whatsapp.NewMockClient()))

	doJSON(t, mux, http.MethodPost, "/flows", models.CreateFlowRequest{Name: "lead-qualification", FromPreset: true})

	w, resp := doJSON(t, mux, http.MethodPost, "/flows/lead-qualification/test", models.TestFlowRequest{From: "+919876543210", Body: "hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("test status = %d (%+v)", w.Code, resp)
	}
	raw, _ := json.Marshal(resp.Result)
	var result models.EngineResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("decode engine result: %v", err)
	}
	if result.Action != models.EngineActionReply || result.Message == nil {
		t.Errorf("first test invocation = %+v", result)
	}

	w, _ = doJSON(t, mux, http.MethodPost, "/flows/missing/test", models.TestFlowRequest{From: "+919876543210", Body: "hi"})
	if w.Code != http.StatusNotFound {
		t.Errorf("test on missing flow status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w, _ = doJSON(t, mux, http.MethodPost, "/flows/lead-qualification/test", models.TestFlowRequest{Body: "hi"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("test without from status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTwilioWebhookRouting(t *testing.T) {
	// Without a Twilio backend the webhook endpoint is disabled.
	mux := newTestServer(t, messaging.NewWhatsAppService(whatsapp.NewMockClient()))
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader("From=x&Body=y"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("webhook without Twilio backend = %d, want %d", w.Code, http.StatusNotFound)
	}

	// With a Twilio backend the webhook is delegated to the service.
	twilioSvc := messaging.NewTwilioService(twiliowhatsapp.NewMockClient())
	mux = newTestServer(t, twilioSvc)
	form := url.Values{"From": {"whatsapp:+919876543210"}, "Body": {"hi"}}
	req = httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("webhook with Twilio backend = %d, want %d", w.Code, http.StatusOK)
	}
	select {
	case resp := <-twilioSvc.Responses():
		if resp.Body != "hi" {
			t.Errorf("webhook response = %+v", resp)
		}
	default:
		t.Error("webhook did not emit a response")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newTestServer(t, messaging.NewWhatsAppService(whatsapp.NewMockClient()))

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/flows"},
		{http.MethodPost, "/flows/x"},
		{http.MethodGet, "/flows/x/steps"},
		{http.MethodGet, "/flows/x/test"},
		{http.MethodPost, "/health"},
		{http.MethodGet, "/webhook/twilio"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, w.Code, http.StatusMethodNotAllowed)
		}
	}
}
