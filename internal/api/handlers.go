// Package api provides HTTP handlers for waflow endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sendloop/waflow/internal/flow"
	"github.com/sendloop/waflow/internal/messaging"
	"github.com/sendloop/waflow/internal/models"
)

// flowsHandler handles the /flows collection: GET lists flow names, POST
// creates a flow from an explicit step list or from the built-in preset.
func (s *Server) flowsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		s.listFlowsHandler(w, r)
	case http.MethodPost:
		s.createFlowHandler(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.flowsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) listFlowsHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.flows.List(s.tenant)
	if err != nil {
		slog.Error("Server.listFlowsHandler: failed to list flows", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list flows"))
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(names))
}

func (s *Server) createFlowHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createFlowHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if req.FromPreset {
		created, err := s.flows.EnsurePreset(s.tenant, req.Name)
		if err != nil {
			slog.Error("Server.createFlowHandler: preset materialization failed", "error", err, "name", req.Name)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create flow from preset"))
			return
		}
		if !created {
			writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow already exists", nil))
			return
		}
		slog.Info("Server.createFlowHandler: created flow from preset", "tenant", s.tenant, "name", req.Name)
		writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Flow created from preset", nil))
		return
	}

	location, err := s.flows.Save(s.tenant, models.Flow{Name: req.Name, Steps: req.Steps})
	if err != nil {
		slog.Warn("Server.createFlowHandler: save failed", "error", err, "name", req.Name)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	slog.Info("Server.createFlowHandler: flow saved", "location", location)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Flow saved", map[string]string{"location": location}))
}

// flowHandler routes /flows/{name}, /flows/{name}/steps and /flows/{name}/test.
func (s *Server) flowHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/flows/"), "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow name missing from path"))
		return
	}
	name := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.showFlowHandler(w, r, name)
	case len(parts) == 2 && parts[1] == "steps":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.addStepHandler(w, r, name)
	case len(parts) == 2 && parts[1] == "test":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.testFlowHandler(w, r, name)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown flow endpoint"))
	}
}

func (s *Server) showFlowHandler(w http.ResponseWriter, r *http.Request, name string) {
	f, err := s.flows.Load(s.tenant, name)
	if err != nil {
		slog.Error("Server.showFlowHandler: failed to load flow", "error", err, "name", name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load flow"))
		return
	}
	if f == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(f))
}

func (s *Server) addStepHandler(w http.ResponseWriter, r *http.Request, name string) {
	var step models.Step
	if err := json.NewDecoder(r.Body).Decode(&step); err != nil {
		slog.Warn("Server.addStepHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if err := step.Validate(); err != nil {
		slog.Warn("Server.addStepHandler: invalid step", "error", err, "name", name)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	f, err := s.flows.AppendStep(s.tenant, name, step)
	if err != nil {
		slog.Error("Server.addStepHandler: append failed", "error", err, "name", name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to append step"))
		return
	}
	slog.Info("Server.addStepHandler: step appended", "tenant", s.tenant, "name", name, "version", f.Version)
	writeJSONResponse(w, http.StatusOK, models.Success(f))
}

// testFlowHandler runs a synthetic inbound message through the execution
// engine and returns the resulting action, message, and state. Nothing is
// sent through the messaging provider.
func (s *Server) testFlowHandler(w http.ResponseWriter, r *http.Request, name string) {
	var req models.TestFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.testFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result, err := s.engine.HandleInbound(r.Context(), s.tenant, req.From, req.Body, name, time.Now())
	if err != nil {
		if errors.Is(err, flow.ErrFlowNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Flow not found"))
			return
		}
		slog.Error("Server.testFlowHandler: engine invocation failed", "error", err, "name", name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to run flow"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// twilioWebhookHandler delegates inbound Twilio webhooks to the Twilio
// messaging service when one is configured.
func (s *Server) twilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	twilioSvc, ok := s.msgService.(*messaging.TwilioService)
	if !ok {
		slog.Warn("Server.twilioWebhookHandler: Twilio backend not configured")
		writeJSONResponse(w, http.StatusNotFound, models.Error("Twilio webhook not enabled"))
		return
	}
	twilioSvc.WebhookHandler(w, r)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("waflow is healthy", nil))
}
