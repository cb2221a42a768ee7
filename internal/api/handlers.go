package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Brent1981/AIProject/internal/homeassistant"
)

const maxBodyBytes = 1 << 20

// PromptRequest is the body of POST /api/prompt.
type PromptRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// PromptResponse carries the assistant's reply.
type PromptResponse struct {
	Response string `json:"response"`
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Request must be JSON")
		return
	}
	if req.Prompt == "" {
		s.errorResponse(w, http.StatusBadRequest, "Missing 'prompt' in request body")
		return
	}

	reply := s.prompter.Process(r.Context(), req.Prompt, req.Model)
	s.respond(w, PromptResponse{Response: reply})
}

// RememberRequest is the body of POST /api/memory.
type RememberRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	if s.memory == nil {
		s.respond(w, PromptResponse{Response: "Memory is not available."})
		return
	}
	var req RememberRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Request must be JSON")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.errorResponse(w, http.StatusBadRequest, "Missing 'text' in request body")
		return
	}
	s.respond(w, PromptResponse{Response: s.memory.Remember(r.Context(), req.Text)})
}

// ConversationResponse is the body of GET /api/conversation.
type ConversationResponse struct {
	History    any `json:"history"`
	LastAction any `json:"last_action,omitempty"`
}

func (s *Server) handleConversation(w http.ResponseWriter, _ *http.Request) {
	if s.session == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "conversation state not available")
		return
	}
	resp := ConversationResponse{History: s.session.History()}
	if last := s.session.LastAction(); !last.At.IsZero() {
		resp.LastAction = last
	}
	s.respond(w, resp)
}

// HistoryResponse is the body of GET /api/history/{entity_id}.
type HistoryResponse struct {
	EntityID string `json:"entity_id"`
	Hours    int    `json:"hours"`
	History  string `json:"history"`
}

func (s *Server) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	if s.ha == nil || !s.ha.Configured() {
		s.respond(w, PromptResponse{Response: homeassistant.NotConfiguredText})
		return
	}
	entityID := r.PathValue("entity_id")
	if _, _, ok := homeassistant.SplitEntityID(entityID); !ok {
		s.errorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid entity_id '%s'", entityID))
		return
	}
	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		n, err := strconv.Atoi(h)
		if err != nil || n <= 0 || n > 24*30 {
			s.errorResponse(w, http.StatusBadRequest, "hours must be between 1 and 720")
			return
		}
		hours = n
	}

	ctx := r.Context()
	events, err := s.ha.GetHistory(ctx, entityID, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		s.logger.Warn("history fetch failed", "entity_id", entityID, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "Could not fetch history")
		return
	}

	// The current state supplies the device class; its absence only
	// makes the phrasing more generic.
	var current *homeassistant.State
	if states, err := s.ha.GetStates(ctx); err == nil {
		current = homeassistant.FindState(states, entityID)
	}

	s.respond(w, HistoryResponse{
		EntityID: entityID,
		Hours:    hours,
		History:  homeassistant.PrettifyHistory(entityID, events, current, s.ha.TimeZone(ctx)),
	})
}

// TemperatureResponse is the body of GET /api/temperature.
type TemperatureResponse struct {
	Average float64 `json:"average"`
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	if s.ha == nil || !s.ha.Configured() {
		s.respond(w, PromptResponse{Response: homeassistant.NotConfiguredText})
		return
	}
	states, err := s.ha.GetStates(r.Context())
	if err != nil {
		s.logger.Warn("state fetch failed", "error", err)
		s.errorResponse(w, http.StatusBadGateway, "Could not get device list")
		return
	}
	avg, ok := homeassistant.AverageTemperature(states)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "No temperature sensors found")
		return
	}
	s.respond(w, TemperatureResponse{Average: avg})
}

// ProcessFileRequest is the body of POST /api/files/process.
type ProcessFileRequest struct {
	FilePath string `json:"file_path"`
}

func (s *Server) handleProcessFile(w http.ResponseWriter, r *http.Request) {
	if s.files == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "File sorter is not enabled")
		return
	}
	var req ProcessFileRequest
	if err := decodeBody(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Request must be JSON")
		return
	}
	if req.FilePath == "" {
		s.errorResponse(w, http.StatusBadRequest, "Missing 'file_path' in request body")
		return
	}

	res, err := s.files.Process(r.Context(), req.FilePath)
	if err != nil {
		s.logger.Warn("file processing failed", "path", req.FilePath, "error", err)
		s.errorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.respond(w, res)
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
