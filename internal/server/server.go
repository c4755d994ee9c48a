package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"careline/internal/app"
	"careline/internal/usertoken"
	"careline/internal/util"
	"careline/pkg/domain"
)

const (
	maxJSONBody = 1 << 20 // 1MB
	maxCSVBody  = 5 << 20 // 5MB
)

// Limiter gates chat requests per caller.
type Limiter interface {
	Allow(key string) bool
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	TokenVerifier  *usertoken.Verifier
	ChatLimiter    Limiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	tokenVerifier  *usertoken.Verifier
	chatLimiter    Limiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		tokenVerifier:  cfg.TokenVerifier,
		chatLimiter:    cfg.ChatLimiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog("careline", s.trustedProxies,
			util.WithSecurityHeaders(
				util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.Handle("POST /api/ai/chat", s.withUser(s.handleChat))
	s.mux.Handle("POST /api/ai/rag-context", s.withUser(s.handleRAGContext))
	s.mux.Handle("GET /api/ai/conversations", s.withUser(s.handleListConversations))
	s.mux.Handle("GET /api/ai/conversations/{id}/messages", s.withUser(s.handleConversationMessages))

	s.mux.Handle("GET /api/children", s.withUser(s.handleListChildren))
	s.mux.Handle("POST /api/children", s.withUser(s.handleCreateChild))
	s.mux.Handle("GET /api/children/{id}", s.withUser(s.handleGetChild))
	s.mux.Handle("PUT /api/children/{id}", s.withUser(s.handleUpdateChild))
	s.mux.Handle("DELETE /api/children/{id}", s.withUser(s.handleDeleteChild))
	s.mux.Handle("POST /api/children/import", s.withUser(s.handleImportChildren))
	s.mux.Handle("GET /api/children/{id}/assignments", s.withUser(s.handleListAssignments))

	s.mux.Handle("POST /api/sessions", s.withUser(s.handleStartSession))
	s.mux.Handle("GET /api/sessions", s.withUser(s.handleListSessions))
	s.mux.Handle("POST /api/sessions/summary", s.withUser(s.handleSaveSummary))
	s.mux.Handle("GET /api/sessions/summary", s.withUser(s.handleGetSummary))

	s.mux.Handle("POST /api/concerns", s.withUser(s.handleCreateConcern))
	s.mux.Handle("GET /api/concerns", s.withUser(s.handleListConcerns))
	s.mux.Handle("PATCH /api/concerns/{id}", s.withUser(s.handleUpdateConcern))

	s.mux.Handle("POST /api/knowledge", s.withUser(s.handleAddKnowledge))
	s.mux.Handle("GET /api/ai/memories", s.withUser(s.handleListMemories))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

// withUser authenticates the bearer token and resolves the caller before any
// handler logic runs. Auth failures are terminal with no side effects.
func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenVerifier == nil {
			writeError(w, http.StatusInternalServerError, "token verifier not configured")
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		identity, err := s.tokenVerifier.VerifyIdentity(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.app.ResolveUser(identity)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		next(w, r, user)
	})
}

type chatRequest struct {
	Message        string `json:"message"`
	ChildID        string `json:"child_id"`
	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	if s.chatLimiter != nil && !s.chatLimiter.Allow(user.ID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.app.Chat(r.Context(), user, app.ChatRequest{
		Message:        req.Message,
		ChildID:        req.ChildID,
		SessionID:      req.SessionID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		if errors.Is(err, app.ErrUpstream) {
			util.LoggerFromContext(r.Context()).Error("chat upstream failure", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to process message")
			return
		}
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type ragContextRequest struct {
	ChildID        string `json:"child_id"`
	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId"`
	Query          string `json:"query"`
}

// ragContextResponse is the wire shape of the rag-context endpoint. The chunk
// list goes out as relevant_knowledge_chunks; the stored message snapshot
// keeps its own serialization.
type ragContextResponse struct {
	ChildProfile            *domain.Child           `json:"childProfile,omitempty"`
	ActiveConcerns          []domain.Concern        `json:"activeConcerns,omitempty"`
	SessionSummaries        []domain.SessionSummary `json:"sessionSummaries,omitempty"`
	RelevantKnowledgeChunks []domain.RetrievedChunk `json:"relevant_knowledge_chunks,omitempty"`
	LatestSessionRoadmap    string                  `json:"latestSessionRoadmap,omitempty"`
}

func (s *Server) handleRAGContext(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req ragContextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ragCtx, err := s.app.BuildContext(r.Context(), req.ChildID, req.SessionID, req.ConversationID, req.Query)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"context": ragContextResponse{
		ChildProfile:            ragCtx.ChildProfile,
		ActiveConcerns:          ragCtx.ActiveConcerns,
		SessionSummaries:        ragCtx.SessionSummaries,
		RelevantKnowledgeChunks: ragCtx.KnowledgeChunks,
		LatestSessionRoadmap:    ragCtx.LatestSessionRoadmap,
	}})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, _ domain.User) {
	conversations, err := s.app.ListConversations(r.URL.Query().Get("childId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request, _ domain.User) {
	messages, err := s.app.ListConversationMessages(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleListChildren(w http.ResponseWriter, r *http.Request, _ domain.User) {
	children, err := s.app.ListChildren()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"children": children})
}

func (s *Server) handleCreateChild(w http.ResponseWriter, r *http.Request, user domain.User) {
	var input app.ChildInput
	if !decodeJSON(w, r, &input) {
		return
	}
	child, err := s.app.CreateChild(r.Context(), user, input)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

func (s *Server) handleGetChild(w http.ResponseWriter, r *http.Request, _ domain.User) {
	child, err := s.app.GetChild(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, child)
}

func (s *Server) handleUpdateChild(w http.ResponseWriter, r *http.Request, user domain.User) {
	var input app.ChildInput
	if !decodeJSON(w, r, &input) {
		return
	}
	child, err := s.app.UpdateChild(r.Context(), user, r.PathValue("id"), input)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, child)
}

func (s *Server) handleDeleteChild(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteChild(r.Context(), user, r.PathValue("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleImportChildren(w http.ResponseWriter, r *http.Request, user domain.User) {
	commit := r.URL.Query().Get("commit") == "true"
	result, err := s.app.ImportChildren(r.Context(), user, io.LimitReader(r.Body, maxCSVBody), commit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request, _ domain.User) {
	assignments, err := s.app.ListAssignments(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assignments": assignments})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request, user domain.User) {
	var input app.SessionInput
	if !decodeJSON(w, r, &input) {
		return
	}
	session, err := s.app.StartSession(r.Context(), user, input)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request, _ domain.User) {
	sessions, err := s.app.ListSessions(r.URL.Query().Get("childId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleSaveSummary(w http.ResponseWriter, r *http.Request, user domain.User) {
	var input app.SummaryInput
	if !decodeJSON(w, r, &input) {
		return
	}
	summary, err := s.app.SaveSessionSummary(r.Context(), user, input)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request, _ domain.User) {
	summary, err := s.app.GetSessionSummary(r.URL.Query().Get("sessionId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCreateConcern(w http.ResponseWriter, r *http.Request, user domain.User) {
	var input app.ConcernInput
	if !decodeJSON(w, r, &input) {
		return
	}
	concern, err := s.app.CreateConcern(r.Context(), user, input)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, concern)
}

func (s *Server) handleListConcerns(w http.ResponseWriter, r *http.Request, _ domain.User) {
	concerns, err := s.app.ListConcerns(r.URL.Query().Get("childId"), r.URL.Query().Get("status"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"concerns": concerns})
}

func (s *Server) handleUpdateConcern(w http.ResponseWriter, r *http.Request, user domain.User) {
	var update app.ConcernUpdate
	if !decodeJSON(w, r, &update) {
		return
	}
	concern, err := s.app.UpdateConcern(r.Context(), user, r.PathValue("id"), update)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, concern)
}

func (s *Server) handleAddKnowledge(w http.ResponseWriter, r *http.Request, user domain.User) {
	var input app.KnowledgeInput
	if !decodeJSON(w, r, &input) {
		return
	}
	chunk, err := s.app.AddKnowledgeChunk(r.Context(), user, input)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, chunk)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request, _ domain.User) {
	memories, err := s.app.ListMemories(r.URL.Query().Get("childId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": memories})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeAppError maps application errors onto HTTP statuses. Internal detail
// never leaks to the client on 500s.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := app.AsValidationError(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": ve.Fields})
		return
	}
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrUpstream):
		util.LoggerFromContext(r.Context()).Error("upstream failure", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
