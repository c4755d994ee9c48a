package app

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"careline/pkg/ai"
	"careline/pkg/domain"
)

// fakeStore is an in-memory Store for tests. Per-method failure hooks let
// tests inject persistence errors at specific pipeline steps.
type fakeStore struct {
	users         map[string]domain.User
	children      map[string]domain.Child
	concerns      map[string]domain.Concern
	sessions      map[string]domain.Session
	summaries     map[string]domain.SessionSummary // keyed by session id
	conversations map[string]domain.Conversation
	messages      []domain.ChatMessage
	memories      []domain.ConversationMemory
	assignments   []domain.Assignment
	chunks        []domain.RetrievedChunk

	failAppendMessage func(msg domain.ChatMessage) error
	failCreateMemory  error
	failConcerns      error
	failSummaries     error
	failSearch        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         map[string]domain.User{},
		children:      map[string]domain.Child{},
		concerns:      map[string]domain.Concern{},
		sessions:      map[string]domain.Session{},
		summaries:     map[string]domain.SessionSummary{},
		conversations: map[string]domain.Conversation{},
	}
}

func (s *fakeStore) SaveUser(u domain.User) error {
	if existing, ok := s.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	}
	s.users[u.ID] = u
	return nil
}

func (s *fakeStore) GetUserByID(id string) (domain.User, bool, error) {
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *fakeStore) CreateChild(c domain.Child) error {
	s.children[c.ID] = c
	return nil
}

func (s *fakeStore) CreateChildren(children []domain.Child) (int, error) {
	for _, c := range children {
		s.children[c.ID] = c
	}
	return len(children), nil
}

func (s *fakeStore) GetChild(id string) (domain.Child, bool, error) {
	c, ok := s.children[id]
	if !ok || !c.IsActive {
		return domain.Child{}, false, nil
	}
	return c, true, nil
}

func (s *fakeStore) UpdateChild(c domain.Child) error {
	if _, ok := s.children[c.ID]; !ok {
		return errors.New("missing child")
	}
	s.children[c.ID] = c
	return nil
}

func (s *fakeStore) DeactivateChild(id string) error {
	c, ok := s.children[id]
	if !ok {
		return errors.New("missing child")
	}
	c.IsActive = false
	s.children[id] = c
	return nil
}

func (s *fakeStore) ListChildren(limit int) ([]domain.Child, error) {
	out := make([]domain.Child, 0, len(s.children))
	for _, c := range s.children {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) CreateConcern(c domain.Concern) error {
	s.concerns[c.ID] = c
	return nil
}

func (s *fakeStore) GetConcern(id string) (domain.Concern, bool, error) {
	c, ok := s.concerns[id]
	return c, ok, nil
}

func (s *fakeStore) UpdateConcern(c domain.Concern) error {
	s.concerns[c.ID] = c
	return nil
}

func (s *fakeStore) ListConcernsByChild(childID string, status domain.ConcernStatus) ([]domain.Concern, error) {
	out := make([]domain.Concern, 0)
	for _, c := range s.concerns {
		if c.ChildID != childID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListActiveConcerns(childID string) ([]domain.Concern, error) {
	if s.failConcerns != nil {
		return nil, s.failConcerns
	}
	out := make([]domain.Concern, 0)
	for _, c := range s.concerns {
		if c.ChildID == childID && c.Status != domain.ConcernResolved {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) CreateSession(sess domain.Session) error {
	s.sessions[sess.ID] = sess
	return nil
}

func (s *fakeStore) GetSession(id string) (domain.Session, bool, error) {
	sess, ok := s.sessions[id]
	return sess, ok, nil
}

func (s *fakeStore) UpdateSessionStatus(id string, status domain.SessionStatus, endedAt *time.Time) error {
	sess, ok := s.sessions[id]
	if !ok {
		return errors.New("missing session")
	}
	sess.Status = status
	if endedAt != nil {
		sess.EndedAt = endedAt
	}
	s.sessions[id] = sess
	return nil
}

func (s *fakeStore) ListSessionsByChild(childID string, limit int) ([]domain.Session, error) {
	out := make([]domain.Session, 0)
	for _, sess := range s.sessions {
		if sess.ChildID == childID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) UpsertSessionSummary(summary domain.SessionSummary) error {
	s.summaries[summary.SessionID] = summary
	return nil
}

func (s *fakeStore) GetSessionSummary(sessionID string) (domain.SessionSummary, bool, error) {
	summary, ok := s.summaries[sessionID]
	return summary, ok, nil
}

func (s *fakeStore) ListRecentSummariesByChild(childID string, limit int) ([]domain.SessionSummary, error) {
	if s.failSummaries != nil {
		return nil, s.failSummaries
	}
	out := make([]domain.SessionSummary, 0)
	for _, summary := range s.summaries {
		sess, ok := s.sessions[summary.SessionID]
		if ok && sess.ChildID == childID {
			out = append(out, summary)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) CreateConversation(conversation domain.Conversation) error {
	s.conversations[conversation.ID] = conversation
	return nil
}

func (s *fakeStore) GetConversation(id string) (domain.Conversation, bool, error) {
	c, ok := s.conversations[id]
	return c, ok, nil
}

func (s *fakeStore) ListConversationsByChild(childID string, limit int) ([]domain.Conversation, error) {
	out := make([]domain.Conversation, 0)
	for _, c := range s.conversations {
		if c.ChildID == childID && c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) TouchConversation(id string, lastMessageAt time.Time) error {
	c, ok := s.conversations[id]
	if !ok {
		return errors.New("missing conversation")
	}
	c.LastMessageAt = &lastMessageAt
	s.conversations[id] = c
	return nil
}

func (s *fakeStore) AppendMessage(msg domain.ChatMessage) error {
	if s.failAppendMessage != nil {
		if err := s.failAppendMessage(msg); err != nil {
			return err
		}
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeStore) ListRecentMessages(conversationID string, limit int) ([]domain.ChatMessage, error) {
	out := make([]domain.ChatMessage, 0)
	for _, msg := range s.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *fakeStore) CreateMemory(m domain.ConversationMemory) error {
	if s.failCreateMemory != nil {
		return s.failCreateMemory
	}
	s.memories = append(s.memories, m)
	return nil
}

func (s *fakeStore) ListMemoriesByChild(childID string, limit int) ([]domain.ConversationMemory, error) {
	out := make([]domain.ConversationMemory, 0)
	for _, m := range s.memories {
		if m.ChildID == childID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) EnsureAssignment(childID, volunteerID string) (domain.Assignment, error) {
	for _, a := range s.assignments {
		if a.ChildID == childID && a.VolunteerID == volunteerID && a.IsActive {
			return a, nil
		}
	}
	a := domain.Assignment{
		ID:          "assign-" + childID + "-" + volunteerID,
		ChildID:     childID,
		VolunteerID: volunteerID,
		IsActive:    true,
		AssignedAt:  time.Now().UTC(),
	}
	s.assignments = append(s.assignments, a)
	return a, nil
}

func (s *fakeStore) ListAssignmentsByChild(childID string) ([]domain.Assignment, error) {
	out := make([]domain.Assignment, 0)
	for _, a := range s.assignments {
		if a.ChildID == childID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertKnowledgeChunk(chunk domain.KnowledgeChunk, embedding []float32) error {
	s.chunks = append(s.chunks, domain.RetrievedChunk{KnowledgeChunk: chunk, Similarity: 1})
	return nil
}

func (s *fakeStore) SearchKnowledgeChunks(embedding []float32, limit int) ([]domain.RetrievedChunk, error) {
	if s.failSearch != nil {
		return nil, s.failSearch
	}
	if limit > 0 && len(s.chunks) > limit {
		return s.chunks[:limit], nil
	}
	return s.chunks, nil
}

// fakeChat returns a canned reply and records the messages it was called with.
type fakeChat struct {
	reply    string
	err      error
	lastCall []ai.ChatMessage
	calls    int
}

func (c *fakeChat) Complete(_ context.Context, messages []ai.ChatMessage) (ai.ChatResult, error) {
	c.calls++
	c.lastCall = messages
	if c.err != nil {
		return ai.ChatResult{}, c.err
	}
	return ai.ChatResult{
		Content:          c.reply,
		Model:            "fake-model",
		PromptTokens:     10,
		CompletionTokens: 5,
	}, nil
}

// fakeEmbedder records the text it embedded.
type fakeEmbedder struct {
	lastText string
	err      error
}

func (e *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	e.lastText = text
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// memCache is an in-process ContextCache.
type memCache struct {
	entries map[string]*domain.RAGContext
	gets    int
	hits    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]*domain.RAGContext{}}
}

func (c *memCache) Get(_ context.Context, childID string) (*domain.RAGContext, bool, error) {
	c.gets++
	entry, ok := c.entries[childID]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	clone := *entry
	return &clone, true, nil
}

func (c *memCache) Set(_ context.Context, childID string, ragCtx *domain.RAGContext) error {
	clone := *ragCtx
	clone.KnowledgeChunks = nil
	c.entries[childID] = &clone
	return nil
}

func (c *memCache) Invalidate(_ context.Context, childID string) error {
	delete(c.entries, childID)
	return nil
}

func newTestApp(t *testing.T, s *fakeStore, c ContextCache, chat *fakeChat, embedder *fakeEmbedder) *App {
	t.Helper()
	a, err := New(Config{
		Store:        s,
		Cache:        c,
		Chat:         chat,
		Embedder:     embedder,
		TopK:         8,
		HistoryLimit: 8,
		SummaryLimit: 5,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func activeChild(id, name string) domain.Child {
	return domain.Child{
		ID:          id,
		FullName:    name,
		DateOfBirth: time.Date(2012, 6, 15, 0, 0, 0, 0, time.UTC),
		Gender:      domain.GenderMale,
		State:       "Bihar",
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func adminUser() domain.User {
	return domain.User{ID: "admin-1", Email: "admin@example.org", Role: domain.RoleAdmin}
}

func volunteerUser() domain.User {
	return domain.User{ID: "vol-1", Email: "vol@example.org", Role: domain.RoleVolunteer}
}
