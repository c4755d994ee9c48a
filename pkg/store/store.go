package store

import (
	"time"

	"careline/pkg/domain"
)

// Store defines persistence operations for the counseling data model.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByID(id string) (domain.User, bool, error)

	// children
	CreateChild(domain.Child) error
	CreateChildren([]domain.Child) (int, error)
	GetChild(id string) (domain.Child, bool, error)
	UpdateChild(domain.Child) error
	DeactivateChild(id string) error
	ListChildren(limit int) ([]domain.Child, error)

	// concerns
	CreateConcern(domain.Concern) error
	GetConcern(id string) (domain.Concern, bool, error)
	UpdateConcern(domain.Concern) error
	ListConcernsByChild(childID string, status domain.ConcernStatus) ([]domain.Concern, error)
	ListActiveConcerns(childID string) ([]domain.Concern, error)

	// sessions
	CreateSession(domain.Session) error
	GetSession(id string) (domain.Session, bool, error)
	UpdateSessionStatus(id string, status domain.SessionStatus, endedAt *time.Time) error
	ListSessionsByChild(childID string, limit int) ([]domain.Session, error)

	// session summaries
	UpsertSessionSummary(domain.SessionSummary) error
	GetSessionSummary(sessionID string) (domain.SessionSummary, bool, error)
	ListRecentSummariesByChild(childID string, limit int) ([]domain.SessionSummary, error)

	// conversations & messages
	CreateConversation(domain.Conversation) error
	GetConversation(id string) (domain.Conversation, bool, error)
	ListConversationsByChild(childID string, limit int) ([]domain.Conversation, error)
	TouchConversation(id string, lastMessageAt time.Time) error
	AppendMessage(domain.ChatMessage) error
	ListRecentMessages(conversationID string, limit int) ([]domain.ChatMessage, error)

	// conversation memories
	CreateMemory(domain.ConversationMemory) error
	ListMemoriesByChild(childID string, limit int) ([]domain.ConversationMemory, error)

	// assignments
	EnsureAssignment(childID, volunteerID string) (domain.Assignment, error)
	ListAssignmentsByChild(childID string) ([]domain.Assignment, error)

	// knowledge chunks
	UpsertKnowledgeChunk(chunk domain.KnowledgeChunk, embedding []float32) error
	SearchKnowledgeChunks(embedding []float32, limit int) ([]domain.RetrievedChunk, error)
}
