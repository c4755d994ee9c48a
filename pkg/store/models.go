package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	FullName  string `gorm:"not null"`
	Role      string `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type ChildModel struct {
	ID              string    `gorm:"primaryKey"`
	FullName        string    `gorm:"not null"`
	DateOfBirth     time.Time `gorm:"not null"`
	Gender          string    `gorm:"not null"`
	State           string    `gorm:"not null"`
	District        string
	City            string
	Background      string `gorm:"type:text"`
	EducationType   string `gorm:"not null"`
	GradeLevel      string
	ContactNumber   string
	GuardianContact string
	Interests       datatypes.JSON `gorm:"type:jsonb"`
	ConcernNotes    datatypes.JSON `gorm:"type:jsonb"`
	Language        string
	IsActive        bool      `gorm:"not null;default:true;index"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (ChildModel) TableName() string { return "children" }

type ConcernModel struct {
	ID           string `gorm:"primaryKey"`
	ChildID      string `gorm:"not null;index"`
	Title        string `gorm:"not null"`
	Description  string `gorm:"type:text"`
	Category     string `gorm:"not null"`
	Severity     string `gorm:"not null"`
	Status       string `gorm:"not null;index"`
	IdentifiedAt time.Time `gorm:"not null"`
	ResolvedAt   *time.Time
}

func (ConcernModel) TableName() string { return "concerns" }

type SessionModel struct {
	ID          string `gorm:"primaryKey"`
	ChildID     string `gorm:"not null;index"`
	VolunteerID string `gorm:"not null;index"`
	Status      string `gorm:"not null"`
	SessionType string
	ScheduledAt *time.Time
	StartedAt   *time.Time
	EndedAt     *time.Time
	CreatedAt   time.Time `gorm:"not null"`
}

func (SessionModel) TableName() string { return "sessions" }

type SessionSummaryModel struct {
	ID                 string `gorm:"primaryKey"`
	SessionID          string `gorm:"uniqueIndex;not null"`
	Summary            string `gorm:"type:text;not null"`
	Effectiveness      int
	FollowUpNotes      string         `gorm:"type:text"`
	NewConcernIDs      datatypes.JSON `gorm:"type:jsonb"`
	ResolvedConcernIDs datatypes.JSON `gorm:"type:jsonb"`
	NextSessionDate    *time.Time
	NextSessionPlan    string    `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

func (SessionSummaryModel) TableName() string { return "session_summaries" }

type ConversationModel struct {
	ID            string  `gorm:"primaryKey"`
	ChildID       string  `gorm:"not null;index"`
	VolunteerID   string  `gorm:"not null;index"`
	SessionID     *string `gorm:"index"`
	Name          string  `gorm:"not null"`
	IsActive      bool    `gorm:"not null;default:true"`
	LastMessageAt *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (ConversationModel) TableName() string { return "ai_chat_conversations" }

type ChatMessageModel struct {
	ID             string         `gorm:"primaryKey"`
	ConversationID string         `gorm:"not null;index"`
	Role           string         `gorm:"not null"`
	Content        string         `gorm:"type:text;not null"`
	RAGContext     datatypes.JSON `gorm:"type:jsonb"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null;index"`
}

func (ChatMessageModel) TableName() string { return "ai_chat_messages" }

type ConversationMemoryModel struct {
	ID          string  `gorm:"primaryKey"`
	ChildID     string  `gorm:"not null;index"`
	VolunteerID string  `gorm:"not null"`
	SessionID   *string
	Type        string `gorm:"not null"`
	Content     string `gorm:"type:text;not null"`
	Importance  int    `gorm:"not null"`
	Tags        datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"not null"`
}

func (ConversationMemoryModel) TableName() string { return "conversation_memories" }

type AssignmentModel struct {
	ID          string    `gorm:"primaryKey"`
	ChildID     string    `gorm:"not null;index"`
	VolunteerID string    `gorm:"not null;index"`
	IsActive    bool      `gorm:"not null;default:true"`
	AssignedAt  time.Time `gorm:"not null"`
}

func (AssignmentModel) TableName() string { return "assignments" }

type KnowledgeChunkModel struct {
	ID        string           `gorm:"primaryKey"`
	Content   string           `gorm:"type:text;not null"`
	Source    string
	Metadata  datatypes.JSON   `gorm:"type:jsonb"`
	Embedding *pgvector.Vector `gorm:"type:vector(1536)"`
	CreatedAt time.Time        `gorm:"not null;index"`
}

func (KnowledgeChunkModel) TableName() string { return "knowledge_chunks" }
