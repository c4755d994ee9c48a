package domain

import "time"

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

type UserRole string

const (
	RoleVolunteer UserRole = "VOLUNTEER"
	RoleAdmin     UserRole = "ADMIN"
)

type ConcernCategory string

const (
	CategoryAcademic   ConcernCategory = "ACADEMIC"
	CategoryFamily     ConcernCategory = "FAMILY"
	CategoryEmotional  ConcernCategory = "EMOTIONAL"
	CategoryBehavioral ConcernCategory = "BEHAVIORAL"
	CategoryHealth     ConcernCategory = "HEALTH"
	CategorySocial     ConcernCategory = "SOCIAL"
	CategoryOther      ConcernCategory = "OTHER"
)

type ConcernSeverity string

const (
	SeverityLow      ConcernSeverity = "LOW"
	SeverityMedium   ConcernSeverity = "MEDIUM"
	SeverityHigh     ConcernSeverity = "HIGH"
	SeverityCritical ConcernSeverity = "CRITICAL"
)

type ConcernStatus string

const (
	ConcernOpen       ConcernStatus = "OPEN"
	ConcernInProgress ConcernStatus = "IN_PROGRESS"
	ConcernResolved   ConcernStatus = "RESOLVED"
)

type SessionStatus string

const (
	SessionPlanned    SessionStatus = "PLANNED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "USER"
	MessageRoleAssistant MessageRole = "ASSISTANT"
	MessageRoleSystem    MessageRole = "SYSTEM"
)

type MemoryType string

const (
	MemoryBreakthroughMoment MemoryType = "BREAKTHROUGH_MOMENT"
	MemoryWarningSign        MemoryType = "WARNING_SIGN"
	MemoryEffectiveTechnique MemoryType = "EFFECTIVE_TECHNIQUE"
	MemoryChildPreference    MemoryType = "CHILD_PREFERENCE"
	MemoryCulturalReference  MemoryType = "CULTURAL_REFERENCE"
	MemoryImportantInsight   MemoryType = "IMPORTANT_INSIGHT"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type Child struct {
	ID              string    `json:"id"`
	FullName        string    `json:"fullName"`
	DateOfBirth     time.Time `json:"dateOfBirth"`
	Gender          Gender    `json:"gender"`
	State           string    `json:"state"`
	District        string    `json:"district,omitempty"`
	City            string    `json:"city,omitempty"`
	Background      string    `json:"background,omitempty"`
	EducationType   string    `json:"educationType"`
	GradeLevel      string    `json:"gradeLevel,omitempty"`
	ContactNumber   string    `json:"contactNumber,omitempty"`
	GuardianContact string    `json:"guardianContact,omitempty"`
	Interests       []string  `json:"interests,omitempty"`
	ConcernNotes    []string  `json:"concernNotes,omitempty"`
	Language        string    `json:"language,omitempty"`
	IsActive        bool      `json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Age returns the child's age in whole years at the given time.
func (c Child) Age(now time.Time) int {
	years := now.Year() - c.DateOfBirth.Year()
	if now.Month() < c.DateOfBirth.Month() ||
		(now.Month() == c.DateOfBirth.Month() && now.Day() < c.DateOfBirth.Day()) {
		years--
	}
	return years
}

type Concern struct {
	ID           string          `json:"id"`
	ChildID      string          `json:"childId"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Category     ConcernCategory `json:"category"`
	Severity     ConcernSeverity `json:"severity"`
	Status       ConcernStatus   `json:"status"`
	IdentifiedAt time.Time       `json:"identifiedAt"`
	ResolvedAt   *time.Time      `json:"resolvedAt,omitempty"`
}

type Session struct {
	ID          string        `json:"id"`
	ChildID     string        `json:"childId"`
	VolunteerID string        `json:"volunteerId"`
	Status      SessionStatus `json:"status"`
	SessionType string        `json:"sessionType,omitempty"`
	ScheduledAt *time.Time    `json:"scheduledAt,omitempty"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	EndedAt     *time.Time    `json:"endedAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type SessionSummary struct {
	ID                 string     `json:"id"`
	SessionID          string     `json:"sessionId"`
	Summary            string     `json:"summary"`
	Effectiveness      int        `json:"effectiveness,omitempty"`
	FollowUpNotes      string     `json:"followUpNotes,omitempty"`
	NewConcernIDs      []string   `json:"newConcernIds,omitempty"`
	ResolvedConcernIDs []string   `json:"resolvedConcernIds,omitempty"`
	NextSessionDate    *time.Time `json:"nextSessionDate,omitempty"`
	NextSessionPlan    string     `json:"nextSessionPlan,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type Conversation struct {
	ID            string     `json:"id"`
	ChildID       string     `json:"childId"`
	VolunteerID   string     `json:"volunteerId"`
	SessionID     *string    `json:"sessionId,omitempty"`
	Name          string     `json:"name"`
	IsActive      bool       `json:"isActive"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type ChatMessage struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	Role           MessageRole      `json:"role"`
	Content        string           `json:"content"`
	RAGContext     *RAGContext      `json:"ragContext,omitempty"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// MessageMetadata records how an assistant reply was produced.
type MessageMetadata struct {
	Model            string   `json:"model,omitempty"`
	LatencyMillis    int64    `json:"latencyMs"`
	PromptTokens     int      `json:"promptTokens,omitempty"`
	CompletionTokens int      `json:"completionTokens,omitempty"`
	Sources          []string `json:"sources,omitempty"`
}

type ConversationMemory struct {
	ID          string     `json:"id"`
	ChildID     string     `json:"childId"`
	VolunteerID string     `json:"volunteerId"`
	SessionID   *string    `json:"sessionId,omitempty"`
	Type        MemoryType `json:"type"`
	Content     string     `json:"content"`
	Importance  int        `json:"importance"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Assignment struct {
	ID          string    `json:"id"`
	ChildID     string    `json:"childId"`
	VolunteerID string    `json:"volunteerId"`
	IsActive    bool      `json:"isActive"`
	AssignedAt  time.Time `json:"assignedAt"`
}

type KnowledgeChunk struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Source    string            `json:"source,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// RetrievedChunk is a knowledge chunk returned by similarity search.
type RetrievedChunk struct {
	KnowledgeChunk
	Similarity float32 `json:"similarity"`
}

// RAGContext is the point-in-time context snapshot assembled for one chat
// exchange. It is attached to the stored assistant message as a copy, never a
// live reference.
type RAGContext struct {
	ChildProfile         *Child           `json:"childProfile,omitempty"`
	ActiveConcerns       []Concern        `json:"activeConcerns,omitempty"`
	SessionSummaries     []SessionSummary `json:"sessionSummaries,omitempty"`
	KnowledgeChunks      []RetrievedChunk `json:"knowledgeChunks,omitempty"`
	LatestSessionRoadmap string           `json:"latestSessionRoadmap,omitempty"`
}
