package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"careline/pkg/domain"
)

const migrateLockID int64 = 52195219

const (
	defaultEmbeddingDim      = 1536
	canonicalEmbeddingDimEnv = "CARELINE_EMBEDDING_DIM"
)

type GormStoreOptions struct {
	EmbeddingDim int
}

type GormStoreOption func(*GormStoreOptions)

// WithEmbeddingDim sets the canonical embedding dimension used by storage.
func WithEmbeddingDim(dim int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.EmbeddingDim = dim
	}
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db           *gorm.DB
	embeddingDim int
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	embeddingDim, err := resolveEmbeddingDim(opts.EmbeddingDim)
	if err != nil {
		return nil, err
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("create pgvector extension: %w", err)
		}
		if err := tx.AutoMigrate(
			&UserModel{}, &ChildModel{}, &ConcernModel{},
			&SessionModel{}, &SessionSummaryModel{},
			&ConversationModel{}, &ChatMessageModel{},
			&ConversationMemoryModel{}, &AssignmentModel{},
			&KnowledgeChunkModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(fmt.Sprintf(`
			DO $$
			BEGIN
			IF EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'knowledge_chunks' AND column_name = 'embedding'
			) THEN
				ALTER TABLE knowledge_chunks ALTER COLUMN embedding TYPE vector(%d);
			END IF;
			END $$;
		`, embeddingDim)).Error; err != nil {
			return fmt.Errorf("alter chunk embedding type: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, embeddingDim: embeddingDim}, nil
}

func withMigrationLock(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		return fn(tx)
	})
}

func resolveEmbeddingDim(dim int) (int, error) {
	if dim > 0 {
		return dim, nil
	}
	if raw := strings.TrimSpace(os.Getenv(canonicalEmbeddingDimEnv)); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, fmt.Errorf("invalid %s: %q", canonicalEmbeddingDimEnv, raw)
		}
		return parsed, nil
	}
	return defaultEmbeddingDim, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "full_name", "role"}),
	}).Create(&model).Error
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreateChild stores a new child profile.
func (s *GormStore) CreateChild(c domain.Child) error {
	model := childToModel(c)
	return s.db.Create(&model).Error
}

// CreateChildren inserts a batch of children (bulk import commit).
// Returns the number of rows written.
func (s *GormStore) CreateChildren(children []domain.Child) (int, error) {
	if len(children) == 0 {
		return 0, nil
	}
	models := make([]ChildModel, 0, len(children))
	for _, c := range children {
		models = append(models, childToModel(c))
	}
	if err := s.db.CreateInBatches(&models, 100).Error; err != nil {
		return 0, err
	}
	return len(models), nil
}

// GetChild retrieves a child profile; inactive (soft-deleted) children are
// reported as not found.
func (s *GormStore) GetChild(id string) (domain.Child, bool, error) {
	var model ChildModel
	if err := s.db.First(&model, "id = ? AND is_active = ?", id, true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Child{}, false, nil
		}
		return domain.Child{}, false, err
	}
	return childFromModel(model), true, nil
}

// UpdateChild replaces mutable profile fields.
func (s *GormStore) UpdateChild(c domain.Child) error {
	model := childToModel(c)
	model.UpdatedAt = time.Now().UTC()
	res := s.db.Model(&ChildModel{}).
		Where("id = ? AND is_active = ?", c.ID, true).
		Updates(map[string]any{
			"full_name":        model.FullName,
			"date_of_birth":    model.DateOfBirth,
			"gender":           model.Gender,
			"state":            model.State,
			"district":         model.District,
			"city":             model.City,
			"background":       model.Background,
			"education_type":   model.EducationType,
			"grade_level":      model.GradeLevel,
			"contact_number":   model.ContactNumber,
			"guardian_contact": model.GuardianContact,
			"interests":        model.Interests,
			"concern_notes":    model.ConcernNotes,
			"language":         model.Language,
			"updated_at":       model.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeactivateChild soft-deletes a child profile.
func (s *GormStore) DeactivateChild(id string) error {
	res := s.db.Model(&ChildModel{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListChildren returns active children, newest first.
func (s *GormStore) ListChildren(limit int) ([]domain.Child, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	var models []ChildModel
	if err := s.db.Where("is_active = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	children := make([]domain.Child, 0, len(models))
	for _, m := range models {
		children = append(children, childFromModel(m))
	}
	return children, nil
}

// CreateConcern stores a new concern.
func (s *GormStore) CreateConcern(c domain.Concern) error {
	model := concernToModel(c)
	return s.db.Create(&model).Error
}

// GetConcern returns one concern by ID.
func (s *GormStore) GetConcern(id string) (domain.Concern, bool, error) {
	var model ConcernModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Concern{}, false, nil
		}
		return domain.Concern{}, false, err
	}
	return concernFromModel(model), true, nil
}

// UpdateConcern replaces mutable concern fields including status transitions.
func (s *GormStore) UpdateConcern(c domain.Concern) error {
	model := concernToModel(c)
	return s.db.Model(&ConcernModel{}).
		Where("id = ?", c.ID).
		Updates(map[string]any{
			"title":       model.Title,
			"description": model.Description,
			"category":    model.Category,
			"severity":    model.Severity,
			"status":      model.Status,
			"resolved_at": model.ResolvedAt,
		}).Error
}

// ListConcernsByChild returns concerns for a child, optionally filtered by status.
func (s *GormStore) ListConcernsByChild(childID string, status domain.ConcernStatus) ([]domain.Concern, error) {
	query := s.db.Where("child_id = ?", childID).Order("identified_at DESC")
	if status != "" {
		query = query.Where("status = ?", string(status))
	}
	var models []ConcernModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	concerns := make([]domain.Concern, 0, len(models))
	for _, m := range models {
		concerns = append(concerns, concernFromModel(m))
	}
	return concerns, nil
}

// ListActiveConcerns returns concerns whose status is not RESOLVED.
func (s *GormStore) ListActiveConcerns(childID string) ([]domain.Concern, error) {
	var models []ConcernModel
	if err := s.db.Where("child_id = ? AND status <> ?", childID, string(domain.ConcernResolved)).
		Order("identified_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	concerns := make([]domain.Concern, 0, len(models))
	for _, m := range models {
		concerns = append(concerns, concernFromModel(m))
	}
	return concerns, nil
}

// CreateSession stores a new counseling session.
func (s *GormStore) CreateSession(sess domain.Session) error {
	model := sessionToModel(sess)
	return s.db.Create(&model).Error
}

// GetSession returns one session by ID.
func (s *GormStore) GetSession(id string) (domain.Session, bool, error) {
	var model SessionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, err
	}
	return sessionFromModel(model), true, nil
}

// UpdateSessionStatus transitions a session, optionally stamping endedAt.
func (s *GormStore) UpdateSessionStatus(id string, status domain.SessionStatus, endedAt *time.Time) error {
	updates := map[string]any{"status": string(status)}
	if endedAt != nil {
		updates["ended_at"] = endedAt.UTC()
	}
	res := s.db.Model(&SessionModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListSessionsByChild returns recent sessions for a child, newest first.
func (s *GormStore) ListSessionsByChild(childID string, limit int) ([]domain.Session, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var models []SessionModel
	if err := s.db.Where("child_id = ?", childID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	sessions := make([]domain.Session, 0, len(models))
	for _, m := range models {
		sessions = append(sessions, sessionFromModel(m))
	}
	return sessions, nil
}

// UpsertSessionSummary creates or updates the 1:1 summary for a session.
func (s *GormStore) UpsertSessionSummary(summary domain.SessionSummary) error {
	model := summaryToModel(summary)
	model.UpdatedAt = time.Now().UTC()
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"summary", "effectiveness", "follow_up_notes",
			"new_concern_ids", "resolved_concern_ids",
			"next_session_date", "next_session_plan", "updated_at",
		}),
	}).Create(&model).Error
}

// GetSessionSummary returns the summary for a session.
func (s *GormStore) GetSessionSummary(sessionID string) (domain.SessionSummary, bool, error) {
	var model SessionSummaryModel
	if err := s.db.First(&model, "session_id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.SessionSummary{}, false, nil
		}
		return domain.SessionSummary{}, false, err
	}
	return summaryFromModel(model), true, nil
}

// ListRecentSummariesByChild returns the latest summaries for a child's
// sessions, newest first.
func (s *GormStore) ListRecentSummariesByChild(childID string, limit int) ([]domain.SessionSummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 5
	}
	var models []SessionSummaryModel
	if err := s.db.
		Joins("JOIN sessions ON sessions.id = session_summaries.session_id").
		Where("sessions.child_id = ?", childID).
		Order("session_summaries.updated_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	summaries := make([]domain.SessionSummary, 0, len(models))
	for _, m := range models {
		summaries = append(summaries, summaryFromModel(m))
	}
	return summaries, nil
}

// CreateConversation creates a new conversation record.
func (s *GormStore) CreateConversation(conversation domain.Conversation) error {
	model := conversationToModel(conversation)
	return s.db.Create(&model).Error
}

// GetConversation returns one conversation by ID.
func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ListConversationsByChild returns latest conversations for a child.
func (s *GormStore) ListConversationsByChild(childID string, limit int) ([]domain.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	var models []ConversationModel
	if err := s.db.Where("child_id = ? AND is_active = ?", childID, true).
		Order("last_message_at DESC NULLS LAST").
		Order("updated_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Conversation, 0, len(models))
	for _, model := range models {
		items = append(items, conversationFromModel(model))
	}
	return items, nil
}

// TouchConversation refreshes the last-message timestamp.
func (s *GormStore) TouchConversation(id string, lastMessageAt time.Time) error {
	return s.db.Model(&ConversationModel{}).Where("id = ?", id).Updates(map[string]any{
		"last_message_at": lastMessageAt.UTC(),
		"updated_at":      time.Now().UTC(),
	}).Error
}

// AppendMessage records a chat message. Messages are append-only.
func (s *GormStore) AppendMessage(msg domain.ChatMessage) error {
	model, err := messageToModel(msg)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// ListRecentMessages returns the last `limit` messages for a conversation in
// chronological order (most recent last).
func (s *GormStore) ListRecentMessages(conversationID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var models []ChatMessageModel
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.ChatMessage, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msg, err := messageFromModel(models[i])
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// CreateMemory stores a conversation memory row. Memories are never updated
// or deleted by this layer.
func (s *GormStore) CreateMemory(m domain.ConversationMemory) error {
	model := memoryToModel(m)
	return s.db.Create(&model).Error
}

// ListMemoriesByChild returns stored memories for a child, most important first.
func (s *GormStore) ListMemoriesByChild(childID string, limit int) ([]domain.ConversationMemory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var models []ConversationMemoryModel
	if err := s.db.Where("child_id = ?", childID).
		Order("importance DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	memories := make([]domain.ConversationMemory, 0, len(models))
	for _, m := range models {
		memories = append(memories, memoryFromModel(m))
	}
	return memories, nil
}

// EnsureAssignment returns the active assignment tying a volunteer to a child,
// creating it when absent. The schema allows many assignments per pair; reads
// take the most recent active one.
func (s *GormStore) EnsureAssignment(childID, volunteerID string) (domain.Assignment, error) {
	var model AssignmentModel
	err := s.db.Where("child_id = ? AND volunteer_id = ? AND is_active = ?", childID, volunteerID, true).
		Order("assigned_at DESC").
		First(&model).Error
	if err == nil {
		return assignmentFromModel(model), nil
	}
	if err != gorm.ErrRecordNotFound {
		return domain.Assignment{}, err
	}
	model = AssignmentModel{
		ID:          uuid.NewString(),
		ChildID:     childID,
		VolunteerID: volunteerID,
		IsActive:    true,
		AssignedAt:  time.Now().UTC(),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Assignment{}, err
	}
	return assignmentFromModel(model), nil
}

// ListAssignmentsByChild returns assignments for a child, newest first.
func (s *GormStore) ListAssignmentsByChild(childID string) ([]domain.Assignment, error) {
	var models []AssignmentModel
	if err := s.db.Where("child_id = ?", childID).
		Order("assigned_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Assignment, 0, len(models))
	for _, m := range models {
		items = append(items, assignmentFromModel(m))
	}
	return items, nil
}

// UpsertKnowledgeChunk stores or replaces a knowledge chunk with its embedding.
func (s *GormStore) UpsertKnowledgeChunk(chunk domain.KnowledgeChunk, embedding []float32) error {
	if err := s.validateEmbeddingDim(embedding); err != nil {
		return err
	}
	vec := pgvector.NewVector(embedding)
	model, err := chunkToModel(chunk)
	if err != nil {
		return err
	}
	model.Embedding = &vec
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "source", "metadata", "embedding"}),
	}).Create(&model).Error
}

// SearchKnowledgeChunks finds similar chunks by cosine distance.
func (s *GormStore) SearchKnowledgeChunks(embedding []float32, limit int) ([]domain.RetrievedChunk, error) {
	if limit <= 0 {
		return []domain.RetrievedChunk{}, nil
	}
	if err := s.validateEmbeddingDim(embedding); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(embedding)
	var rows []struct {
		KnowledgeChunkModel
		Distance float32
	}
	if err := s.db.Model(&KnowledgeChunkModel{}).
		Select("*, embedding <=> ? AS distance", vec).
		Where("embedding IS NOT NULL").
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []any{vec}}).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	chunks := make([]domain.RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		chunk, err := chunkFromModel(row.KnowledgeChunkModel)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, domain.RetrievedChunk{
			KnowledgeChunk: chunk,
			Similarity:     1 - row.Distance,
		})
	}
	return chunks, nil
}

func (s *GormStore) validateEmbeddingDim(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	if s.embeddingDim > 0 && len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), s.embeddingDim)
	}
	return nil
}

// model <-> domain conversions

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:        m.ID,
		Email:     m.Email,
		FullName:  m.FullName,
		Role:      domain.UserRole(m.Role),
		CreatedAt: m.CreatedAt,
	}
}

func childToModel(c domain.Child) ChildModel {
	return ChildModel{
		ID:              c.ID,
		FullName:        c.FullName,
		DateOfBirth:     c.DateOfBirth,
		Gender:          string(c.Gender),
		State:           c.State,
		District:        c.District,
		City:            c.City,
		Background:      c.Background,
		EducationType:   c.EducationType,
		GradeLevel:      c.GradeLevel,
		ContactNumber:   c.ContactNumber,
		GuardianContact: c.GuardianContact,
		Interests:       stringsToJSON(c.Interests),
		ConcernNotes:    stringsToJSON(c.ConcernNotes),
		Language:        c.Language,
		IsActive:        c.IsActive,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func childFromModel(m ChildModel) domain.Child {
	return domain.Child{
		ID:              m.ID,
		FullName:        m.FullName,
		DateOfBirth:     m.DateOfBirth,
		Gender:          domain.Gender(m.Gender),
		State:           m.State,
		District:        m.District,
		City:            m.City,
		Background:      m.Background,
		EducationType:   m.EducationType,
		GradeLevel:      m.GradeLevel,
		ContactNumber:   m.ContactNumber,
		GuardianContact: m.GuardianContact,
		Interests:       stringsFromJSON(m.Interests),
		ConcernNotes:    stringsFromJSON(m.ConcernNotes),
		Language:        m.Language,
		IsActive:        m.IsActive,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func concernToModel(c domain.Concern) ConcernModel {
	return ConcernModel{
		ID:           c.ID,
		ChildID:      c.ChildID,
		Title:        c.Title,
		Description:  c.Description,
		Category:     string(c.Category),
		Severity:     string(c.Severity),
		Status:       string(c.Status),
		IdentifiedAt: c.IdentifiedAt,
		ResolvedAt:   c.ResolvedAt,
	}
}

func concernFromModel(m ConcernModel) domain.Concern {
	return domain.Concern{
		ID:           m.ID,
		ChildID:      m.ChildID,
		Title:        m.Title,
		Description:  m.Description,
		Category:     domain.ConcernCategory(m.Category),
		Severity:     domain.ConcernSeverity(m.Severity),
		Status:       domain.ConcernStatus(m.Status),
		IdentifiedAt: m.IdentifiedAt,
		ResolvedAt:   m.ResolvedAt,
	}
}

func sessionToModel(s domain.Session) SessionModel {
	return SessionModel{
		ID:          s.ID,
		ChildID:     s.ChildID,
		VolunteerID: s.VolunteerID,
		Status:      string(s.Status),
		SessionType: s.SessionType,
		ScheduledAt: s.ScheduledAt,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		CreatedAt:   s.CreatedAt,
	}
}

func sessionFromModel(m SessionModel) domain.Session {
	return domain.Session{
		ID:          m.ID,
		ChildID:     m.ChildID,
		VolunteerID: m.VolunteerID,
		Status:      domain.SessionStatus(m.Status),
		SessionType: m.SessionType,
		ScheduledAt: m.ScheduledAt,
		StartedAt:   m.StartedAt,
		EndedAt:     m.EndedAt,
		CreatedAt:   m.CreatedAt,
	}
}

func summaryToModel(s domain.SessionSummary) SessionSummaryModel {
	return SessionSummaryModel{
		ID:                 s.ID,
		SessionID:          s.SessionID,
		Summary:            s.Summary,
		Effectiveness:      s.Effectiveness,
		FollowUpNotes:      s.FollowUpNotes,
		NewConcernIDs:      stringsToJSON(s.NewConcernIDs),
		ResolvedConcernIDs: stringsToJSON(s.ResolvedConcernIDs),
		NextSessionDate:    s.NextSessionDate,
		NextSessionPlan:    s.NextSessionPlan,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func summaryFromModel(m SessionSummaryModel) domain.SessionSummary {
	return domain.SessionSummary{
		ID:                 m.ID,
		SessionID:          m.SessionID,
		Summary:            m.Summary,
		Effectiveness:      m.Effectiveness,
		FollowUpNotes:      m.FollowUpNotes,
		NewConcernIDs:      stringsFromJSON(m.NewConcernIDs),
		ResolvedConcernIDs: stringsFromJSON(m.ResolvedConcernIDs),
		NextSessionDate:    m.NextSessionDate,
		NextSessionPlan:    m.NextSessionPlan,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:            c.ID,
		ChildID:       c.ChildID,
		VolunteerID:   c.VolunteerID,
		SessionID:     c.SessionID,
		Name:          c.Name,
		IsActive:      c.IsActive,
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:            m.ID,
		ChildID:       m.ChildID,
		VolunteerID:   m.VolunteerID,
		SessionID:     m.SessionID,
		Name:          m.Name,
		IsActive:      m.IsActive,
		LastMessageAt: m.LastMessageAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func messageToModel(msg domain.ChatMessage) (ChatMessageModel, error) {
	model := ChatMessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           string(msg.Role),
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
	if msg.RAGContext != nil {
		raw, err := json.Marshal(msg.RAGContext)
		if err != nil {
			return ChatMessageModel{}, fmt.Errorf("marshal rag context: %w", err)
		}
		model.RAGContext = datatypes.JSON(raw)
	}
	if msg.Metadata != nil {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			return ChatMessageModel{}, fmt.Errorf("marshal message metadata: %w", err)
		}
		model.Metadata = datatypes.JSON(raw)
	}
	return model, nil
}

func messageFromModel(m ChatMessageModel) (domain.ChatMessage, error) {
	msg := domain.ChatMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           domain.MessageRole(m.Role),
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
	if len(m.RAGContext) > 0 {
		var ctx domain.RAGContext
		if err := json.Unmarshal(m.RAGContext, &ctx); err != nil {
			return domain.ChatMessage{}, fmt.Errorf("unmarshal rag context: %w", err)
		}
		msg.RAGContext = &ctx
	}
	if len(m.Metadata) > 0 {
		var meta domain.MessageMetadata
		if err := json.Unmarshal(m.Metadata, &meta); err != nil {
			return domain.ChatMessage{}, fmt.Errorf("unmarshal message metadata: %w", err)
		}
		msg.Metadata = &meta
	}
	return msg, nil
}

func memoryToModel(m domain.ConversationMemory) ConversationMemoryModel {
	return ConversationMemoryModel{
		ID:          m.ID,
		ChildID:     m.ChildID,
		VolunteerID: m.VolunteerID,
		SessionID:   m.SessionID,
		Type:        string(m.Type),
		Content:     m.Content,
		Importance:  m.Importance,
		Tags:        stringsToJSON(m.Tags),
		CreatedAt:   m.CreatedAt,
	}
}

func memoryFromModel(m ConversationMemoryModel) domain.ConversationMemory {
	return domain.ConversationMemory{
		ID:          m.ID,
		ChildID:     m.ChildID,
		VolunteerID: m.VolunteerID,
		SessionID:   m.SessionID,
		Type:        domain.MemoryType(m.Type),
		Content:     m.Content,
		Importance:  m.Importance,
		Tags:        stringsFromJSON(m.Tags),
		CreatedAt:   m.CreatedAt,
	}
}

func assignmentFromModel(m AssignmentModel) domain.Assignment {
	return domain.Assignment{
		ID:          m.ID,
		ChildID:     m.ChildID,
		VolunteerID: m.VolunteerID,
		IsActive:    m.IsActive,
		AssignedAt:  m.AssignedAt,
	}
}

func chunkToModel(c domain.KnowledgeChunk) (KnowledgeChunkModel, error) {
	model := KnowledgeChunkModel{
		ID:        c.ID,
		Content:   c.Content,
		Source:    c.Source,
		CreatedAt: c.CreatedAt,
	}
	if len(c.Metadata) > 0 {
		raw, err := json.Marshal(c.Metadata)
		if err != nil {
			return KnowledgeChunkModel{}, fmt.Errorf("marshal chunk metadata: %w", err)
		}
		model.Metadata = datatypes.JSON(raw)
	}
	return model, nil
}

func chunkFromModel(m KnowledgeChunkModel) (domain.KnowledgeChunk, error) {
	chunk := domain.KnowledgeChunk{
		ID:        m.ID,
		Content:   m.Content,
		Source:    m.Source,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &chunk.Metadata); err != nil {
			return domain.KnowledgeChunk{}, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
	}
	return chunk, nil
}

func stringsToJSON(values []string) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func stringsFromJSON(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
