package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"careline/pkg/domain"
)

// SessionInput starts a counseling session for a child.
type SessionInput struct {
	ChildID     string  `json:"childId"`
	SessionType string  `json:"sessionType"`
	ScheduledAt *string `json:"scheduledAt"` // RFC 3339
}

// SummaryInput upserts the 1:1 summary of a session. IsDraft=false finalizes
// the parent session.
type SummaryInput struct {
	SessionID          string   `json:"sessionId"`
	Summary            string   `json:"summary"`
	Effectiveness      int      `json:"effectiveness"`
	FollowUpNotes      string   `json:"followUpNotes"`
	NewConcernIDs      []string `json:"newConcernIds"`
	ResolvedConcernIDs []string `json:"resolvedConcernIds"`
	NextSessionDate    *string  `json:"nextSessionDate"` // RFC 3339
	NextSessionPlan    string   `json:"nextSessionPlan"`
	IsDraft            bool     `json:"isDraft"`
}

// StartSession creates a session for a child. A scheduled time in the future
// leaves the session PLANNED; otherwise it starts IN_PROGRESS immediately.
func (a *App) StartSession(ctx context.Context, user domain.User, input SessionInput) (domain.Session, error) {
	childID := strings.TrimSpace(input.ChildID)
	if childID == "" {
		return domain.Session{}, NewValidationError("childId", "childId is required")
	}
	if _, ok, err := a.store.GetChild(childID); err != nil {
		return domain.Session{}, fmt.Errorf("load child: %w", err)
	} else if !ok {
		return domain.Session{}, fmt.Errorf("child %s: %w", childID, ErrNotFound)
	}

	now := time.Now().UTC()
	session := domain.Session{
		ID:          uuid.NewString(),
		ChildID:     childID,
		VolunteerID: user.ID,
		SessionType: strings.TrimSpace(input.SessionType),
		CreatedAt:   now,
	}
	if input.ScheduledAt != nil && strings.TrimSpace(*input.ScheduledAt) != "" {
		scheduled, err := time.Parse(time.RFC3339, strings.TrimSpace(*input.ScheduledAt))
		if err != nil {
			return domain.Session{}, NewValidationError("scheduledAt", "scheduledAt must be RFC 3339")
		}
		utc := scheduled.UTC()
		session.ScheduledAt = &utc
	}
	if session.ScheduledAt != nil && session.ScheduledAt.After(now) {
		session.Status = domain.SessionPlanned
	} else {
		session.Status = domain.SessionInProgress
		started := now
		session.StartedAt = &started
	}
	if err := a.store.CreateSession(session); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	if _, err := a.store.EnsureAssignment(childID, user.ID); err != nil {
		return domain.Session{}, fmt.Errorf("ensure assignment: %w", err)
	}
	return session, nil
}

// ListSessions returns recent sessions for a child.
func (a *App) ListSessions(childID string) ([]domain.Session, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, NewValidationError("childId", "childId is required")
	}
	return a.store.ListSessionsByChild(childID, 0)
}

// ListAssignments returns a child's volunteer assignments.
func (a *App) ListAssignments(childID string) ([]domain.Assignment, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, NewValidationError("childId", "childId is required")
	}
	return a.store.ListAssignmentsByChild(childID)
}

// SaveSessionSummary upserts the summary for a session. When not a draft the
// parent session transitions to COMPLETED with endedAt stamped. The child's
// cached context is evicted either way.
func (a *App) SaveSessionSummary(ctx context.Context, user domain.User, input SummaryInput) (domain.SessionSummary, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	errs := map[string]string{}
	if sessionID == "" {
		errs["sessionId"] = "sessionId is required"
	}
	if strings.TrimSpace(input.Summary) == "" {
		errs["summary"] = "summary is required"
	}
	if input.Effectiveness < 0 || input.Effectiveness > 10 {
		errs["effectiveness"] = "effectiveness must be between 0 and 10"
	}
	if len(errs) > 0 {
		return domain.SessionSummary{}, &ValidationError{Fields: errs}
	}

	session, ok, err := a.store.GetSession(sessionID)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return domain.SessionSummary{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	now := time.Now().UTC()
	summary := domain.SessionSummary{
		ID:                 uuid.NewString(),
		SessionID:          session.ID,
		Summary:            strings.TrimSpace(input.Summary),
		Effectiveness:      input.Effectiveness,
		FollowUpNotes:      strings.TrimSpace(input.FollowUpNotes),
		NewConcernIDs:      trimAll(input.NewConcernIDs),
		ResolvedConcernIDs: trimAll(input.ResolvedConcernIDs),
		NextSessionPlan:    strings.TrimSpace(input.NextSessionPlan),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if input.NextSessionDate != nil && strings.TrimSpace(*input.NextSessionDate) != "" {
		next, err := time.Parse(time.RFC3339, strings.TrimSpace(*input.NextSessionDate))
		if err != nil {
			return domain.SessionSummary{}, NewValidationError("nextSessionDate", "nextSessionDate must be RFC 3339")
		}
		utc := next.UTC()
		summary.NextSessionDate = &utc
	}
	if existing, found, err := a.store.GetSessionSummary(session.ID); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("load summary: %w", err)
	} else if found {
		summary.ID = existing.ID
		summary.CreatedAt = existing.CreatedAt
	}
	if err := a.store.UpsertSessionSummary(summary); err != nil {
		return domain.SessionSummary{}, fmt.Errorf("save summary: %w", err)
	}

	if !input.IsDraft {
		endedAt := now
		if err := a.store.UpdateSessionStatus(session.ID, domain.SessionCompleted, &endedAt); err != nil {
			return domain.SessionSummary{}, fmt.Errorf("complete session: %w", err)
		}
	}

	a.InvalidateContext(ctx, session.ChildID)
	return summary, nil
}

// GetSessionSummary returns the summary for a session.
func (a *App) GetSessionSummary(sessionID string) (domain.SessionSummary, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.SessionSummary{}, NewValidationError("sessionId", "sessionId is required")
	}
	summary, ok, err := a.store.GetSessionSummary(sessionID)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("load summary: %w", err)
	}
	if !ok {
		return domain.SessionSummary{}, fmt.Errorf("summary for session %s: %w", sessionID, ErrNotFound)
	}
	return summary, nil
}
