package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"careline/pkg/domain"
)

// ConcernInput creates a concern for a child.
type ConcernInput struct {
	ChildID     string `json:"childId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
}

// ConcernUpdate patches a concern. Nil fields are left unchanged.
type ConcernUpdate struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Severity    *string `json:"severity"`
	Status      *string `json:"status"`
}

var concernCategories = map[domain.ConcernCategory]bool{
	domain.CategoryAcademic:   true,
	domain.CategoryFamily:     true,
	domain.CategoryEmotional:  true,
	domain.CategoryBehavioral: true,
	domain.CategoryHealth:     true,
	domain.CategorySocial:     true,
	domain.CategoryOther:      true,
}

var concernSeverities = map[domain.ConcernSeverity]bool{
	domain.SeverityLow:      true,
	domain.SeverityMedium:   true,
	domain.SeverityHigh:     true,
	domain.SeverityCritical: true,
}

var concernStatuses = map[domain.ConcernStatus]bool{
	domain.ConcernOpen:       true,
	domain.ConcernInProgress: true,
	domain.ConcernResolved:   true,
}

// CreateConcern records a new concern and evicts the child's cached context.
func (a *App) CreateConcern(ctx context.Context, user domain.User, input ConcernInput) (domain.Concern, error) {
	errs := map[string]string{}
	childID := strings.TrimSpace(input.ChildID)
	if childID == "" {
		errs["childId"] = "childId is required"
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		errs["title"] = "title is required"
	}
	category := domain.ConcernCategory(strings.ToUpper(strings.TrimSpace(input.Category)))
	if !concernCategories[category] {
		errs["category"] = "unknown category"
	}
	severity := domain.ConcernSeverity(strings.ToUpper(strings.TrimSpace(input.Severity)))
	if !concernSeverities[severity] {
		errs["severity"] = "unknown severity"
	}
	if len(errs) > 0 {
		return domain.Concern{}, &ValidationError{Fields: errs}
	}

	if _, ok, err := a.store.GetChild(childID); err != nil {
		return domain.Concern{}, fmt.Errorf("load child: %w", err)
	} else if !ok {
		return domain.Concern{}, fmt.Errorf("child %s: %w", childID, ErrNotFound)
	}

	concern := domain.Concern{
		ID:           uuid.NewString(),
		ChildID:      childID,
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Category:     category,
		Severity:     severity,
		Status:       domain.ConcernOpen,
		IdentifiedAt: time.Now().UTC(),
	}
	if err := a.store.CreateConcern(concern); err != nil {
		return domain.Concern{}, fmt.Errorf("create concern: %w", err)
	}
	a.InvalidateContext(ctx, childID)
	return concern, nil
}

// ListConcerns returns a child's concerns, optionally filtered by status.
func (a *App) ListConcerns(childID, status string) ([]domain.Concern, error) {
	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, NewValidationError("childId", "childId is required")
	}
	var filter domain.ConcernStatus
	if s := strings.ToUpper(strings.TrimSpace(status)); s != "" {
		filter = domain.ConcernStatus(s)
		if !concernStatuses[filter] {
			return nil, NewValidationError("status", "unknown status")
		}
	}
	return a.store.ListConcernsByChild(childID, filter)
}

// UpdateConcern patches a concern. A transition to RESOLVED stamps
// resolvedAt; resolving is one-way, there is no reopen path. The child's
// cached context is evicted on every change.
func (a *App) UpdateConcern(ctx context.Context, user domain.User, id string, update ConcernUpdate) (domain.Concern, error) {
	id = strings.TrimSpace(id)
	concern, ok, err := a.store.GetConcern(id)
	if err != nil {
		return domain.Concern{}, fmt.Errorf("load concern: %w", err)
	}
	if !ok {
		return domain.Concern{}, fmt.Errorf("concern %s: %w", id, ErrNotFound)
	}

	errs := map[string]string{}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			errs["title"] = "title cannot be empty"
		} else {
			concern.Title = title
		}
	}
	if update.Description != nil {
		concern.Description = strings.TrimSpace(*update.Description)
	}
	if update.Category != nil {
		category := domain.ConcernCategory(strings.ToUpper(strings.TrimSpace(*update.Category)))
		if !concernCategories[category] {
			errs["category"] = "unknown category"
		} else {
			concern.Category = category
		}
	}
	if update.Severity != nil {
		severity := domain.ConcernSeverity(strings.ToUpper(strings.TrimSpace(*update.Severity)))
		if !concernSeverities[severity] {
			errs["severity"] = "unknown severity"
		} else {
			concern.Severity = severity
		}
	}
	if update.Status != nil {
		status := domain.ConcernStatus(strings.ToUpper(strings.TrimSpace(*update.Status)))
		switch {
		case !concernStatuses[status]:
			errs["status"] = "unknown status"
		case concern.Status == domain.ConcernResolved && status != domain.ConcernResolved:
			errs["status"] = "resolved concerns cannot be reopened"
		default:
			if status == domain.ConcernResolved && concern.Status != domain.ConcernResolved {
				resolvedAt := time.Now().UTC()
				concern.ResolvedAt = &resolvedAt
			}
			concern.Status = status
		}
	}
	if len(errs) > 0 {
		return domain.Concern{}, &ValidationError{Fields: errs}
	}

	if err := a.store.UpdateConcern(concern); err != nil {
		return domain.Concern{}, fmt.Errorf("update concern: %w", err)
	}
	a.InvalidateContext(ctx, concern.ChildID)
	return concern, nil
}
