package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"careline/pkg/domain"
)

const (
	minChildAge = 5
	maxChildAge = 20
)

// ChildInput carries the mutable fields of a child profile.
type ChildInput struct {
	FullName        string   `json:"fullName"`
	DateOfBirth     string   `json:"dateOfBirth"` // yyyy-mm-dd
	Gender          string   `json:"gender"`
	State           string   `json:"state"`
	District        string   `json:"district"`
	City            string   `json:"city"`
	Background      string   `json:"background"`
	EducationType   string   `json:"educationType"`
	GradeLevel      string   `json:"gradeLevel"`
	ContactNumber   string   `json:"contactNumber"`
	GuardianContact string   `json:"guardianContact"`
	Interests       []string `json:"interests"`
	ConcernNotes    []string `json:"concernNotes"`
	Language        string   `json:"language"`
}

// normalizeGender case-normalizes into {MALE, FEMALE}; anything else fails.
func normalizeGender(raw string) (domain.Gender, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "MALE":
		return domain.GenderMale, true
	case "FEMALE":
		return domain.GenderFemale, true
	default:
		return "", false
	}
}

func validateChildInput(input ChildInput, now time.Time) (domain.Child, *ValidationError) {
	errs := map[string]string{}
	child := domain.Child{}

	child.FullName = strings.TrimSpace(input.FullName)
	if child.FullName == "" {
		errs["fullName"] = "full name is required"
	}

	dob := strings.TrimSpace(input.DateOfBirth)
	if dob == "" {
		errs["dateOfBirth"] = "date of birth is required"
	} else if parsed, err := time.Parse("2006-01-02", dob); err != nil {
		errs["dateOfBirth"] = "date of birth must be yyyy-mm-dd"
	} else {
		child.DateOfBirth = parsed
		age := child.Age(now)
		if age < minChildAge || age > maxChildAge {
			errs["dateOfBirth"] = fmt.Sprintf("age must be between %d and %d", minChildAge, maxChildAge)
		}
	}

	if gender, ok := normalizeGender(input.Gender); ok {
		child.Gender = gender
	} else {
		errs["gender"] = "gender must be MALE or FEMALE"
	}

	child.State = strings.TrimSpace(input.State)
	if child.State == "" {
		errs["state"] = "state is required"
	}

	child.District = strings.TrimSpace(input.District)
	child.City = strings.TrimSpace(input.City)
	child.Background = strings.TrimSpace(input.Background)
	child.EducationType = strings.TrimSpace(input.EducationType)
	child.GradeLevel = strings.TrimSpace(input.GradeLevel)
	child.ContactNumber = strings.TrimSpace(input.ContactNumber)
	child.GuardianContact = strings.TrimSpace(input.GuardianContact)
	child.Interests = trimAll(input.Interests)
	child.ConcernNotes = trimAll(input.ConcernNotes)
	child.Language = strings.TrimSpace(input.Language)

	if len(errs) > 0 {
		return domain.Child{}, &ValidationError{Fields: errs}
	}
	return child, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CreateChild registers a new child profile. Admin only.
func (a *App) CreateChild(ctx context.Context, user domain.User, input ChildInput) (domain.Child, error) {
	if user.Role != domain.RoleAdmin {
		return domain.Child{}, ErrForbidden
	}
	child, verr := validateChildInput(input, time.Now())
	if verr != nil {
		return domain.Child{}, verr
	}
	now := time.Now().UTC()
	child.ID = uuid.NewString()
	child.IsActive = true
	child.CreatedAt = now
	child.UpdatedAt = now
	if err := a.store.CreateChild(child); err != nil {
		return domain.Child{}, fmt.Errorf("create child: %w", err)
	}
	return child, nil
}

// GetChild returns an active child profile.
func (a *App) GetChild(id string) (domain.Child, error) {
	child, ok, err := a.store.GetChild(strings.TrimSpace(id))
	if err != nil {
		return domain.Child{}, fmt.Errorf("load child: %w", err)
	}
	if !ok {
		return domain.Child{}, fmt.Errorf("child %s: %w", id, ErrNotFound)
	}
	return child, nil
}

// ListChildren returns active children.
func (a *App) ListChildren() ([]domain.Child, error) {
	return a.store.ListChildren(0)
}

// UpdateChild replaces mutable fields and evicts the child's cached context.
// Admin only.
func (a *App) UpdateChild(ctx context.Context, user domain.User, id string, input ChildInput) (domain.Child, error) {
	if user.Role != domain.RoleAdmin {
		return domain.Child{}, ErrForbidden
	}
	id = strings.TrimSpace(id)
	existing, ok, err := a.store.GetChild(id)
	if err != nil {
		return domain.Child{}, fmt.Errorf("load child: %w", err)
	}
	if !ok {
		return domain.Child{}, fmt.Errorf("child %s: %w", id, ErrNotFound)
	}
	child, verr := validateChildInput(input, time.Now())
	if verr != nil {
		return domain.Child{}, verr
	}
	child.ID = existing.ID
	child.IsActive = true
	child.CreatedAt = existing.CreatedAt
	child.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateChild(child); err != nil {
		return domain.Child{}, fmt.Errorf("update child: %w", err)
	}
	a.InvalidateContext(ctx, id)
	return child, nil
}

// DeleteChild soft-deletes a child profile and evicts its cached context.
// Admin only.
func (a *App) DeleteChild(ctx context.Context, user domain.User, id string) error {
	if user.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	id = strings.TrimSpace(id)
	_, ok, err := a.store.GetChild(id)
	if err != nil {
		return fmt.Errorf("load child: %w", err)
	}
	if !ok {
		return fmt.Errorf("child %s: %w", id, ErrNotFound)
	}
	if err := a.store.DeactivateChild(id); err != nil {
		return fmt.Errorf("deactivate child: %w", err)
	}
	a.InvalidateContext(ctx, id)
	return nil
}
