package app

import (
	"fmt"
	"strings"
	"time"

	"careline/internal/usertoken"
	"careline/pkg/domain"
)

// ResolveUser maps a verified token identity onto a local user record,
// creating or refreshing it. Unknown roles default to VOLUNTEER.
func (a *App) ResolveUser(identity usertoken.Identity) (domain.User, error) {
	role := domain.UserRole(strings.ToUpper(strings.TrimSpace(identity.Role)))
	if role != domain.RoleAdmin && role != domain.RoleVolunteer {
		role = domain.RoleVolunteer
	}
	user := domain.User{
		ID:        identity.Subject,
		Email:     identity.Email,
		FullName:  identity.FullName,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	// The upsert keeps the original created_at; read the row back so callers
	// see the stored record, not the request-time stamp.
	stored, ok, err := a.store.GetUserByID(user.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return user, nil
	}
	return stored, nil
}
