// Package disposition decides who is responsible for a report. Resolution is a pure
// function of the category's current state; nothing is cached or stored on the report.
package disposition

import (
	"github.com/google/uuid"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/apperr"
)

// AdminIdentity is either a concrete admin or the superadmin sentinel.
type AdminIdentity struct {
	ID         uuid.UUID
	Superadmin bool
}

// Superadmin handles reports whose category has no responsible admin.
var Superadmin = AdminIdentity{Superadmin: true}

// Resolve maps a category's responsible admin (nil when the report has no
// category or the category is unassigned) to the party handling the report.
func Resolve(responsibleAdminID *uuid.UUID) AdminIdentity {
	if responsibleAdminID == nil || *responsibleAdminID == uuid.Nil {
		return Superadmin
	}
	return AdminIdentity{ID: *responsibleAdminID}
}

// Ptr returns the admin id for snapshotting, nil for the sentinel.
func (a AdminIdentity) Ptr() *uuid.UUID {
	if a.Superadmin {
		return nil
	}
	id := a.ID
	return &id
}

// Authorize allows superadmins everywhere and admins on reports resolved to them.
func Authorize(a actor.Actor, resolved AdminIdentity) error {
	if a.IsSuperadmin() {
		return nil
	}
	if a.Role == actor.RoleAdmin && !resolved.Superadmin && resolved.ID == a.ID {
		return nil
	}
	return apperr.ErrUnauthorized
}

// SingleAdmin enforces one responsible admin per category at the boundary.
// An empty list unassigns the category.
func SingleAdmin(adminIDs []uuid.UUID) (*uuid.UUID, error) {
	switch len(adminIDs) {
	case 0:
		return nil, nil
	case 1:
		if adminIDs[0] == uuid.Nil {
			return nil, nil
		}
		id := adminIDs[0]
		return &id, nil
	}
	return nil, apperr.Invalid("admin_ids", "a category has at most one responsible admin")
}
