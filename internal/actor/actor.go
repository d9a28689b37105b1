// Package actor describes who is calling the engine. Every engine operation takes an
// Actor explicitly; nothing reads identity from ambient state.
package actor

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

type Actor struct {
	ID   uuid.UUID
	Name string
	Role Role
}

func (a Actor) IsSuperadmin() bool { return a.Role == RoleSuperadmin }

// IsStaff reports whether the actor is an admin of any kind.
func (a Actor) IsStaff() bool { return a.Role == RoleAdmin || a.Role == RoleSuperadmin }

// Anonymous is the zero actor used by public read paths.
var Anonymous = Actor{}

const localsKey = "actor"

// Set stores the resolved actor on the request.
func Set(c *fiber.Ctx, a Actor) {
	c.Locals(localsKey, a)
}

// FromCtx extracts the actor stored by the auth middleware.
func FromCtx(c *fiber.Ctx) (Actor, error) {
	a, ok := c.Locals(localsKey).(Actor)
	if !ok || a.ID == uuid.Nil {
		return Actor{}, errors.New("no authenticated actor in context")
	}
	return a, nil
}
