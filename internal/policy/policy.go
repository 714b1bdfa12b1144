// Package policy implements the access policy guard: given a resolved
// account and an action on a resource, it either allows the operation or
// denies it with a reason that distinguishes wrong role from not-owner.
package policy

import (
	"github.com/campushub/campus-hub-api/internal/models"
	appErrors "github.com/campushub/campus-hub-api/pkg/errors"
)

// Action enumerates guarded operations.
type Action string

const (
	ActionSubmitComplaint       Action = "complaint:submit"
	ActionChangeComplaintStatus Action = "complaint:change-status"
	ActionEscalateComplaint     Action = "complaint:escalate"
	ActionRespondComplaint      Action = "complaint:respond"
	ActionRateComplaint         Action = "complaint:rate"
	ActionCreateAnnouncement    Action = "announcement:create"
	ActionEditAnnouncement      Action = "announcement:edit"
	ActionDeleteAnnouncement    Action = "announcement:delete"
	ActionDecideBooking         Action = "booking:decide"
)

// Actor is the requesting account as resolved from its credential.
type Actor struct {
	ID          string
	Role        models.UserRole
	Designation models.Designation
}

// Senior reports whether the actor is staff with HOD/Admin designation.
func (a Actor) Senior() bool {
	return a.Role == models.RoleStaff && a.Designation.IsSenior()
}

// Resource carries the ownership facts the guard needs. OwnerID is the
// creating account; AssigneeID is set for complaints with an assignee.
type Resource struct {
	OwnerID    string
	AssigneeID *string
}

// FromClaims builds an Actor from resolved JWT claims.
func FromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID, Role: claims.Role, Designation: claims.Designation}
}

// Check applies the policy table and returns nil on allow or a typed
// forbidden error carrying the denial reason.
func Check(actor Actor, action Action, res Resource) error {
	switch action {
	case ActionSubmitComplaint:
		if actor.Role != models.RoleStudent {
			return deny("only students may submit complaints")
		}
		return nil

	case ActionChangeComplaintStatus, ActionEscalateComplaint:
		if actor.Role != models.RoleStaff {
			return deny("only staff may manage complaints")
		}
		if actor.Senior() {
			return nil
		}
		if res.AssigneeID != nil && *res.AssigneeID != actor.ID {
			return deny("complaint is assigned to another staff member")
		}
		return nil

	case ActionRespondComplaint:
		if actor.Role == models.RoleStaff {
			return nil
		}
		if actor.ID == res.OwnerID {
			return nil
		}
		return deny("only the complainant or staff may respond")

	case ActionRateComplaint:
		if actor.Role != models.RoleStudent {
			return deny("only students may rate complaints")
		}
		if actor.ID != res.OwnerID {
			return deny("only the original complainant may rate")
		}
		return nil

	case ActionCreateAnnouncement:
		if actor.Role != models.RoleStaff {
			return deny("only staff may create announcements")
		}
		return nil

	case ActionEditAnnouncement, ActionDeleteAnnouncement:
		if actor.Senior() {
			return nil
		}
		if actor.ID == res.OwnerID {
			return nil
		}
		if actor.Role != models.RoleStaff {
			return deny("only staff may manage announcements")
		}
		return deny("only the author may modify this announcement")

	case ActionDecideBooking:
		if actor.Role != models.RoleStaff {
			return deny("only staff may decide bookings")
		}
		return nil
	}

	return deny("unknown action")
}

func deny(reason string) error {
	return appErrors.Clone(appErrors.ErrForbidden, reason)
}
