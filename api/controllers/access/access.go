// Package access holds the ownership rules shared by the controllers. Buyer
// and vendor actors are identified by their buyer or vendor id.
package access

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/api/middleware"
	"github.com/angelmondragon/freshlane/pkg/auth"
	"github.com/angelmondragon/freshlane/pkg/enums"
	pkgerrors "github.com/angelmondragon/freshlane/pkg/errors"
)

// Actor returns the authenticated caller or an Unauthorized error.
func Actor(r *http.Request) (auth.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok || actor.ID == uuid.Nil {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor missing from context")
	}
	return actor, nil
}

// CanView reports whether actor is a party to a buyer/vendor record.
func CanView(actor auth.Actor, buyerID, vendorID uuid.UUID) bool {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return true
	case enums.ActorRoleBuyer:
		return actor.ID == buyerID
	case enums.ActorRoleVendor:
		return actor.ID == vendorID
	}
	return false
}

// CanManage reports whether actor may fulfil or bill for a vendor's record.
func CanManage(actor auth.Actor, vendorID uuid.UUID) bool {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return true
	case enums.ActorRoleVendor:
		return actor.ID == vendorID
	}
	return false
}

// BuyerScope is the buyer id a cart operation must match; uuid.Nil for
// actors that may act on any cart.
func BuyerScope(actor auth.Actor) uuid.UUID {
	if actor.Role == enums.ActorRoleBuyer {
		return actor.ID
	}
	return uuid.Nil
}

// NotFound hides records the caller is not a party to.
func NotFound(resource string) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", resource)
}
