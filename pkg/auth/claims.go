package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/freshlane/pkg/enums"
)

// Actor is the caller a verified token identifies.
type Actor struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// AccessTokenClaims is the JWT body issued by the marketplace auth service.
type AccessTokenClaims struct {
	ActorID uuid.UUID       `json:"actor_id"`
	Role    enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the caller identity carried by the claims.
func (c AccessTokenClaims) Actor() Actor {
	return Actor{ID: c.ActorID, Role: c.Role}
}

func newClaims(issuer string, actor Actor, now time.Time, ttl time.Duration) AccessTokenClaims {
	return AccessTokenClaims{
		ActorID: actor.ID,
		Role:    actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
}
