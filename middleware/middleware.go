// Package middleware provides HTTP authorization middleware for steward.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/steward"
	"github.com/xraph/steward/permission"
)

// Require enforces a permission. The actor comes from the request context
// (steward actor > Forge user ID > anonymous) and the instance from the
// named path parameter. An empty instanceParam checks a domain-wide grant.
func Require(eng *steward.Engine, domainID, action, instanceParam string) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			instanceID := ""
			if instanceParam != "" {
				instanceID = ctx.Param(instanceParam)
			}
			if err := eng.Enforce(ctx.Context(), resolveActor(ctx), domainID, instanceID, action); err != nil {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireSystem enforces a system-domain action such as manageSystem.
func RequireSystem(eng *steward.Engine, action string) forge.Middleware {
	return Require(eng, permission.SystemDomainID, action, "")
}

// RequireSuperPrivileges allows the request only for actors holding
// manageSystem while super-privileged mode is on.
func RequireSuperPrivileges(eng *steward.Engine) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			ok, err := eng.SuperPrivileges().HasSuperPrivileges(ctx.Context(), resolveActor(ctx))
			if err != nil || !ok {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// resolveActor extracts the actor from context.
// Priority: steward actor → Forge user ID (from Authsome) → anonymous.
func resolveActor(ctx forge.Context) steward.Actor {
	if a := steward.ActorFromContext(ctx.Context()); !a.IsAnonymous() {
		return a
	}
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return steward.Actor{UserID: userID, Name: userID}
	}
	return steward.Actor{}
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(http.StatusForbidden)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
