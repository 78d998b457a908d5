package api

import (
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/steward"
	"github.com/xraph/steward/page"
)

// fail maps engine errors to Forge HTTP errors.
func fail(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, steward.ErrNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, steward.ErrInvalidArgument):
		return forge.BadRequest(err.Error())
	case errors.Is(err, steward.ErrAccessDenied):
		return forge.Forbidden(err.Error())
	case errors.Is(err, steward.ErrConflict):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}

// actorFrom resolves the caller. An actor placed in the request context by
// an upstream layer wins over the Forge user id.
func actorFrom(ctx forge.Context) steward.Actor {
	if a := steward.ActorFromContext(ctx.Context()); !a.IsAnonymous() {
		return a
	}
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return steward.Actor{UserID: userID, Name: userID}
	}
	return steward.Actor{}
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func listResponse[T any](pg *page.Page[T]) *ListResponse[T] {
	return &ListResponse[T]{
		Items:  pg.Items,
		Total:  pg.TotalCount,
		Limit:  pg.MaxItems,
		Offset: int(pg.SkipCount),
	}
}
