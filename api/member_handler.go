package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
)

func (a *API) registerMemberRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("members"))

	if err := g.GET("/organizations/:orgId/members", a.listMembers,
		forge.WithSummary("List members"),
		forge.WithOperationID("listOrganizationMembers"),
		forge.WithRequestSchema(ListMembersRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Member list", ListResponse[*organization.Member]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/organizations/:orgId/members", a.setMember,
		forge.WithSummary("Set member"),
		forge.WithDescription("Adds a user to the organization or replaces the member's actions."),
		forge.WithOperationID("setOrganizationMember"),
		forge.WithRequestSchema(SetMemberRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/organizations/:orgId/members/:userId", a.removeMember,
		forge.WithSummary("Remove member"),
		forge.WithDescription("Removes a member. Members may remove themselves."),
		forge.WithOperationID("removeOrganizationMember"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) listMembers(ctx forge.Context, req *ListMembersRequest) (*ListResponse[*organization.Member], error) {
	o, err := a.organizationParam(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.authorizeOrganization(ctx.Context(), actorFrom(ctx), o, ""); err != nil {
		return nil, fail(err)
	}

	pg, err := a.eng.Organizations().GetMembers(ctx.Context(), o.ID, defaultLimit(req.Limit), int64(req.Offset))
	if err != nil {
		return nil, fail(err)
	}

	resp := listResponse(pg)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) setMember(ctx forge.Context, req *SetMemberRequest) (*struct{}, error) {
	if req.UserID == "" {
		return nil, forge.BadRequest("user_id is required")
	}
	if len(req.Actions) == 0 {
		return nil, forge.BadRequest("actions cannot be empty")
	}

	o, err := a.organizationParam(ctx)
	if err != nil {
		return nil, err
	}
	actor := actorFrom(ctx)
	if err := a.eng.Enforce(ctx.Context(), actor, organization.DomainID, o.ID.String(), permission.SetPermissions); err != nil {
		return nil, fail(err)
	}

	if err := a.eng.Organizations().SetMember(ctx.Context(), actor, o.ID, req.UserID, req.Actions); err != nil {
		return nil, fail(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) removeMember(ctx forge.Context, _ *RemoveMemberRequest) (*struct{}, error) {
	o, err := a.organizationParam(ctx)
	if err != nil {
		return nil, err
	}
	userID := ctx.Param("userId")
	actor := actorFrom(ctx)
	if actor.IsAnonymous() || actor.UserID != userID {
		if err := a.eng.Enforce(ctx.Context(), actor, organization.DomainID, o.ID.String(), permission.SetPermissions); err != nil {
			return nil, fail(err)
		}
	}

	if err := a.eng.Organizations().RemoveMember(ctx.Context(), actor, o.ID, userID); err != nil {
		return nil, fail(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}
