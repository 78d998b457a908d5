package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/steward"
	"github.com/xraph/steward/id"
	"github.com/xraph/steward/organization"
	"github.com/xraph/steward/permission"
)

func (a *API) registerOrganizationRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("organizations"))

	if err := g.POST("/organizations", a.createOrganization,
		forge.WithSummary("Create organization"),
		forge.WithDescription("Creates a root organization, or a suborganization when parent is set. The caller becomes its first member with every organization action."),
		forge.WithOperationID("createOrganization"),
		forge.WithRequestSchema(CreateOrganizationRequest{}),
		forge.WithCreatedResponse(&organization.Organization{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/organizations", a.listOrganizations,
		forge.WithSummary("List organizations by member"),
		forge.WithDescription("Returns the organizations a user belongs to. Defaults to the caller."),
		forge.WithOperationID("listOrganizations"),
		forge.WithRequestSchema(ListOrganizationsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Organization list", ListResponse[*organization.Organization]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/organizations/find", a.findOrganization,
		forge.WithSummary("Find organization"),
		forge.WithDescription("Looks up an organization by qualified name."),
		forge.WithOperationID("findOrganization"),
		forge.WithRequestSchema(FindOrganizationRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Organization details", &organization.Organization{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/organizations/:orgId", a.getOrganization,
		forge.WithSummary("Get organization"),
		forge.WithOperationID("getOrganization"),
		forge.WithResponseSchema(http.StatusOK, "Organization details", &organization.Organization{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/organizations/:orgId", a.updateOrganization,
		forge.WithSummary("Rename organization"),
		forge.WithDescription("Renames an organization and rewrites the qualified names of its descendants."),
		forge.WithOperationID("updateOrganization"),
		forge.WithRequestSchema(UpdateOrganizationRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated organization", &organization.Organization{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/organizations/:orgId", a.removeOrganization,
		forge.WithSummary("Remove organization"),
		forge.WithDescription("Removes an organization together with all of its suborganizations and memberships."),
		forge.WithOperationID("removeOrganization"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/organizations/:orgId/children", a.listChildren,
		forge.WithSummary("List child organizations"),
		forge.WithOperationID("listChildOrganizations"),
		forge.WithRequestSchema(ListChildrenRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Organization list", ListResponse[*organization.Organization]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createOrganization(ctx forge.Context, req *CreateOrganizationRequest) (*organization.Organization, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	actor := actorFrom(ctx)
	if actor.IsAnonymous() {
		return nil, forge.Forbidden("authentication required")
	}

	o := &organization.Organization{Name: req.Name}
	if req.Parent != "" {
		parentID, err := id.ParseOrganizationID(req.Parent)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid parent ID: %v", err))
		}
		if err := a.eng.Enforce(ctx.Context(), actor, organization.DomainID, parentID.String(), organization.ActionManageSuborganizations); err != nil {
			return nil, fail(err)
		}
		o.ParentID = &parentID
	}

	created, err := a.eng.Organizations().Create(ctx.Context(), actor, o)
	if err != nil {
		return nil, fail(err)
	}

	return created, ctx.JSON(http.StatusCreated, created)
}

func (a *API) getOrganization(ctx forge.Context, _ *GetOrganizationRequest) (*organization.Organization, error) {
	o, err := a.organizationParam(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.authorizeOrganization(ctx.Context(), actorFrom(ctx), o, ""); err != nil {
		return nil, fail(err)
	}
	return o, ctx.JSON(http.StatusOK, o)
}

func (a *API) findOrganization(ctx forge.Context, req *FindOrganizationRequest) (*organization.Organization, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}
	o, err := a.eng.Organizations().GetByName(ctx.Context(), req.Name)
	if err != nil {
		return nil, fail(err)
	}
	if err := a.authorizeOrganization(ctx.Context(), actorFrom(ctx), o, ""); err != nil {
		return nil, fail(err)
	}
	return o, ctx.JSON(http.StatusOK, o)
}

func (a *API) updateOrganization(ctx forge.Context, req *UpdateOrganizationRequest) (*organization.Organization, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	o, err := a.organizationParam(ctx)
	if err != nil {
		return nil, err
	}
	actor := actorFrom(ctx)
	if err := a.authorizeOrganization(ctx.Context(), actor, o, organization.ActionUpdate); err != nil {
		return nil, fail(err)
	}

	updated, err := a.eng.Organizations().Update(ctx.Context(), actor, o.ID, &organization.Organization{Name: req.Name})
	if err != nil {
		return nil, fail(err)
	}

	return updated, ctx.JSON(http.StatusOK, updated)
}

func (a *API) removeOrganization(ctx forge.Context, _ *GetOrganizationRequest) (*struct{}, error) {
	o, err := a.organizationParam(ctx)
	if err != nil {
		return nil, err
	}
	actor := actorFrom(ctx)
	if err := a.authorizeOrganization(ctx.Context(), actor, o, organization.ActionDelete); err != nil {
		return nil, fail(err)
	}

	if err := a.eng.Organizations().Remove(ctx.Context(), actor, o.ID); err != nil {
		return nil, fail(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listOrganizations(ctx forge.Context, req *ListOrganizationsRequest) (*ListResponse[*organization.Organization], error) {
	actor := actorFrom(ctx)
	if actor.IsAnonymous() {
		return nil, forge.Forbidden("authentication required")
	}

	userID := req.User
	if userID == "" {
		userID = actor.UserID
	}
	if userID != actor.UserID {
		if err := a.eng.Enforce(ctx.Context(), actor, permission.SystemDomainID, "", permission.ManageSystem); err != nil {
			return nil, fail(err)
		}
	}

	pg, err := a.eng.Organizations().GetByMember(ctx.Context(), userID, defaultLimit(req.Limit), int64(req.Offset))
	if err != nil {
		return nil, fail(err)
	}

	resp := listResponse(pg)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) listChildren(ctx forge.Context, req *ListChildrenRequest) (*ListResponse[*organization.Organization], error) {
	o, err := a.organizationParam(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.authorizeOrganization(ctx.Context(), actorFrom(ctx), o, ""); err != nil {
		return nil, fail(err)
	}

	pg, err := a.eng.Organizations().GetByParent(ctx.Context(), o.ID, defaultLimit(req.Limit), int64(req.Offset))
	if err != nil {
		return nil, fail(err)
	}

	resp := listResponse(pg)
	return resp, ctx.JSON(http.StatusOK, resp)
}

// organizationParam loads the organization named by the orgId path segment.
func (a *API) organizationParam(ctx forge.Context) (*organization.Organization, error) {
	orgID, err := id.ParseOrganizationID(ctx.Param("orgId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid organization ID: %v", err))
	}
	o, err := a.eng.Organizations().GetByID(ctx.Context(), orgID)
	if err != nil {
		return nil, fail(err)
	}
	return o, nil
}

// authorizeOrganization allows the actor when it holds action on the
// organization, manageSuborganizations on its parent, or manageSystem. An
// empty action asks for membership of any kind.
func (a *API) authorizeOrganization(ctx context.Context, actor steward.Actor, o *organization.Organization, action string) error {
	if actor.IsAnonymous() {
		return fmt.Errorf("%w: authentication required", steward.ErrAccessDenied)
	}

	ok, err := a.holds(ctx, actor, o.ID.String(), action)
	if err != nil || ok {
		return err
	}
	if !o.IsRoot() {
		ok, err = a.eng.Can(ctx, actor, organization.DomainID, o.ParentID.String(), organization.ActionManageSuborganizations)
		if err != nil || ok {
			return err
		}
	}
	ok, err = a.eng.Can(ctx, actor, permission.SystemDomainID, "", permission.ManageSystem)
	if err != nil || ok {
		return err
	}
	return fmt.Errorf("%w: organization %s", steward.ErrAccessDenied, o.QualifiedName)
}

func (a *API) holds(ctx context.Context, actor steward.Actor, orgID, action string) (bool, error) {
	if action != "" {
		return a.eng.Can(ctx, actor, organization.DomainID, orgID, action)
	}
	_, err := a.eng.Permissions().Get(ctx, actor.UserID, organization.DomainID, orgID)
	if errors.Is(err, steward.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
