package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/steward/permission"
)

func (a *API) registerPermissionRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("permissions"))

	if err := g.GET("/permissions", a.listDomains,
		forge.WithSummary("List permissions domains"),
		forge.WithDescription("Returns the registered permissions domains, or the one named by ?domain."),
		forge.WithOperationID("listPermissionsDomains"),
		forge.WithRequestSchema(ListDomainsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Domains", []DomainResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/permissions", a.storePermission,
		forge.WithSummary("Store permission"),
		forge.WithDescription("Creates or replaces a user's grant on a domain instance. The caller needs setPermissions on the instance or super privileges for the domain."),
		forge.WithOperationID("storePermission"),
		forge.WithRequestSchema(StorePermissionRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/permissions/:domain", a.getOwnPermission,
		forge.WithSummary("Get own permission"),
		forge.WithDescription("Returns the caller's grant on a domain instance."),
		forge.WithOperationID("getOwnPermission"),
		forge.WithRequestSchema(GetPermissionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Permission", &permission.Permission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/permissions/:domain/all", a.listPermissions,
		forge.WithSummary("List instance permissions"),
		forge.WithDescription("Returns one page of the grants on a domain instance."),
		forge.WithOperationID("listInstancePermissions"),
		forge.WithRequestSchema(ListPermissionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Permission list", ListResponse[*permission.Permission]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/permissions/:domain", a.removePermission,
		forge.WithSummary("Remove permission"),
		forge.WithDescription("Removes a user's grant on a domain instance. The last setPermissions holder cannot be removed."),
		forge.WithOperationID("removePermission"),
		forge.WithRequestSchema(RemovePermissionRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) listDomains(ctx forge.Context, req *ListDomainsRequest) ([]DomainResponse, error) {
	if req.Domain != "" {
		d, err := a.eng.Permissions().Domain(req.Domain)
		if err != nil {
			return nil, fail(err)
		}
		resp := []DomainResponse{toDomainResponse(d)}
		return resp, ctx.JSON(http.StatusOK, resp)
	}

	domains := a.eng.Permissions().Domains()
	resp := make([]DomainResponse, len(domains))
	for i, d := range domains {
		resp[i] = toDomainResponse(d)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) storePermission(ctx forge.Context, req *StorePermissionRequest) (*struct{}, error) {
	if req.DomainID == "" || req.UserID == "" {
		return nil, forge.BadRequest("domain_id and user_id are required")
	}
	if len(req.Actions) == 0 {
		return nil, forge.BadRequest("actions cannot be empty")
	}

	actor := actorFrom(ctx)
	if err := a.eng.Enforce(ctx.Context(), actor, req.DomainID, req.InstanceID, permission.SetPermissions); err != nil {
		return nil, fail(err)
	}

	err := a.eng.Permissions().Store(ctx.Context(), actor, &permission.Permission{
		UserID:     req.UserID,
		DomainID:   req.DomainID,
		InstanceID: req.InstanceID,
		Actions:    req.Actions,
	})
	if err != nil {
		return nil, fail(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) getOwnPermission(ctx forge.Context, req *GetPermissionRequest) (*permission.Permission, error) {
	actor := actorFrom(ctx)
	if actor.IsAnonymous() {
		return nil, forge.Forbidden("authentication required")
	}

	p, err := a.eng.Permissions().Get(ctx.Context(), actor.UserID, ctx.Param("domain"), req.Instance)
	if err != nil {
		return nil, fail(err)
	}

	return p, ctx.JSON(http.StatusOK, p)
}

func (a *API) listPermissions(ctx forge.Context, req *ListPermissionsRequest) (*ListResponse[*permission.Permission], error) {
	domainID := ctx.Param("domain")
	if err := a.eng.Enforce(ctx.Context(), actorFrom(ctx), domainID, req.Instance, permission.SetPermissions); err != nil {
		return nil, fail(err)
	}

	pg, err := a.eng.Permissions().GetByInstance(ctx.Context(), domainID, req.Instance, defaultLimit(req.Limit), int64(req.Offset))
	if err != nil {
		return nil, fail(err)
	}

	resp := listResponse(pg)
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) removePermission(ctx forge.Context, req *RemovePermissionRequest) (*struct{}, error) {
	if req.User == "" {
		return nil, forge.BadRequest("user is required")
	}

	domainID := ctx.Param("domain")
	actor := actorFrom(ctx)
	if err := a.eng.Enforce(ctx.Context(), actor, domainID, req.Instance, permission.SetPermissions); err != nil {
		return nil, fail(err)
	}

	if err := a.eng.Permissions().Remove(ctx.Context(), actor, req.User, domainID, req.Instance); err != nil {
		return nil, fail(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func toDomainResponse(d *permission.Domain) DomainResponse {
	return DomainResponse{
		ID:               d.ID(),
		AllowedActions:   d.AllowedActions(),
		InstanceRequired: d.InstanceRequired(),
	}
}
