package main

import (
	"github.com/gin-gonic/gin"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/internal/auth"
	"github.com/MaxymChyncha/house-security-system/internal/property"
	"github.com/MaxymChyncha/house-security-system/internal/staff"
	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	"github.com/MaxymChyncha/house-security-system/pkg/middleware"
)

type routes struct {
	table        middleware.Authorizer
	verifier     middleware.TokenVerifier
	loginLimiter *middleware.IPRateLimiter
	authHandler  *auth.Handler
	staffHandler *staff.Handler
	propHandler  *property.Handler
	// auditHandler is nil when the audit log is disabled
	auditHandler *audit.Handler
}

// registerRoutes mounts the API. Every gated route runs RequireAuth, then
// RequireCapability, then the handler.
func registerRoutes(api *gin.RouterGroup, r routes) {
	can := func(resource access.Resource, action access.Action) gin.HandlerFunc {
		return middleware.RequireCapability(r.table, resource, action)
	}

	api.POST("/login", r.loginLimiter.Middleware(), r.authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.RequireAuth(r.verifier))

	authed.POST("/logout", r.authHandler.Logout)
	authed.GET("/me", r.staffHandler.Me)
	authed.GET("/capabilities", r.authHandler.Capabilities)

	authed.POST("/register", can(access.ResourceStaff, access.ActionCreate), r.staffHandler.Register)
	authed.GET("/staff", can(access.ResourceStaff, access.ActionList), r.staffHandler.List)
	authed.GET("/staff/:id", can(access.ResourceStaff, access.ActionRetrieve), r.staffHandler.Get)
	authed.PATCH("/staff/:id", can(access.ResourceStaff, access.ActionUpdate), r.staffHandler.Update)
	authed.DELETE("/staff/:id", can(access.ResourceStaff, access.ActionDelete), r.staffHandler.Delete)

	h := r.propHandler
	authed.GET("/buildings", can(access.ResourceBuilding, access.ActionList), h.ListBuildings)
	authed.POST("/buildings", can(access.ResourceBuilding, access.ActionCreate), h.CreateBuilding)
	authed.GET("/buildings/:id", can(access.ResourceBuilding, access.ActionRetrieve), h.GetBuilding)
	authed.PATCH("/buildings/:id", can(access.ResourceBuilding, access.ActionUpdate), h.UpdateBuilding)
	authed.DELETE("/buildings/:id", can(access.ResourceBuilding, access.ActionDelete), h.DeleteBuilding)

	authed.GET("/entrances", can(access.ResourceEntrance, access.ActionList), h.ListEntrances)
	authed.POST("/entrances", can(access.ResourceEntrance, access.ActionCreate), h.CreateEntrance)
	authed.GET("/entrances/:id", can(access.ResourceEntrance, access.ActionRetrieve), h.GetEntrance)
	authed.PATCH("/entrances/:id", can(access.ResourceEntrance, access.ActionUpdate), h.UpdateEntrance)
	authed.DELETE("/entrances/:id", can(access.ResourceEntrance, access.ActionDelete), h.DeleteEntrance)

	authed.GET("/apartments", can(access.ResourceApartment, access.ActionList), h.ListApartments)
	authed.POST("/apartments", can(access.ResourceApartment, access.ActionCreate), h.CreateApartment)
	authed.GET("/apartments/:id", can(access.ResourceApartment, access.ActionRetrieve), h.GetApartment)
	authed.PATCH("/apartments/:id", can(access.ResourceApartment, access.ActionUpdate), h.UpdateApartment)
	authed.DELETE("/apartments/:id", can(access.ResourceApartment, access.ActionDelete), h.DeleteApartment)

	if r.auditHandler != nil {
		authed.GET("/audit", can(access.ResourceAudit, access.ActionList), r.auditHandler.List)
	}
}
