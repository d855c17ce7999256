package api

import (
	"net/http"

	"mspb-config/api/handlers"

	"github.com/go-chi/chi/v5"
)

func (s *Server) registerRoutes() {
	s.router.Use(s.requestMiddleware)

	authHandler := handlers.NewAuthHandler(s.cfg, s.tokens, s.identity, s.engine, s.handlerMetrics, s.logger)
	mfaHandler := handlers.NewMFAHandler(s.cfg, s.tokens, s.engine, s.handlerMetrics, s.logger)
	configHandler := handlers.NewConfigHandler(s.cfg, s.overrides, s.specs, s.hier, s.handlerMetrics, s.logger)
	adminHandler := handlers.NewAdminHandler(s.cfg, s.specs, s.handlerMetrics, s.logger)
	directoryHandler := handlers.NewDirectoryHandler(s.users, s.logger)

	// Gate chains, least to most privileged. Writes accept either config
	// admin role; the metadata pages are employee-only.
	session := func(h http.HandlerFunc) http.HandlerFunc {
		return s.guard(h, s.authenticated)
	}
	read := func(h http.HandlerFunc) http.HandlerFunc {
		return s.guard(h, s.authenticated, s.mfaVerified)
	}
	write := func(h http.HandlerFunc) http.HandlerFunc {
		return s.guard(h, s.authenticated, s.mfaVerified,
			s.hasAnyRole(handlers.RoleCustomerConfigAdmin, handlers.RoleEmployees))
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return s.guard(h, s.authenticated, s.mfaVerified, s.hasAnyRole(handlers.RoleEmployees))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/mojo-login", authHandler.MojoLogin)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/check", session(authHandler.Check))
		r.Get("/auth/roles", read(authHandler.Roles))
		r.Post("/auth/mfa/generate", session(mfaHandler.Generate))
		r.Post("/auth/mfa/verify", session(mfaHandler.Verify))

		r.Get("/configs", read(configHandler.List))
		r.Get("/configs/defaults", read(configHandler.Defaults))
		r.Get("/configs/{configId}", read(configHandler.Get))
		r.Post("/configs", write(configHandler.Create))
		r.Put("/configs/{configId}", write(configHandler.Update))
		r.Delete("/configs/{configId}", write(configHandler.Delete))

		r.Get("/organizations", read(configHandler.Organizations))
		r.Get("/sites", read(configHandler.Sites))
		r.Get("/agents", read(configHandler.Agents))
		r.Get("/categories", read(configHandler.Categories))
		r.Get("/customers", admin(directoryHandler.Customers))
		r.Get("/datatypes/{dataTypeId}/values", read(configHandler.DataTypeValues))

		// Open to all authenticated users, but the blocked-write echo is
		// role-dependent, so roles are resolved up front.
		r.Post("/sections", s.guard(configHandler.CreateSection,
			s.authenticated, s.mfaVerified, s.withRoles))

		r.Get("/admin/file-specs", admin(adminHandler.ListFileSpecs))
		r.Put("/admin/file-specs/{id}", admin(adminHandler.UpdateFileSpec))
		r.Get("/admin/section-specs", admin(adminHandler.ListSectionSpecs))
		r.Put("/admin/section-specs/{id}", admin(adminHandler.UpdateSectionSpec))
	})
}
