package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pivotdata/syncgate/internal/quota"
	"github.com/pivotdata/syncgate/internal/validate"
)

// MountSyncRoutes registers the sync API surface behind the admission
// pipeline. Each route group charges one rate limit category; mutating
// routes validate their payload kind after admission. The business
// handler is an external collaborator: once a request is admitted and
// valid, the pipeline has no further involvement beyond the rate limit
// headers already attached.
func (s *Server) MountSyncRoutes(adm *Admission, validator *validate.Validator, business http.Handler) {
	r := s.Router

	r.Route("/workspaces", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(adm.ForCategory(quota.CategoryWorkspaces))
			r.Get("/", business.ServeHTTP)
			r.With(RequireValid(validate.KindWorkspace, validator)).Post("/", business.ServeHTTP)
			r.Get("/{workspace_id}", business.ServeHTTP)
			r.With(RequireValid(validate.KindWorkspace, validator)).Put("/{workspace_id}", business.ServeHTTP)
			r.Delete("/{workspace_id}", business.ServeHTTP)

			r.Post("/{workspace_id}/convert-to-shared", business.ServeHTTP)
			r.Get("/{workspace_id}/members", business.ServeHTTP)
			r.Post("/{workspace_id}/members", business.ServeHTTP)
			r.Delete("/{workspace_id}/members/{email}", business.ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			r.Use(adm.ForCategory(quota.CategoryFiles))
			r.Get("/{workspace_id}/files", business.ServeHTTP)
			r.With(RequireValid(validate.KindFile, validator)).Post("/{workspace_id}/files", business.ServeHTTP)
			r.With(RequireValid(validate.KindFile, validator)).Put("/{workspace_id}/files/{file_hash}", business.ServeHTTP)
			r.Delete("/{workspace_id}/files/{file_hash}", business.ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			r.Use(adm.ForCategory(quota.CategoryAnnotations))
			r.Get("/{workspace_id}/annotations", business.ServeHTTP)
			r.With(RequireValid(validate.KindAnnotation, validator)).Post("/{workspace_id}/annotations", business.ServeHTTP)
			r.With(RequireValid(validate.KindAnnotation, validator)).Put("/{workspace_id}/annotations/{annotation_id}", business.ServeHTTP)
			r.Delete("/{workspace_id}/annotations/{annotation_id}", business.ServeHTTP)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(adm.ForCategory(quota.CategoryFiles))
		r.Get("/file-locations", business.ServeHTTP)
		r.Get("/file-locations/all", business.ServeHTTP)
	})

	r.Route("/auth", func(r chi.Router) {
		auth := adm.ForCategory(quota.CategoryAuth)

		// Pin endpoints are called before any license exists, so they are
		// counted per email. The email middleware must run before
		// admission so the counter key is the email, not anonymous.
		r.With(EmailIdentityMiddleware, auth).Post("/request-pin", business.ServeHTTP)
		r.With(EmailIdentityMiddleware, auth).Post("/verify-pin", business.ServeHTTP)

		r.With(auth).Post("/refresh", business.ServeHTTP)
		r.With(auth).Post("/logout", business.ServeHTTP)
	})

	r.Get("/rate-limit-status", adm.StatusHandler())

	// Any path not registered above is still metered; the categorizer maps
	// it to a category, falling back to the default bucket.
	r.Group(func(r chi.Router) {
		r.Use(adm.ByPath(DefaultPathCategorizer()))
		r.Handle("/*", business)
	})
}
