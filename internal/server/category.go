package server

import (
	"strings"

	"github.com/pivotdata/syncgate/internal/quota"
)

// PathCategorizer maps request paths to rate limit categories for routes
// that are not registered through an explicit category group. Pattern
// segments wrapped in braces match any single path segment.
type PathCategorizer struct {
	patterns []pathPattern
}

type pathPattern struct {
	segments []string
	category quota.Category
}

// NewPathCategorizer builds a categorizer from pattern -> category pairs.
func NewPathCategorizer(patterns map[string]quota.Category) *PathCategorizer {
	pc := &PathCategorizer{}
	for pattern, category := range patterns {
		pc.patterns = append(pc.patterns, pathPattern{
			segments: splitPath(pattern),
			category: category,
		})
	}
	return pc
}

// DefaultPathCategorizer covers the sync API's endpoint surface.
func DefaultPathCategorizer() *PathCategorizer {
	return NewPathCategorizer(map[string]quota.Category{
		"/workspaces":                                  quota.CategoryWorkspaces,
		"/workspaces/{workspace_id}":                   quota.CategoryWorkspaces,
		"/workspaces/{workspace_id}/convert-to-shared": quota.CategoryWorkspaces,
		"/workspaces/{workspace_id}/members":           quota.CategoryWorkspaces,
		"/workspaces/{workspace_id}/members/{email}":   quota.CategoryWorkspaces,

		"/workspaces/{workspace_id}/files":             quota.CategoryFiles,
		"/workspaces/{workspace_id}/files/{file_hash}": quota.CategoryFiles,
		"/file-locations":                              quota.CategoryFiles,
		"/file-locations/all":                          quota.CategoryFiles,

		"/workspaces/{workspace_id}/annotations":                 quota.CategoryAnnotations,
		"/workspaces/{workspace_id}/annotations/{annotation_id}": quota.CategoryAnnotations,

		"/auth/request-pin": quota.CategoryAuth,
		"/auth/verify-pin":  quota.CategoryAuth,
		"/auth/refresh":     quota.CategoryAuth,
		"/auth/logout":      quota.CategoryAuth,
	})
}

// Categorize returns the category for a path, or CategoryDefault when no
// pattern matches.
func (pc *PathCategorizer) Categorize(path string) quota.Category {
	segments := splitPath(path)

	for _, pattern := range pc.patterns {
		if matchSegments(pattern.segments, segments) {
			return pattern.category
		}
	}
	return quota.CategoryDefault
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, seg := range pattern {
		if strings.HasPrefix(seg, "{") {
			continue
		}
		if seg != path[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
