package server

import (
	"testing"

	"github.com/pivotdata/syncgate/internal/quota"
)

func TestDefaultPathCategorizer(t *testing.T) {
	pc := DefaultPathCategorizer()

	tests := []struct {
		path string
		want quota.Category
	}{
		{"/workspaces", quota.CategoryWorkspaces},
		{"/workspaces/ws_123", quota.CategoryWorkspaces},
		{"/workspaces/ws_123/convert-to-shared", quota.CategoryWorkspaces},
		{"/workspaces/ws_123/members", quota.CategoryWorkspaces},
		{"/workspaces/ws_123/members/someone@example.com", quota.CategoryWorkspaces},

		{"/workspaces/ws_123/files", quota.CategoryFiles},
		{"/workspaces/ws_123/files/abcdef", quota.CategoryFiles},
		{"/file-locations", quota.CategoryFiles},
		{"/file-locations/all", quota.CategoryFiles},

		{"/workspaces/ws_123/annotations", quota.CategoryAnnotations},
		{"/workspaces/ws_123/annotations/ann_9", quota.CategoryAnnotations},

		{"/auth/request-pin", quota.CategoryAuth},
		{"/auth/verify-pin", quota.CategoryAuth},
		{"/auth/refresh", quota.CategoryAuth},
		{"/auth/logout", quota.CategoryAuth},

		{"/health", quota.CategoryDefault},
		{"/workspaces/ws_123/files/abc/extra", quota.CategoryDefault},
		{"/", quota.CategoryDefault},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := pc.Categorize(tt.path); got != tt.want {
				t.Errorf("Categorize(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestPathCategorizer_TrailingSlash(t *testing.T) {
	pc := DefaultPathCategorizer()

	if got := pc.Categorize("/workspaces/"); got != quota.CategoryWorkspaces {
		t.Errorf("Categorize with trailing slash = %q, want workspaces", got)
	}
}

func TestPathCategorizer_LiteralSegmentsBeatNothing(t *testing.T) {
	pc := NewPathCategorizer(map[string]quota.Category{
		"/v1/{id}": quota.CategoryFiles,
	})

	if got := pc.Categorize("/v1/anything"); got != quota.CategoryFiles {
		t.Errorf("wildcard segment did not match: got %q", got)
	}
	if got := pc.Categorize("/v2/anything"); got != quota.CategoryDefault {
		t.Errorf("literal mismatch must fall through to default: got %q", got)
	}
}
