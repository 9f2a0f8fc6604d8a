package quota

import (
	"github.com/pivotdata/syncgate/internal/license"
)

// Category is a logical grouping of API operations that share one quota.
type Category string

const (
	CategoryWorkspaces  Category = "workspaces"
	CategoryFiles       Category = "files"
	CategoryAnnotations Category = "annotations"
	CategoryAuth        Category = "auth"
	CategoryDefault     Category = "default"
)

// categoryLabels maps categories to the human label used in error messages.
var categoryLabels = map[Category]string{
	CategoryWorkspaces:  "workspace",
	CategoryFiles:       "file",
	CategoryAnnotations: "annotation",
	CategoryAuth:        "authentication",
	CategoryDefault:     "API",
}

// Label returns a user-facing label for a category.
func Label(c Category) string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Set maps each category to its per-window request limit.
type Set map[Category]int

// Limit returns the limit for a category, falling back to the default
// category when the specific one is not configured.
func (s Set) Limit(c Category) int {
	if limit, ok := s[c]; ok {
		return limit
	}
	if limit, ok := s[CategoryDefault]; ok {
		return limit
	}
	return 0
}

// TierLimits maps a license tier name to its category limits.
type TierLimits map[string]Set

// DefaultTier is used when a license carries no tier claim or an
// unconfigured one.
const DefaultTier = "basic"

// DefaultLimits returns the built-in per-minute limits.
func DefaultLimits() TierLimits {
	return TierLimits{
		"basic": {
			CategoryWorkspaces:  10,
			CategoryFiles:       100,
			CategoryAnnotations: 1000,
			CategoryAuth:        5,
			CategoryDefault:     10,
		},
		"premium": {
			CategoryWorkspaces:  100,
			CategoryFiles:       500,
			CategoryAnnotations: 5000,
			CategoryAuth:        10,
			CategoryDefault:     100,
		},
	}
}

// Resolver maps a verified tenant identity to the quota set that applies
// to it. Resolution is pure: it never touches the counter store.
type Resolver struct {
	limits TierLimits
}

// NewResolver creates a resolver over the given tier limits. Empty or nil
// limits fall back to the built-in defaults.
func NewResolver(limits TierLimits) *Resolver {
	if len(limits) == 0 {
		limits = DefaultLimits()
	}
	return &Resolver{limits: limits}
}

// Resolve returns the quota set for an identity.
//
// A tenant whose license is invalid (absent, expired, not yet valid, or
// failed signature verification upstream) resolves to limit zero for every
// category. Unknown tenants get no traffic rather than default traffic.
func (r *Resolver) Resolve(identity license.Identity) Set {
	if !identity.Valid {
		return Set{}
	}

	tier := identity.Claims.Tier
	if tier == "" {
		tier = DefaultTier
	}

	limits, ok := r.limits[tier]
	if !ok {
		limits = r.limits[DefaultTier]
	}

	return limits
}
