// Package syncgate provides the public API for embedding the admission
// pipeline into another HTTP service. This is the stable API for
// external consumers; the packages under internal/ may change freely.
package syncgate

import (
	"github.com/pivotdata/syncgate/internal/license"
	"github.com/pivotdata/syncgate/internal/quota"
	"github.com/pivotdata/syncgate/internal/ratelimit"
	"github.com/pivotdata/syncgate/internal/server"
	"github.com/pivotdata/syncgate/internal/validate"
)

// Admission is the rate limiting stage of the pipeline. Obtain one with
// NewAdmission and mount ForCategory or ByPath on your router.
type Admission = server.Admission

// FailPolicy selects fail-open or fail-closed behavior when the counter
// store is unreachable.
type FailPolicy = server.FailPolicy

const (
	FailOpen   = server.FailOpen
	FailClosed = server.FailClosed
)

// Identity and Verifier model the tenant resolution stage.
type (
	Identity = license.Identity
	Verifier = license.Verifier
)

// Category groups operations that share one quota.
type Category = quota.Category

const (
	CategoryWorkspaces  = quota.CategoryWorkspaces
	CategoryFiles       = quota.CategoryFiles
	CategoryAnnotations = quota.CategoryAnnotations
	CategoryAuth        = quota.CategoryAuth
	CategoryDefault     = quota.CategoryDefault
)

// CounterStore is the pluggable window counter backend.
type CounterStore = ratelimit.CounterStore

// PathCategorizer maps request paths to categories for Admission.ByPath.
type PathCategorizer = server.PathCategorizer

// Constructors
var (
	// Pipeline stages
	NewAdmission           = server.NewAdmission
	LicenseMiddleware      = server.LicenseMiddleware
	RequireValid           = server.RequireValid
	NewPathCategorizer     = server.NewPathCategorizer
	DefaultPathCategorizer = server.DefaultPathCategorizer

	// Rate limiting
	NewLimiter     = ratelimit.NewLimiter
	NewMemoryStore = ratelimit.NewMemoryStore
	NewRedisStore  = ratelimit.NewRedisStore
	NewSQLiteStore = ratelimit.NewSQLiteStore

	// Quota and identity
	NewResolver       = quota.NewResolver
	DefaultLimits     = quota.DefaultLimits
	NewStaticVerifier = license.NewStaticVerifier

	// Payload validation
	NewValidator = validate.NewValidator
	DefaultRules = validate.DefaultRules
)
