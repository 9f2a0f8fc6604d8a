package validate

import "regexp"

// Size limits for sync API payload fields.
const (
	MaxAnnotationNoteSize  = 512
	MaxAnnotationColorSize = 16
	MaxWorkspaceNameSize   = 64
	MaxFilePathSize        = 1024
	MaxJPathSize           = 512
	MaxIDSize              = 46 // UUID (36) + prefix buffer (10)
	MaxHashSize            = 64
)

// Resource kinds with configured rule sets.
const (
	KindWorkspace  = "workspace"
	KindFile       = "file"
	KindAnnotation = "annotation"
)

// hashPattern accepts exactly one SHA-256 digest in lowercase hex.
var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

const hashHint = "invalid hash format: must be 64 lowercase hex characters"

// DefaultRules returns the rule sets for the sync API's resource kinds.
// Field order within each set is the order violations are reported in.
func DefaultRules() map[string]RuleSet {
	return map[string]RuleSet{
		KindWorkspace: {
			{Field: "name", Required: true, MaxLength: MaxWorkspaceNameSize},
			{Field: "description", MaxLength: MaxFilePathSize},
		},
		KindFile: {
			{Field: "workspace_id", Required: true, MaxLength: MaxIDSize},
			{Field: "file_hash", Required: true, MaxLength: MaxHashSize, Pattern: hashPattern, PatternHint: hashHint},
			{Field: "file_path", MaxLength: MaxFilePathSize},
			{Field: "jpath", MaxLength: MaxJPathSize},
			{Field: "instance_id", MaxLength: MaxIDSize},
			{Field: "description", MaxLength: MaxFilePathSize},
		},
		KindAnnotation: {
			{Field: "workspace_id", Required: true, MaxLength: MaxIDSize},
			{Field: "file_hash", Required: true, MaxLength: MaxHashSize, Pattern: hashPattern, PatternHint: hashHint},
			{Field: "note", MaxLength: MaxAnnotationNoteSize},
			{Field: "color", MaxLength: MaxAnnotationColorSize},
			{Field: "jpath", MaxLength: MaxJPathSize},
		},
	}
}
