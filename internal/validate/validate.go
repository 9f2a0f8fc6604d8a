package validate

import (
	"fmt"
	"regexp"
)

// Reason classifies a field violation so clients can branch on it without
// parsing the human message.
type Reason string

const (
	ReasonMissingField  Reason = "missing_field"
	ReasonSizeExceeded  Reason = "size_exceeded"
	ReasonInvalidFormat Reason = "invalid_format"
)

// Violation is one field-level validation failure.
type Violation struct {
	Field  string
	Reason Reason
	Detail string
}

// String renders the violation the way it appears in error responses.
func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Detail)
}

// Outcome is the ordered list of violations for one payload. Empty means
// valid. Order follows the rule set's field order, so it is reproducible.
type Outcome []Violation

// Valid reports whether the payload passed all rules.
func (o Outcome) Valid() bool {
	return len(o) == 0
}

// First returns the first violation, or nil when the payload is valid.
func (o Outcome) First() *Violation {
	if len(o) == 0 {
		return nil
	}
	return &o[0]
}

// Rule constrains one payload field. MaxLength counts bytes.
type Rule struct {
	Field     string
	Required  bool
	MaxLength int
	Pattern   *regexp.Regexp
	// PatternHint is the message used when Pattern does not match.
	PatternHint string
}

// RuleSet is the ordered rule list for one resource kind.
type RuleSet []Rule

// Validator checks decoded request payloads against per-kind rule sets.
// Rule sets are configuration built once at startup; the validator itself
// is stateless and safe for concurrent use.
type Validator struct {
	kinds map[string]RuleSet
}

// NewValidator creates a validator over the given rule sets.
func NewValidator(kinds map[string]RuleSet) *Validator {
	return &Validator{kinds: kinds}
}

// Validate checks a payload against the rules for a resource kind and
// returns every violation, in rule order. It does not short-circuit: a
// payload with three bad fields reports all three. An unknown kind has no
// rules and always validates.
func (v *Validator) Validate(kind string, payload map[string]any) Outcome {
	rules, ok := v.kinds[kind]
	if !ok {
		return nil
	}

	var outcome Outcome
	for _, rule := range rules {
		if violation := checkRule(rule, payload); violation != nil {
			outcome = append(outcome, *violation)
		}
	}

	return outcome
}

func checkRule(rule Rule, payload map[string]any) *Violation {
	raw, present := payload[rule.Field]

	value, isString := "", false
	if present {
		value, isString = raw.(string)
	}

	if !present || (isString && value == "") {
		if rule.Required {
			return &Violation{
				Field:  rule.Field,
				Reason: ReasonMissingField,
				Detail: "required field missing",
			}
		}
		return nil
	}

	if !isString {
		return &Violation{
			Field:  rule.Field,
			Reason: ReasonInvalidFormat,
			Detail: "must be a string",
		}
	}

	if rule.MaxLength > 0 && len(value) > rule.MaxLength {
		return &Violation{
			Field:  rule.Field,
			Reason: ReasonSizeExceeded,
			Detail: fmt.Sprintf("exceeds maximum size of %d characters (got %d)", rule.MaxLength, len(value)),
		}
	}

	if rule.Pattern != nil && !rule.Pattern.MatchString(value) {
		return &Violation{
			Field:  rule.Field,
			Reason: ReasonInvalidFormat,
			Detail: rule.PatternHint,
		}
	}

	return nil
}
