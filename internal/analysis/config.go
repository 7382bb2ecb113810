package analysis

import (
	"fmt"
	"regexp"

	"github.com/roach88/filibuster/internal/ir"
)

// Config is the analysis configuration consumed by the engine.
// It is read-only once loaded.
type Config struct {
	// MaxIterations caps the number of iterations, baseline included.
	// Zero means unbounded.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// SuppressCombinations restricts proposals to single faults relative
	// to the baseline iteration.
	SuppressCombinations bool `yaml:"suppress_combinations" json:"suppress_combinations"`

	// DataNondeterminism ignores payload content when comparing
	// execution records for the fixpoint check.
	DataNondeterminism bool `yaml:"data_nondeterminism" json:"data_nondeterminism"`

	// FailIfFaultNotInjected turns an iteration that scheduled faults but
	// injected none into a named failure.
	FailIfFaultNotInjected bool `yaml:"fail_if_fault_not_injected" json:"fail_if_fault_not_injected"`

	Rules []Rule `yaml:"rules" json:"rules"`
}

// Rule selects call sites and lists the faults applicable to them.
// Empty selectors match anything.
type Rule struct {
	Name      string        `yaml:"name" json:"name"`
	Services  string        `yaml:"services,omitempty" json:"services,omitempty"`
	Methods   string        `yaml:"methods,omitempty" json:"methods,omitempty"`
	CallTypes []ir.CallType `yaml:"call_types,omitempty" json:"call_types,omitempty"`

	Exceptions   []ir.Exception       `yaml:"exceptions,omitempty" json:"exceptions,omitempty"`
	Transformers []ir.TransformerType `yaml:"transformers,omitempty" json:"transformers,omitempty"`
	Byzantine    []string             `yaml:"byzantine,omitempty" json:"byzantine,omitempty"`

	services *regexp.Regexp
	methods  *regexp.Regexp
}

// Default returns an empty configuration: no rules, unbounded iterations.
func Default() *Config {
	return &Config{}
}

// Validate checks the configuration and compiles rule selectors.
// Loaders call it; configurations built in code must call it before use.
func (c *Config) Validate() error {
	if c.MaxIterations < 0 {
		return &ConfigError{Field: "max_iterations", Message: "must be non-negative"}
	}

	seen := make(map[string]bool, len(c.Rules))
	for i := range c.Rules {
		r := &c.Rules[i]
		field := fmt.Sprintf("rules[%d]", i)

		if r.Name == "" {
			return &ConfigError{Field: field + ".name", Message: "is required"}
		}
		if seen[r.Name] {
			return &ConfigError{Field: field + ".name", Message: fmt.Sprintf("duplicate rule %q", r.Name)}
		}
		seen[r.Name] = true

		if len(r.Exceptions) == 0 && len(r.Transformers) == 0 && len(r.Byzantine) == 0 {
			return &ConfigError{Field: field, Message: "rule declares no faults"}
		}

		var err error
		if r.services, err = compileSelector(r.Services); err != nil {
			return &ConfigError{Field: field + ".services", Message: err.Error()}
		}
		if r.methods, err = compileSelector(r.Methods); err != nil {
			return &ConfigError{Field: field + ".methods", Message: err.Error()}
		}

		for j, ct := range r.CallTypes {
			if ct != ir.CallTypeHTTP && ct != ir.CallTypeGRPC {
				return &ConfigError{Field: fmt.Sprintf("%s.call_types[%d]", field, j), Message: fmt.Sprintf("unknown call type %q", ct)}
			}
		}
		for j, ex := range r.Exceptions {
			if ex.Name == "" {
				return &ConfigError{Field: fmt.Sprintf("%s.exceptions[%d].name", field, j), Message: "is required"}
			}
		}
		for j, t := range r.Transformers {
			if t != ir.TransformBitFlip && t != ir.TransformChar {
				return &ConfigError{Field: fmt.Sprintf("%s.transformers[%d]", field, j), Message: fmt.Sprintf("unknown transformer %q", t)}
			}
		}
	}
	return nil
}

func compileSelector(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	return regexp.Compile(expr)
}

// Matches reports whether the rule applies to the call site.
func (r *Rule) Matches(site Site) bool {
	if !matchSelector(r.services, r.Services, site.Service) {
		return false
	}
	if !matchSelector(r.methods, r.Methods, site.Method) {
		return false
	}
	if len(r.CallTypes) == 0 {
		return true
	}
	for _, ct := range r.CallTypes {
		if ct == site.CallType {
			return true
		}
	}
	return false
}

func matchSelector(re *regexp.Regexp, expr, s string) bool {
	if expr == "" {
		return true
	}
	if re == nil {
		// Not validated yet; an invalid expression matches nothing.
		ok, err := regexp.MatchString(expr, s)
		return err == nil && ok
	}
	return re.MatchString(s)
}
