// Package redact scrubs sensitive values from recorded tool arguments.
//
// Patterns are RE2 expressions, so matching is linear in the input size. An
// Engine is immutable after construction and safe for concurrent use.
package redact

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/mcpcat/mcpcat-go-sdk/internal/errors"
	"github.com/mcpcat/mcpcat-go-sdk/internal/event"
)

// Pattern is a named redaction rule.
type Pattern struct {
	Name    string `mapstructure:"name"`
	Pattern string `mapstructure:"pattern"`
	// Replacement defaults to "[REDACTED:<name>]".
	Replacement string `mapstructure:"replacement"`
}

// Func rewrites a single string value.
type Func func(string) string

type rule struct {
	name        string
	re          *regexp.Regexp
	replacement string
	accept      func(match string) bool
}

var builtins = []struct {
	name    string
	pattern string
	accept  func(string) bool
}{
	{name: "aws-key", pattern: `AKIA[0-9A-Z]{16}`},
	{name: "bearer-token", pattern: `Bearer [A-Za-z0-9\-._~+/]+=*`},
	{name: "jwt", pattern: `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]+`},
	{name: "github-token", pattern: `(ghp_[A-Za-z0-9]{36,}|github_pat_[A-Za-z0-9_]{36,})`},
	{name: "private-key", pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`},
	{name: "api-key", pattern: `(?i)(api[_-]?key|apikey|secret[_-]?key)\s*[:=]\s*\S+`},
	{name: "email", pattern: `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`},
	{name: "credit-card", pattern: `\b[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}\b`, accept: luhn},
}

// Engine applies builtin and custom patterns, then an optional Func.
type Engine struct {
	rules []rule
	fn    Func
}

// New compiles the builtin patterns plus custom ones. An invalid custom
// pattern is reported as a *errors.ConfigError.
func New(custom []Pattern, fn Func) (*Engine, error) {
	e := &Engine{fn: fn}

	for _, b := range builtins {
		e.rules = append(e.rules, rule{
			name:        b.name,
			re:          regexp.MustCompile(b.pattern),
			replacement: placeholder(b.name),
			accept:      b.accept,
		})
	}

	for i, p := range custom {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, &errors.ConfigError{
				Field:  fmt.Sprintf("RedactionPatterns[%d]", i),
				Reason: err.Error(),
			}
		}

		replacement := p.Replacement
		if replacement == "" {
			replacement = placeholder(p.Name)
		}

		e.rules = append(e.rules, rule{name: p.Name, re: re, replacement: replacement})
	}

	return e, nil
}

func placeholder(name string) string {
	return "[REDACTED:" + name + "]"
}

// String redacts one string.
func (e *Engine) String(s string) string {
	if s == "" {
		return s
	}

	for _, r := range e.rules {
		if r.accept == nil {
			s = r.re.ReplaceAllString(s, r.replacement)

			continue
		}

		s = r.re.ReplaceAllStringFunc(s, func(match string) string {
			if r.accept(match) {
				return r.replacement
			}

			return match
		})
	}

	if e.fn != nil {
		s = e.fn(s)
	}

	return s
}

// Value redacts every string reachable from v. Maps and slices are copied;
// other values are returned as is.
func (e *Engine) Value(v any) any {
	switch t := v.(type) {
	case string:
		return e.String(t)
	case map[string]any:
		return e.Map(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = e.Value(item)
		}

		return out
	case []string:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = e.String(item)
		}

		return out
	default:
		return v
	}
}

// Map redacts a copy of m.
func (e *Engine) Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := maps.Clone(m)
	for k, v := range out {
		out[k] = e.Value(v)
	}

	return out
}

// Event redacts the arguments, user intent and error messages of ev,
// including those of wrapped errors.
func (e *Engine) Event(ev event.UsageEvent) event.UsageEvent {
	ev.Arguments = e.Map(ev.Arguments)
	ev.UserIntent = e.String(ev.UserIntent)

	if ev.Error != nil {
		detail := *ev.Error
		detail.Message = e.String(detail.Message)

		if len(detail.Chain) > 0 {
			detail.Chain = slices.Clone(detail.Chain)
			for i := range detail.Chain {
				detail.Chain[i].Message = e.String(detail.Chain[i].Message)
			}
		}

		ev.Error = &detail
	}

	return ev
}

func luhn(number string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}

		return -1
	}, number)

	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false

	for i := len(digits) - 1; i >= 0; i-- {
		n := int(digits[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}

		sum += n
		double = !double
	}

	return sum%10 == 0
}
