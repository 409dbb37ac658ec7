// Package compat decides which registered server shape an arbitrary server
// value has.
//
// Detection is pure inspection. Candidates are probed in registry priority
// order and the first descriptor whose capabilities are all present wins.
package compat

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"github.com/mcpcat/mcpcat-go-sdk/internal/errors"
	"github.com/mcpcat/mcpcat-go-sdk/internal/shape"
)

// VersionSource reports the version of a linked module, if known.
type VersionSource func(module string) (string, bool)

// Detector matches servers against shape descriptors.
type Detector struct {
	candidates []shape.Descriptor
	versions   VersionSource
}

// Option configures a Detector.
type Option func(*Detector)

// WithCandidates restricts detection to the given descriptors, in order.
func WithCandidates(candidates ...shape.Descriptor) Option {
	return func(d *Detector) {
		d.candidates = candidates
	}
}

// WithVersionSource overrides how linked module versions are resolved.
func WithVersionSource(src VersionSource) Option {
	return func(d *Detector) {
		d.versions = src
	}
}

// NewDetector creates a detector over the full registry.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		candidates: shape.All(),
		versions:   BuildInfoVersion,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

var defaultDetector = NewDetector()

// Detect matches server against the full registry.
func Detect(server any) (*shape.Descriptor, error) {
	return defaultDetector.Detect(server)
}

// DetectWithHint matches server against the descriptor resolved from a
// library version hint. An unknown hint fails like an unsupported server.
func DetectWithHint(server any, hint string) (*shape.Descriptor, error) {
	d := shape.Lookup(hint)
	if d == nil {
		return nil, &errors.UnsupportedServerError{
			ServerType: typeName(server),
			Err:        fmt.Errorf("no shape registered for %q", hint),
			Supported:  shape.Supported(),
		}
	}

	return NewDetector(WithCandidates(*d)).Detect(server)
}

// Detect returns the first candidate whose capabilities server exposes.
func (d *Detector) Detect(server any) (*shape.Descriptor, error) {
	if isNil(server) {
		return nil, &errors.UnsupportedServerError{
			ServerType: typeName(server),
			Err:        errors.ErrNilServer,
			Supported:  shape.Supported(),
		}
	}

	missing := make(map[string][]string, len(d.candidates))

	for _, candidate := range d.candidates {
		if m := candidate.Missing(server); len(m) > 0 {
			missing[candidate.Name] = m

			continue
		}

		if v, ok := d.versions(candidate.Library); ok && !candidate.Supports(v) {
			missing[candidate.Name] = []string{fmt.Sprintf("%s %s (linked %s)", candidate.Library, candidate.Range(), v)}

			continue
		}

		found := candidate

		return &found, nil
	}

	return nil, &errors.UnsupportedServerError{
		ServerType: typeName(server),
		Missing:    missing,
		Supported:  shape.Supported(),
	}
}

var linkedModules = sync.OnceValue(func() map[string]string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	out := make(map[string]string, len(info.Deps)+1)
	if info.Main.Path != "" {
		out[info.Main.Path] = info.Main.Version
	}

	for _, dep := range info.Deps {
		mod := dep
		if dep.Replace != nil && dep.Replace.Version != "" {
			mod = dep.Replace
		}

		out[dep.Path] = mod.Version
	}

	return out
})

// BuildInfoVersion reports the version of module linked into the binary.
func BuildInfoVersion(module string) (string, bool) {
	v, ok := linkedModules()[module]

	return v, ok && v != ""
}

func isNil(server any) bool {
	if server == nil {
		return true
	}

	v := reflect.ValueOf(server)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

func typeName(server any) string {
	if server == nil {
		return "<nil>"
	}

	return fmt.Sprintf("%T", server)
}
