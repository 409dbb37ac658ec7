package event

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const (
	// MaxChainDepth bounds the number of wrapped errors kept in a chain.
	MaxChainDepth = 10
	// MaxFrames bounds the number of stack frames kept for a panic.
	MaxFrames = 50
)

// NewErrorDetail describes err with its wrapped errors. Both the single
// Unwrap() error and the multi Unwrap() []error forms are followed,
// breadth first, up to MaxChainDepth entries.
func NewErrorDetail(err error) *ErrorDetail {
	if err == nil {
		return nil
	}

	detail := &ErrorDetail{Type: fmt.Sprintf("%T", err), Message: err.Error()}

	queue := unwrap(err)
	for len(queue) > 0 && len(detail.Chain) < MaxChainDepth {
		next := queue[0]
		queue = append(queue[1:], unwrap(next)...)

		detail.Chain = append(detail.Chain, ErrorDetail{Type: fmt.Sprintf("%T", next), Message: next.Error()})
	}

	return detail
}

func unwrap(err error) []error {
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		return e.Unwrap()
	default:
		if inner := errors.Unwrap(err); inner != nil {
			return []error{inner}
		}
	}

	return nil
}

// PanicDetail describes a recovered panic value with the stack of the
// panicking goroutine. It must be called from the recovering deferred
// function; skip is the number of callers above PanicDetail to drop before
// the panic site. Runtime frames are left out.
func PanicDetail(value any, skip int) *ErrorDetail {
	detail := &ErrorDetail{Type: "panic", Message: fmt.Sprint(value)}
	if err, ok := value.(error); ok {
		detail.Chain = NewErrorDetail(err).Chain
	}

	pcs := make([]uintptr, MaxFrames+skip)
	n := runtime.Callers(skip+2, pcs)

	frames := runtime.CallersFrames(pcs[:n])
	for len(detail.Frames) < MaxFrames {
		f, more := frames.Next()
		if f.Function != "" && !strings.HasPrefix(f.Function, "runtime.") {
			detail.Frames = append(detail.Frames, Frame{Function: f.Function, File: f.File, Line: f.Line})
		}

		if !more {
			break
		}
	}

	return detail
}
