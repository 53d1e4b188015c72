// File: internal/browser/frame_context.go
package browser

import "strings"

// FrameContext is the stack of frame ids the controller is switched into,
// outermost first. It is an immutable value: every transition returns a new
// FrameContext and leaves the receiver untouched. The zero value is the top
// level document.
type FrameContext struct {
	path []string
}

// DefaultFrame is the top level document.
func DefaultFrame() FrameContext { return FrameContext{} }

// Enter returns the context after switching into the child frame id.
func (f FrameContext) Enter(id string) FrameContext {
	next := make([]string, len(f.path)+1)
	copy(next, f.path)
	next[len(f.path)] = id
	return FrameContext{path: next}
}

// Parent returns the context after switching to the parent frame. The parent
// of the top level document is the top level document.
func (f FrameContext) Parent() FrameContext {
	if len(f.path) == 0 {
		return f
	}
	return FrameContext{path: f.path[: len(f.path)-1 : len(f.path)-1]}
}

// Default returns the top level context.
func (f FrameContext) Default() FrameContext { return FrameContext{} }

// Depth is the number of frames entered.
func (f FrameContext) Depth() int { return len(f.path) }

// IsDefault reports whether f is the top level document.
func (f FrameContext) IsDefault() bool { return len(f.path) == 0 }

// Top returns the innermost frame id, or "" at top level.
func (f FrameContext) Top() string {
	if len(f.path) == 0 {
		return ""
	}
	return f.path[len(f.path)-1]
}

// Path returns a copy of the frame ids, outermost first.
func (f FrameContext) Path() []string {
	out := make([]string, len(f.path))
	copy(out, f.path)
	return out
}

// Equal reports whether both contexts name the same frame path.
func (f FrameContext) Equal(o FrameContext) bool {
	if len(f.path) != len(o.path) {
		return false
	}
	for i := range f.path {
		if f.path[i] != o.path[i] {
			return false
		}
	}
	return true
}

func (f FrameContext) String() string {
	if len(f.path) == 0 {
		return "default"
	}
	return "default>" + strings.Join(f.path, ">")
}
