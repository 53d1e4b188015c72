// File: internal/browser/switcher.go
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Switcher issues frame switches on a Controller and keeps the resulting
// FrameContext. Every component of a session switches frames through the
// same Switcher, so the recorded context always matches the controller's.
// Like the Controller it wraps, it is not safe for concurrent use.
type Switcher struct {
	ctrl   Controller
	cur    FrameContext
	logger *zap.Logger
}

// NewSwitcher returns a Switcher positioned at the top level document.
func NewSwitcher(ctrl Controller, logger *zap.Logger) *Switcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Switcher{ctrl: ctrl, logger: logger.Named("frames")}
}

// Current returns the frame context the controller is in.
func (s *Switcher) Current() FrameContext { return s.cur }

// ToDefault switches to the top level document.
func (s *Switcher) ToDefault(ctx context.Context) error {
	if err := s.ctrl.SwitchToDefaultContent(ctx); err != nil {
		return fmt.Errorf("switch to default content: %w", err)
	}
	s.set(s.cur.Default())
	return nil
}

// Enter switches into the child frame id of the current document.
func (s *Switcher) Enter(ctx context.Context, id string) error {
	if err := s.ctrl.SwitchToFrame(ctx, id); err != nil {
		return fmt.Errorf("switch to frame %q: %w", id, err)
	}
	s.set(s.cur.Enter(id))
	return nil
}

// Parent switches to the parent of the current frame.
func (s *Switcher) Parent(ctx context.Context) error {
	if err := s.ctrl.SwitchToParentFrame(ctx); err != nil {
		return fmt.Errorf("switch to parent frame: %w", err)
	}
	s.set(s.cur.Parent())
	return nil
}

// Reset records that the controller dropped back to the top level on its
// own, as it does after navigation or a window switch.
func (s *Switcher) Reset() { s.set(DefaultFrame()) }

func (s *Switcher) set(next FrameContext) {
	if !next.Equal(s.cur) {
		s.logger.Debug("Frame context changed.", zap.Stringer("from", s.cur), zap.Stringer("to", next))
	}
	s.cur = next
}
