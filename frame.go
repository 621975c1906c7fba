package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// WithFrame runs body inside the frame addressed by loc, resolved from the
// current context. The previous context is restored on every exit path,
// including a panic inside body, which keeps propagating afterwards.
func (s *Session) WithFrame(ctx context.Context, loc Locator, body func(ctx context.Context) error) (err error) {
	depth := len(s.frames)

	if enterErr := s.driver.EnterFrame(ctx, loc); enterErr != nil {
		if rerr := s.restore(context.WithoutCancel(ctx), depth); rerr != nil {
			s.log.Error("restoring context after failed frame switch", zap.Error(rerr))
		}
		return &ContextSwitchError{Frame: loc, Err: enterErr}
	}
	s.frames = append(s.frames, loc)
	s.log.Debug("entered frame", zap.Stringer("frame", loc), zap.Int("depth", len(s.frames)))

	defer func() {
		rerr := s.restore(context.WithoutCancel(ctx), depth)
		if rerr == nil {
			s.log.Debug("left frame", zap.Stringer("frame", loc), zap.Int("depth", len(s.frames)))
			return
		}
		s.log.Error("restoring context", zap.Stringer("frame", loc), zap.Error(rerr))
		if err == nil {
			err = &ContextSwitchError{Frame: loc, Err: rerr}
		}
	}()

	return body(ctx)
}

// restore returns the driver to the given depth. The driver can only jump to
// the top level, so any frames that should stay entered are re-entered.
// The stack is truncated even when the driver fails, leaving the session
// addressed at the top level.
func (s *Session) restore(ctx context.Context, depth int) error {
	keep := append([]Locator(nil), s.frames[:depth]...)
	s.frames = s.frames[:0]

	if err := s.driver.ExitToTopLevel(ctx); err != nil {
		return fmt.Errorf("exit to top level: %w", err)
	}

	for _, loc := range keep {
		if err := s.driver.EnterFrame(ctx, loc); err != nil {
			if exitErr := s.driver.ExitToTopLevel(ctx); exitErr != nil {
				s.log.Error("exit to top level", zap.Error(exitErr))
			}
			s.frames = s.frames[:0]
			return fmt.Errorf("re-enter frame %s: %w", loc, err)
		}
		s.frames = append(s.frames, loc)
	}
	return nil
}

// ensureTopLevel forces the session out of any frames left entered.
func (s *Session) ensureTopLevel(ctx context.Context) error {
	if len(s.frames) == 0 {
		return nil
	}
	s.log.Warn("session left inside frames, forcing top level", zap.Int("depth", len(s.frames)))
	return s.restore(context.WithoutCancel(ctx), 0)
}
