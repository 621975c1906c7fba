package main

import (
	"context"

	"go.uber.org/zap"
)

// Driver is the controlled browser. Queries resolve in the active context,
// which is the top-level document until EnterFrame is called.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Refresh(ctx context.Context) error
	// FindElement returns ErrElementNotFound when nothing matches.
	FindElement(ctx context.Context, loc Locator) (Element, error)
	FindElements(ctx context.Context, loc Locator) ([]Element, error)
	EnterFrame(ctx context.Context, frame Locator) error
	ExitToTopLevel(ctx context.Context) error
	CurrentURL(ctx context.Context) (string, error)
	Close() error
}

// Element is a resolved handle. Handles go stale after Refresh or Navigate.
type Element interface {
	// Click fails with ErrActionIntercepted when another element owns the
	// target's hit-test point.
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SetValue(ctx context.Context, text string) error
	// AppendValue adds text through the native value setter so framework
	// managed inputs observe the change once events are dispatched.
	AppendValue(ctx context.Context, text string) error
	Value(ctx context.Context) (string, error)
	Dispatch(ctx context.Context, ev SyntheticEvent) error
	Enabled(ctx context.Context) (bool, error)
	// HitTest reports whether the element's geometric centre resolves to
	// the element itself (or a descendant) in the live render tree.
	HitTest(ctx context.Context) (bool, error)
}

// Session owns the driver and the stack of entered frames for one run.
type Session struct {
	driver Driver
	frames []Locator
	log    *zap.Logger
	closed bool
}

func NewSession(driver Driver, log *zap.Logger, runID string) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		driver: driver,
		log:    log.With(zap.String("run_id", runID)),
	}
}

// Depth is the number of frames currently entered; 0 is the top level.
func (s *Session) Depth() int {
	return len(s.frames)
}

func (s *Session) Logger() *zap.Logger {
	return s.log
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.log.Debug("navigate", zap.String("url", url))
	return s.driver.Navigate(ctx, url)
}

// Refresh reloads the top-level document. Frames entered before the reload
// no longer exist, so the stack is dropped.
func (s *Session) Refresh(ctx context.Context) error {
	if len(s.frames) > 0 {
		if err := s.restore(ctx, 0); err != nil {
			return err
		}
	}
	s.log.Debug("refresh")
	return s.driver.Refresh(ctx)
}

func (s *Session) Find(ctx context.Context, loc Locator) (Element, error) {
	return s.driver.FindElement(ctx, loc)
}

// FindAll returns every match in the active context, in document order.
func (s *Session) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	return s.driver.FindElements(ctx, loc)
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	return s.driver.CurrentURL(ctx)
}

// Close releases the browser. Calling it twice is harmless.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.frames = nil
	return s.driver.Close()
}
