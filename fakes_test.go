package main

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// fakeElement is an in-memory form control or button.
type fakeElement struct {
	value    string
	maxLen   int // truncates committed values when > 0
	disabled bool
	covered  bool
	// intercept is how many clicks an overlay swallows; -1 means all of them.
	intercept int
	clicks    int
	setCalls  int
	events    []SyntheticEvent
	onClick   func()
}

func (e *fakeElement) commit(v string) {
	if e.maxLen > 0 && len([]rune(v)) > e.maxLen {
		v = string([]rune(v)[:e.maxLen])
	}
	e.value = v
}

func (e *fakeElement) Click(ctx context.Context) error {
	e.clicks++
	if e.intercept != 0 {
		if e.intercept > 0 {
			e.intercept--
		}
		return fmt.Errorf("%w: overlay at click point", ErrActionIntercepted)
	}
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) Clear(ctx context.Context) error {
	e.value = ""
	return nil
}

func (e *fakeElement) SetValue(ctx context.Context, text string) error {
	e.setCalls++
	e.commit(text)
	return nil
}

func (e *fakeElement) AppendValue(ctx context.Context, text string) error {
	e.commit(e.value + text)
	return nil
}

func (e *fakeElement) Value(ctx context.Context) (string, error) {
	return e.value, nil
}

func (e *fakeElement) Dispatch(ctx context.Context, ev SyntheticEvent) error {
	e.events = append(e.events, ev)
	return nil
}

func (e *fakeElement) Enabled(ctx context.Context) (bool, error) {
	return !e.disabled, nil
}

func (e *fakeElement) HitTest(ctx context.Context) (bool, error) {
	return !e.covered, nil
}

// fakeDriver is a document with one level of frames, keyed by locator.
type fakeDriver struct {
	url      string
	top      map[Locator]*fakeElement
	frames   map[Locator]map[Locator]*fakeElement
	path     []Locator
	calls    []string
	refresh  int
	closed   bool
	enterErr error
	exitErr  error
	onNav    func(url string)
	onReload func()
	// stall makes Refresh hang until its context ends.
	stall bool
	// maxDepth tracks how deep the driver was ever nested.
	maxDepth int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		top:    map[Locator]*fakeElement{},
		frames: map[Locator]map[Locator]*fakeElement{},
	}
}

func (d *fakeDriver) add(loc Locator, el *fakeElement) *fakeElement {
	d.top[loc] = el
	return el
}

func (d *fakeDriver) addFrame(frame Locator, els map[Locator]*fakeElement) {
	d.top[frame] = &fakeElement{}
	d.frames[frame] = els
}

func (d *fakeDriver) scope() map[Locator]*fakeElement {
	if n := len(d.path); n > 0 {
		return d.frames[d.path[n-1]]
	}
	return d.top
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.calls = append(d.calls, "navigate "+url)
	d.path = nil
	d.url = url
	if d.onNav != nil {
		d.onNav(url)
	}
	return nil
}

func (d *fakeDriver) Refresh(ctx context.Context) error {
	d.calls = append(d.calls, "refresh")
	d.refresh++
	d.path = nil
	if d.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	if d.onReload != nil {
		d.onReload()
	}
	return nil
}

func (d *fakeDriver) FindElement(ctx context.Context, loc Locator) (Element, error) {
	if el, ok := d.scope()[loc]; ok {
		return el, nil
	}
	return nil, fmt.Errorf("%s: %w", loc, ErrElementNotFound)
}

func (d *fakeDriver) FindElements(ctx context.Context, loc Locator) ([]Element, error) {
	if el, ok := d.scope()[loc]; ok {
		return []Element{el}, nil
	}
	return nil, nil
}

func (d *fakeDriver) EnterFrame(ctx context.Context, frame Locator) error {
	d.calls = append(d.calls, "enter "+frame.String())
	if d.enterErr != nil {
		return d.enterErr
	}
	if _, ok := d.frames[frame]; !ok {
		return fmt.Errorf("%s: %w", frame, ErrElementNotFound)
	}
	d.path = append(d.path, frame)
	if len(d.path) > d.maxDepth {
		d.maxDepth = len(d.path)
	}
	return nil
}

func (d *fakeDriver) ExitToTopLevel(ctx context.Context) error {
	d.calls = append(d.calls, "exit")
	if d.exitErr != nil {
		return d.exitErr
	}
	d.path = nil
	return nil
}

func (d *fakeDriver) CurrentURL(ctx context.Context) (string, error) {
	return d.url, nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDriver) called(prefix string) int {
	n := 0
	for _, c := range d.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// sleepRecorder stands in for SleepFunc without waiting.
type sleepRecorder struct {
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func testSession(d Driver) *Session {
	return NewSession(d, nil, "test-run")
}

func fastEngine() *ConditionEngine {
	return NewConditionEngine(2*time.Millisecond, nil)
}
