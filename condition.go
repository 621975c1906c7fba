package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ConditionKind int

const (
	ElementPresent ConditionKind = iota
	ElementClickable
	ElementVisible
	URLEquals
	URLContains
)

func (k ConditionKind) String() string {
	switch k {
	case ElementPresent:
		return "element-present"
	case ElementClickable:
		return "element-clickable"
	case ElementVisible:
		return "element-visible"
	case URLEquals:
		return "url-equals"
	case URLContains:
		return "url-contains"
	default:
		return fmt.Sprintf("condition(%d)", int(k))
	}
}

// Condition is a predicate over document state. Element kinds use Locator,
// URL kinds use URL.
type Condition struct {
	Kind    ConditionKind
	Locator Locator
	URL     string
}

func Present(loc Locator) Condition { return Condition{Kind: ElementPresent, Locator: loc} }
func Clickable(loc Locator) Condition { return Condition{Kind: ElementClickable, Locator: loc} }
func Visible(loc Locator) Condition { return Condition{Kind: ElementVisible, Locator: loc} }
func URLIs(url string) Condition { return Condition{Kind: URLEquals, URL: url} }
func URLHas(part string) Condition { return Condition{Kind: URLContains, URL: part} }

func (c Condition) String() string {
	switch c.Kind {
	case URLEquals, URLContains:
		return fmt.Sprintf("%s %q", c.Kind, c.URL)
	default:
		return fmt.Sprintf("%s %s", c.Kind, c.Locator)
	}
}

const DefaultPollInterval = 250 * time.Millisecond

// ConditionEngine polls the session until a condition holds or times out.
type ConditionEngine struct {
	interval time.Duration
	log      *zap.Logger
}

func NewConditionEngine(interval time.Duration, log *zap.Logger) *ConditionEngine {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ConditionEngine{interval: interval, log: log}
}

// Await returns the resolved element (nil for URL conditions) once cond holds.
// On timeout it returns a *TimeoutError. A non-positive timeout checks cond
// exactly once.
func (e *ConditionEngine) Await(ctx context.Context, s *Session, cond Condition, timeout time.Duration) (Element, error) {
	if timeout <= 0 {
		return e.check(ctx, s, cond)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(e.interval), 1)
	var last error
	polls := 0

	for {
		if err := limiter.Wait(waitCtx); err != nil {
			break
		}
		polls++

		el, ok, err := e.evaluate(waitCtx, s, cond)
		if ok {
			e.log.Debug("condition met", zap.Stringer("condition", cond), zap.Int("polls", polls))
			return el, nil
		}
		if err != nil && !errors.Is(err, ErrElementNotFound) && waitCtx.Err() == nil {
			last = err
		}
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("waiting for %s: %w", cond, ctx.Err())
	}

	e.log.Debug("condition timed out", zap.Stringer("condition", cond), zap.Int("polls", polls))
	return nil, &TimeoutError{Condition: cond, Timeout: timeout, Last: last}
}

func (e *ConditionEngine) check(ctx context.Context, s *Session, cond Condition) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", cond, err)
	}
	el, ok, err := e.evaluate(ctx, s, cond)
	if ok {
		return el, nil
	}
	if errors.Is(err, ErrElementNotFound) {
		err = nil
	}
	return nil, &TimeoutError{Condition: cond, Last: err}
}

// evaluate checks cond once.
func (e *ConditionEngine) evaluate(ctx context.Context, s *Session, cond Condition) (Element, bool, error) {
	switch cond.Kind {
	case URLEquals, URLContains:
		current, err := s.CurrentURL(ctx)
		if err != nil {
			return nil, false, err
		}
		if cond.Kind == URLEquals {
			return nil, sameURL(current, cond.URL), nil
		}
		return nil, strings.Contains(current, cond.URL), nil

	case ElementPresent, ElementClickable, ElementVisible:
		el, err := s.Find(ctx, cond.Locator)
		if err != nil {
			return nil, false, err
		}
		if cond.Kind == ElementPresent {
			return el, true, nil
		}

		if cond.Kind == ElementClickable {
			enabled, err := el.Enabled(ctx)
			if err != nil || !enabled {
				return nil, false, err
			}
		}

		// The centre point must resolve to the element, not an overlay.
		hit, err := el.HitTest(ctx)
		if err != nil || !hit {
			return nil, false, err
		}
		return el, true, nil

	default:
		return nil, false, fmt.Errorf("unknown condition kind %d", int(cond.Kind))
	}
}

// sameURL compares URLs ignoring a single trailing slash.
func sameURL(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
