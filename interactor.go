package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FormFieldBinding drives one fill. Restricted fields reject direct
// assignment and are typed through synthetic events.
type FormFieldBinding struct {
	Label      string
	Locator    Locator
	Value      string
	Verify     bool
	Restricted bool
}

func (b FormFieldBinding) name() string {
	if b.Label != "" {
		return b.Label
	}
	return b.Locator.String()
}

// Interactor combines waiting, retrying and typing into the actions the
// checkout stages are written in.
type Interactor struct {
	conditions *ConditionEngine
	typist     *InputSynthesizer
	clicks     RetryPolicy
	timeout    time.Duration
	sleep      SleepFunc
	log        *zap.Logger
}

func NewInteractor(conditions *ConditionEngine, typist *InputSynthesizer, clicks RetryPolicy, timeout time.Duration, sleep SleepFunc, log *zap.Logger) *Interactor {
	if sleep == nil {
		sleep = sleepContext
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Interactor{
		conditions: conditions,
		typist:     typist,
		clicks:     clicks,
		timeout:    timeout,
		sleep:      sleep,
		log:        log,
	}
}

// WaitAndClick waits for loc to become clickable and clicks it, retrying
// while the click is intercepted by an overlay.
func (in *Interactor) WaitAndClick(ctx context.Context, s *Session, loc Locator, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = in.timeout
	}
	el, err := in.conditions.Await(ctx, s, Clickable(loc), timeout)
	if err != nil {
		return err
	}

	attempt := 0
	err = Retry(ctx, in.clicks, in.sleep, func(ctx context.Context) error {
		attempt++
		err := el.Click(ctx)
		if errors.Is(err, ErrActionIntercepted) {
			in.log.Warn("click intercepted, retrying",
				zap.Stringer("locator", loc),
				zap.Int("attempt", attempt),
				zap.Int("attempts_left", in.clicks.MaxAttempts-attempt))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("clicking %s: %w", loc, err)
	}
	return nil
}

// Fill commits binding.Value into its field and, when asked, reads it back.
func (in *Interactor) Fill(ctx context.Context, s *Session, b FormFieldBinding) error {
	el, err := in.conditions.Await(ctx, s, Present(b.Locator), in.timeout)
	if err != nil {
		return fmt.Errorf("filling %s: %w", b.name(), err)
	}
	in.warnAmbiguous(ctx, s, b)

	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("clearing %s: %w", b.name(), err)
	}

	if b.Restricted {
		err = in.typist.Type(ctx, el, b.Value)
	} else {
		err = el.SetValue(ctx, b.Value)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", b.name(), err)
	}

	if !b.Verify {
		return nil
	}

	got, err := el.Value(ctx)
	if err != nil {
		return fmt.Errorf("reading back %s: %w", b.name(), err)
	}
	if got != b.Value {
		return &MismatchError{Field: b.name(), Want: b.Value, Got: got}
	}
	return nil
}

// warnAmbiguous flags a locator that matches more than one field. The first
// match is still the one filled.
func (in *Interactor) warnAmbiguous(ctx context.Context, s *Session, b FormFieldBinding) {
	els, err := s.FindAll(ctx, b.Locator)
	if err != nil {
		in.log.Debug("counting matches failed", zap.String("field", b.name()), zap.Error(err))
		return
	}
	if len(els) > 1 {
		in.log.Warn("locator matches several elements",
			zap.String("field", b.name()),
			zap.Stringer("locator", b.Locator),
			zap.Int("matches", len(els)))
	}
}

// FillAll fills bindings in order and stops at the first failure.
func (in *Interactor) FillAll(ctx context.Context, s *Session, bindings []FormFieldBinding) error {
	for _, b := range bindings {
		if err := in.Fill(ctx, s, b); err != nil {
			return err
		}
		in.log.Debug("field filled", zap.String("field", b.name()), zap.Bool("verified", b.Verify))
	}
	return nil
}

// RefreshUntil reloads the document and re-waits for cond, up to
// policy.Attempts times.
func (in *Interactor) RefreshUntil(ctx context.Context, s *Session, cond Condition, policy FallbackPolicy) (Element, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := policy.Timeout
	if timeout <= 0 {
		timeout = in.timeout
	}

	var last error
	for i := 1; i <= attempts; i++ {
		in.log.Info("refreshing page", zap.Stringer("condition", cond), zap.Int("attempt", i), zap.Int("attempts", attempts))

		if err := in.refresh(ctx, s, policy.PageLoad); err != nil {
			last = err
			in.log.Warn("refresh failed", zap.Int("attempt", i), zap.Error(err))
		} else if err := in.sleep(ctx, policy.Settle); err != nil {
			return nil, err
		} else {
			el, err := in.conditions.Await(ctx, s, cond, timeout)
			if err == nil {
				in.log.Info("found after refresh", zap.Stringer("condition", cond), zap.Int("attempt", i))
				return el, nil
			}
			last = err
			in.log.Warn("refresh attempt failed", zap.Int("attempt", i), zap.Error(err))
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &FallbackError{Attempts: attempts, Last: last}
}

// refresh reloads the page within pageLoad. A reload that outlives it is a
// failed attempt, not the end of the run.
func (in *Interactor) refresh(ctx context.Context, s *Session, pageLoad time.Duration) error {
	if pageLoad <= 0 {
		return s.Refresh(ctx)
	}
	loadCtx, cancel := context.WithTimeout(ctx, pageLoad)
	defer cancel()

	err := s.Refresh(loadCtx)
	if err != nil && ctx.Err() == nil && loadCtx.Err() != nil {
		return fmt.Errorf("page did not load within %v: %w", pageLoad, err)
	}
	return err
}
