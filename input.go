package main

import (
	"context"
	"fmt"
	"time"
)

type EventType string

const (
	KeyDown    EventType = "keydown"
	KeyPress   EventType = "keypress"
	KeyUp      EventType = "keyup"
	InputEvent EventType = "input"
)

// keystroke is the order a browser fires events for one typed character.
var keystroke = []EventType{KeyDown, KeyPress, KeyUp, InputEvent}

type SyntheticEvent struct {
	Type EventType
	Key  string
}

// DelaySchedule decides the pause after the i-th typed character.
type DelaySchedule interface {
	Delay(i int) time.Duration
}

type FixedDelay time.Duration

func (d FixedDelay) Delay(int) time.Duration { return time.Duration(d) }

// NoDelay types as fast as events can be dispatched.
var NoDelay DelaySchedule = FixedDelay(0)

// InputSynthesizer types into restricted fields one character at a time.
type InputSynthesizer struct {
	schedule DelaySchedule
	sleep    SleepFunc
}

func NewInputSynthesizer(schedule DelaySchedule, sleep SleepFunc) *InputSynthesizer {
	if schedule == nil {
		schedule = NoDelay
	}
	if sleep == nil {
		sleep = sleepContext
	}
	return &InputSynthesizer{schedule: schedule, sleep: sleep}
}

// Type appends text rune by rune, firing a full keystroke after each.
func (s *InputSynthesizer) Type(ctx context.Context, el Element, text string) error {
	for i, r := range []rune(text) {
		key := string(r)
		if err := el.AppendValue(ctx, key); err != nil {
			return fmt.Errorf("appending character %d: %w", i+1, err)
		}
		for _, typ := range keystroke {
			if err := el.Dispatch(ctx, SyntheticEvent{Type: typ, Key: key}); err != nil {
				return fmt.Errorf("dispatching %s for character %d: %w", typ, i+1, err)
			}
		}
		if err := s.sleep(ctx, s.schedule.Delay(i)); err != nil {
			return err
		}
	}
	return nil
}
