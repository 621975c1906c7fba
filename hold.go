package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

type holdReason int

const (
	holdConfirmed holdReason = iota
	holdInterrupted
	holdBrowserGone
)

func (r holdReason) String() string {
	switch r {
	case holdConfirmed:
		return "operator confirmed"
	case holdInterrupted:
		return "interrupted"
	case holdBrowserGone:
		return "browser closed"
	default:
		return "unknown"
	}
}

// confirmations closes the returned channel once the operator presses Enter.
// ESC or end of input leave it open, so only an interrupt ends the hold.
func confirmations(r io.Reader) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		reader := bufio.NewReader(r)
		for {
			b, err := reader.ReadByte()
			if err != nil {
				return
			}
			switch b {
			case '\n', '\r':
				close(done)
				return
			case 27:
				return
			}
		}
	}()
	return done
}

var livenessInterval = 2 * time.Second

type liveness interface {
	isAlive() bool
}

// holdOpen keeps the browser up for the operator. After a success it waits
// for confirmation; after a failure only an interrupt (or the operator
// closing the window) ends it, so the failed page stays inspectable.
func holdOpen(ctx context.Context, succeeded bool, confirm <-chan struct{}, driver Driver, log *zap.Logger) holdReason {
	if succeeded {
		fmt.Println(T("hold_success_prompt"))
	} else {
		fmt.Println(T("hold_failure_notice"))
		confirm = nil
	}
	log.Info("holding browser open", zap.Bool("succeeded", succeeded))

	var alive <-chan time.Time
	live, canCheck := driver.(liveness)
	if canCheck {
		ticker := time.NewTicker(livenessInterval)
		defer ticker.Stop()
		alive = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return holdInterrupted
		case <-confirm:
			return holdConfirmed
		case <-alive:
			if !live.isAlive() {
				fmt.Println(T("browser_closed_by_user"))
				return holdBrowserGone
			}
		}
	}
}
