// Package poll decides when to look for externally changed tickets and what
// to do about them.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrStop ends Run without being logged as a failure.
var ErrStop = errors.New("poll: stop")

type Action int

const (
	ActionNone Action = iota
	// ActionReload reloads the board silently.
	ActionReload
	// ActionNotify shows a dismissable notice.
	ActionNotify
)

func (a Action) String() string {
	switch a {
	case ActionReload:
		return "reload"
	case ActionNotify:
		return "notify"
	default:
		return "none"
	}
}

// Decide maps a change count to an action.
func Decide(changed int, autoRefresh bool) (Action, string) {
	if changed <= 0 {
		return ActionNone, ""
	}
	if autoRefresh {
		return ActionReload, ""
	}
	return ActionNotify, NoticeText(changed)
}

func NoticeText(changed int) string {
	return fmt.Sprintf("%d bug(s) have been updated externally. Hit refresh!", changed)
}

type Result struct {
	Changed int
	Action  Action
	Message string
	Err     error
}

// Checker counts tickets changed since the board was loaded.
type Checker func(ctx context.Context) (int, error)

// Poller tracks visibility. Checks are suspended while hidden.
type Poller struct {
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	visible bool
	wake    chan struct{}
}

func New(interval time.Duration, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Poller{interval: interval, logger: logger, visible: true, wake: make(chan struct{}, 1)}
}

func (p *Poller) Interval() time.Duration { return p.interval }

// SetVisible records visibility. It returns true when the client just became
// visible again and an immediate check is due.
func (p *Poller) SetVisible(v bool) (checkNow bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	was := p.visible
	p.visible = v
	if v && !was {
		select {
		case p.wake <- struct{}{}:
		default:
		}
		return true
	}
	return false
}

func (p *Poller) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Run checks on every tick while visible and immediately after visibility is
// restored, until ctx ends or check returns ErrStop.
func (p *Poller) Run(ctx context.Context, autoRefresh func() bool, check Checker, onResult func(Result)) error {
	if p.interval <= 0 {
		return fmt.Errorf("poll: interval must be positive")
	}
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if !p.Visible() {
				p.logger.Debug("poll skipped: not visible")
				continue
			}
		case <-p.wake:
		}
		res, err := p.Once(ctx, autoRefresh(), check)
		if errors.Is(err, ErrStop) {
			return nil
		}
		if onResult != nil {
			onResult(res)
		}
	}
}

// Once runs one check and decides the action.
func (p *Poller) Once(ctx context.Context, autoRefresh bool, check Checker) (Result, error) {
	n, err := check(ctx)
	if err != nil {
		if !errors.Is(err, ErrStop) {
			p.logger.WithError(err).Warn("update check failed")
		}
		return Result{Err: err}, err
	}
	action, msg := Decide(n, autoRefresh)
	p.logger.WithFields(log.Fields{"changed": n, "action": action.String()}).Debug("update check")
	return Result{Changed: n, Action: action, Message: msg}, nil
}
