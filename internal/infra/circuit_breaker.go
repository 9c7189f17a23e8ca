package infra

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // calls pass through
	BreakerOpen                         // calls are refused until the cool-down ends
	BreakerHalfOpen                     // probing; a failure reopens
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned by Do while the breaker refuses calls.
var ErrBreakerOpen = errors.New("breaker open: storage recently unavailable")

type BreakerConfig struct {
	Name           string
	TripAfter      int           // consecutive failures that open the breaker
	RecoverAfter   int           // consecutive half-open successes that close it
	CoolDown       time.Duration // time spent open before probing
	CountsAsFailed func(error) bool
}

// Breaker stops background work (the periodic stock audit) from piling
// transactions onto a database that is already failing. Only errors accepted
// by CountsAsFailed move it; domain errors are ignored.
type Breaker struct {
	cfg BreakerConfig

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 3
	}
	if cfg.RecoverAfter <= 0 {
		cfg.RecoverAfter = 1
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 2 * time.Minute
	}
	if cfg.CountsAsFailed == nil {
		cfg.CountsAsFailed = func(err error) bool { return err != nil }
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// State reports the current state, moving open to half-open once the
// cool-down has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.CoolDown {
		b.setLocked(BreakerHalfOpen)
	}
	return b.state
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.stateLocked() == BreakerOpen {
		b.mu.Unlock()
		return ErrBreakerOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cfg.CountsAsFailed(err) {
		b.failures++
		b.successes = 0
		if b.state == BreakerHalfOpen || b.failures >= b.cfg.TripAfter {
			b.openedAt = b.now()
			b.setLocked(BreakerOpen)
		}
		return err
	}
	b.failures = 0
	if b.state == BreakerHalfOpen {
		b.successes++
		if b.successes >= b.cfg.RecoverAfter {
			b.setLocked(BreakerClosed)
		}
	}
	return err
}

func (b *Breaker) setLocked(s BreakerState) {
	if b.state == s {
		return
	}
	log.Warn().
		Str("breaker", b.cfg.Name).
		Str("from", b.state.String()).
		Str("to", s.String()).
		Msg("breaker state change")
	b.state = s
	b.successes = 0
	if s == BreakerClosed {
		b.failures = 0
	}
}
