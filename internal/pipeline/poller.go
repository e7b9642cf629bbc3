package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const defaultPollInterval = 60 * time.Second

// Runner runs one pass for a user. *Service satisfies it.
type Runner interface {
	Run(ctx context.Context, userID string, opts Options) (Report, error)
}

// UserLister enumerates the users to poll.
type UserLister interface {
	List(ctx context.Context) ([]string, error)
}

// Ticker is the subset of *time.Ticker the poller needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker adapts time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker { return timeTicker{time.NewTicker(d)} }

// Poller runs a pass for every registered user on a fixed interval.
type Poller struct {
	Runner    Runner
	Users     UserLister
	Options   Options
	Interval  time.Duration
	NewTicker func(time.Duration) Ticker
	Logger    *slog.Logger
	// OnPass, when set, observes every pass outcome.
	OnPass func(user string, rep Report, err error)
}

// NewPoller constructs a Poller with a wall-clock ticker.
func NewPoller(runner Runner, users UserLister, opts Options, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		Runner:    runner,
		Users:     users,
		Options:   opts,
		Interval:  interval,
		NewTicker: NewTimeTicker,
		Logger:    logger,
	}
}

// Run polls until ctx is canceled. A pass in flight when ctx is canceled
// sees the cancellation at its next network call. Run never returns a pass
// error; failures are logged and the next tick tries again.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.NewTicker(p.Interval)
	defer ticker.Stop()
	p.Logger.InfoContext(ctx, "poller started", slog.Duration("interval", p.Interval))
	for {
		select {
		case <-ctx.Done():
			p.Logger.InfoContext(ctx, "poller stopped")
			return nil
		case <-ticker.C():
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	users, err := p.Users.List(ctx)
	if err != nil {
		p.Logger.ErrorContext(ctx, "list users", "error", err)
		return
	}
	for _, user := range users {
		if ctx.Err() != nil {
			return
		}
		rep, err := p.pass(ctx, user)
		if err != nil {
			p.Logger.ErrorContext(ctx, "poll pass failed", slog.String("user", user), "error", err)
		}
		if p.OnPass != nil {
			p.OnPass(user, rep, err)
		}
	}
}

func (p *Poller) pass(ctx context.Context, user string) (rep Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass panicked: %v", r)
		}
	}()
	return p.Runner.Run(ctx, user, p.Options)
}
