package lottery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/luckyspin/rewards-engine/internal/model"
)

// ActivateDue opens every UPCOMING lottery whose start date has passed.
func (e *Engine) ActivateDue(ctx context.Context, now time.Time) (int, error) {
	ls, err := e.List(ctx, model.LotteryUpcoming)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range ls {
		if l.StartDate.After(now) {
			continue
		}
		if _, err := e.Activate(ctx, l.ID); err != nil {
			// Another instance got there first.
			if errors.Is(err, model.ErrInvalidState) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// due reports whether an ACTIVE lottery should be drawn at now: its draw
// date has passed, or with no draw date, its end date has.
func due(l model.Lottery, now time.Time) bool {
	if l.DrawDate != nil {
		return !l.DrawDate.After(now)
	}
	return !l.EndDate.After(now)
}

// DrawDue draws every ACTIVE lottery that is due.
func (e *Engine) DrawDue(ctx context.Context, now time.Time) (int, error) {
	ls, err := e.List(ctx, model.LotteryActive)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range ls {
		if !due(l.Lottery, now) {
			continue
		}
		if _, err := e.Draw(ctx, l.ID); err != nil {
			if errors.Is(err, model.ErrInvalidState) {
				continue
			}
			slog.Error("scheduled draw failed", "lottery_id", l.ID, "err", err)
			continue
		}
		n++
	}
	return n, nil
}

// Scheduler runs the lottery lifecycle on a cron schedule.
type Scheduler struct {
	engine   *Engine
	spec     string
	autoDraw bool
	now      func() time.Time
}

// NewScheduler creates a scheduler. spec is a standard five-field cron
// expression or a descriptor such as "@every 1m".
func NewScheduler(engine *Engine, spec string, autoDraw bool) *Scheduler {
	return &Scheduler{engine: engine, spec: spec, autoDraw: autoDraw, now: time.Now}
}

// Tick runs one pass: activation, then draws if enabled.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()
	if n, err := s.engine.ActivateDue(ctx, now); err != nil {
		slog.Error("activate due lotteries", "err", err)
	} else if n > 0 {
		slog.Info("lotteries activated", "count", n)
	}
	if !s.autoDraw {
		return
	}
	if n, err := s.engine.DrawDue(ctx, now); err != nil {
		slog.Error("draw due lotteries", "err", err)
	} else if n > 0 {
		slog.Info("lotteries drawn", "count", n)
	}
}

// Run starts the cron loop and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.spec, func() { s.Tick(ctx) }); err != nil {
		return err
	}
	c.Start()
	slog.Info("lottery scheduler started", "spec", s.spec, "auto_draw", s.autoDraw)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
