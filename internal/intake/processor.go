package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultResultURL    = "https://example.com/sample-processed-video.mp4"
	DefaultResultPoster = "https://images.unsplash.com/photo-1536240478700-b869070f9279?ixlib=rb-4.0.3"

	DefaultProgressInterval = 500 * time.Millisecond
	DefaultProgressStep     = 10
)

var ErrProcessingFault = errors.New("processing fault")

// ResultLocator makes the processed output of a job available and returns the
// URL it can be played from.
type ResultLocator interface {
	ResultURL(ctx context.Context, job Job) (string, error)
}

// StaticLocator always returns the same URL, DefaultResultURL when empty.
type StaticLocator string

func (s StaticLocator) ResultURL(context.Context, Job) (string, error) {
	if s == "" {
		return DefaultResultURL, nil
	}
	return string(s), nil
}

// SimulatedProcessor advances progress by Step every Interval and completes at
// 100 with the URL from Locator. FailAt > 0 injects a fault once progress
// reaches that percentage.
type SimulatedProcessor struct {
	Clock    clockwork.Clock
	Interval time.Duration
	Step     int
	Locator  ResultLocator
	FailAt   int
}

func (p *SimulatedProcessor) Start(ctx context.Context, job Job, cb Callbacks) CancelFunc {
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	step := p.Step
	if step <= 0 {
		step = DefaultProgressStep
	}
	locator := p.Locator
	if locator == nil {
		locator = StaticLocator("")
	}

	ctx, cancel := context.WithCancel(ctx)
	ticker := clock.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		progress := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}

			progress = min(progress+step, 100)
			if p.FailAt > 0 && progress >= p.FailAt {
				cb.Failure(fmt.Errorf("%w at %d%%", ErrProcessingFault, progress))
				return
			}
			cb.Progress(progress)
			if progress < 100 {
				continue
			}

			url, err := locator.ResultURL(ctx, job)
			if err != nil {
				cb.Failure(fmt.Errorf("locate result: %w", err))
				return
			}
			cb.Complete(url)
			return
		}
	}()
	return CancelFunc(cancel)
}
