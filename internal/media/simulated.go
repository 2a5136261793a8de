package media

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type SimulatedConfig struct {
	Clock clockwork.Clock
	// Duration resolves a source. Sources it does not know never report metadata.
	Duration      func(src string) (float64, bool)
	MetadataDelay time.Duration
	TickInterval  time.Duration
	// Rate scales how fast the position advances relative to wall time.
	Rate float64
}

// SimulatedElement stands in for a decoder: it reports metadata after a delay
// and advances its position on a ticker while playing.
type SimulatedElement struct {
	cfg SimulatedConfig

	mu         sync.Mutex
	events     Events
	duration   float64
	position   float64
	volume     float64
	playing    bool
	fullscreen bool
	stopOpen   context.CancelFunc
	stopTicks  context.CancelFunc
}

func NewSimulatedElement(cfg SimulatedConfig) *SimulatedElement {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 250 * time.Millisecond
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	return &SimulatedElement{cfg: cfg, volume: 1}
}

func (e *SimulatedElement) Open(src, _ string, events Events) {
	e.mu.Lock()
	e.stopLocked()
	e.events = events
	e.position = 0
	e.duration = 0
	e.playing = false
	ctx, cancel := context.WithCancel(context.Background())
	e.stopOpen = cancel
	e.mu.Unlock()

	if e.cfg.Duration == nil {
		return
	}
	duration, ok := e.cfg.Duration(src)
	if !ok {
		return
	}
	if e.cfg.MetadataDelay <= 0 {
		if e.setDuration(ctx, duration) {
			events.MetadataReady(duration)
		}
		return
	}
	timer := e.cfg.Clock.After(e.cfg.MetadataDelay)
	go func() {
		select {
		case <-ctx.Done():
		case <-timer:
			if e.setDuration(ctx, duration) {
				events.MetadataReady(duration)
			}
		}
	}()
}

func (e *SimulatedElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		return nil
	}
	e.playing = true
	ctx, cancel := context.WithCancel(context.Background())
	e.stopTicks = cancel
	ticker := e.cfg.Clock.NewTicker(e.cfg.TickInterval)
	go e.run(ctx, ticker)
	return nil
}

func (e *SimulatedElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playing = false
	if e.stopTicks != nil {
		e.stopTicks()
		e.stopTicks = nil
	}
}

func (e *SimulatedElement) Seek(seconds float64) {
	e.mu.Lock()
	e.position = seconds
	e.mu.Unlock()
}

func (e *SimulatedElement) SetVolume(volume float64) {
	e.mu.Lock()
	e.volume = volume
	e.mu.Unlock()
}

func (e *SimulatedElement) RequestFullscreen() error {
	e.mu.Lock()
	e.fullscreen = true
	e.mu.Unlock()
	return nil
}

func (e *SimulatedElement) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *SimulatedElement) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *SimulatedElement) Fullscreen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fullscreen
}

func (e *SimulatedElement) run(ctx context.Context, ticker clockwork.Ticker) {
	defer ticker.Stop()
	step := e.cfg.TickInterval.Seconds() * e.cfg.Rate
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
		e.mu.Lock()
		if ctx.Err() != nil {
			e.mu.Unlock()
			return
		}
		e.position += step
		if e.position > e.duration {
			e.position = e.duration
		}
		pos, events := e.position, e.events
		e.mu.Unlock()

		if events != nil {
			events.TimeUpdate(pos)
		}
	}
}

func (e *SimulatedElement) setDuration(ctx context.Context, d float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	e.duration = d
	return true
}

func (e *SimulatedElement) stopLocked() {
	if e.stopOpen != nil {
		e.stopOpen()
		e.stopOpen = nil
	}
	if e.stopTicks != nil {
		e.stopTicks()
		e.stopTicks = nil
	}
}
