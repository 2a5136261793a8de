package media

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

const (
	DefaultWipePercent = 50
	WipeStep           = 1
)

type ComparisonState struct {
	Primary     PlaybackState `json:"primary"`
	Secondary   PlaybackState `json:"secondary"`
	WipePercent int           `json:"wipePercent"`
	Playing     bool          `json:"playing"`
}

// Comparison plays an original (primary) and a processed (secondary) stream in
// lock step. The primary leads; the secondary is snapped to it whenever the two
// drift apart by more than SyncTolerance. The left WipePercent of the frame shows
// the secondary, the rest shows the primary.
type Comparison struct {
	primary   *Clock
	secondary *Clock
	wipe      *Scrubber

	mu      sync.Mutex
	playing bool
	percent int
	closed  bool
	unsub   []func()
}

// NewComparison takes over the transport of both clocks until Close.
func NewComparison(primary, secondary *Clock) (*Comparison, error) {
	if primary == secondary {
		return nil, errors.New("comparison needs two distinct clocks")
	}
	if err := primary.claimTransport(); err != nil {
		return nil, fmt.Errorf("claim primary: %w", err)
	}
	if err := secondary.claimTransport(); err != nil {
		primary.releaseTransport()
		return nil, fmt.Errorf("claim secondary: %w", err)
	}

	c := &Comparison{
		primary:   primary,
		secondary: secondary,
		percent:   DefaultWipePercent,
	}
	c.wipe = NewScrubber(FixedRange(0, 100), WipeStep)
	c.wipe.OnChange = func(v float64) { c.SetWipe(int(math.Round(v))) }
	c.wipe.OnCommit = c.wipe.OnChange

	c.unsub = append(c.unsub,
		primary.Subscribe(func(ev Event) {
			switch ev.Kind {
			case EventPosition:
				c.resync()
			case EventDuration:
				c.clockReady(primary)
			case EventPlaying:
				c.clockStopped(ev.State)
			}
		}),
		secondary.Subscribe(func(ev Event) {
			switch ev.Kind {
			case EventDuration:
				c.clockReady(secondary)
			case EventPlaying:
				c.clockStopped(ev.State)
			}
		}),
	)
	return c, nil
}

// Load opens both sources. The shared transport state is kept so a playing
// comparison resumes as each stream becomes ready.
func (c *Comparison) Load(primarySrc, secondarySrc string) {
	c.primary.Load(primarySrc, "")
	c.secondary.Load(secondarySrc, "")
}

func (c *Comparison) Primary() *Clock         { return c.primary }
func (c *Comparison) Secondary() *Clock       { return c.secondary }
func (c *Comparison) WipeScrubber() *Scrubber { return c.wipe }

// Play starts both clocks. A clock that cannot start does not stop the other one;
// it joins once it is ready.
func (c *Comparison) Play() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("comparison closed")
	}
	c.playing = true
	c.mu.Unlock()

	err := errors.Join(c.primary.play(), c.secondary.play())
	c.resync()
	return err
}

// Pause stops both clocks. It does nothing once the comparison is closed, since
// the clocks may belong to someone else by then.
func (c *Comparison) Pause() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.playing = false
	c.mu.Unlock()

	c.primary.pause()
	c.secondary.pause()
}

func (c *Comparison) TogglePlay() error {
	if c.Playing() {
		c.Pause()
		return nil
	}
	return c.Play()
}

func (c *Comparison) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Comparison) SetLoop(loop bool) {
	c.primary.SetLoop(loop)
	c.secondary.SetLoop(loop)
}

// SetWipe moves the reveal boundary. It never touches playback.
func (c *Comparison) SetWipe(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	c.mu.Lock()
	if !c.closed {
		c.percent = percent
	}
	c.mu.Unlock()
}

func (c *Comparison) Wipe() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.percent
}

// ClipInsetRight is how much of the secondary layer, in percent from the right
// edge, is hidden.
func (c *Comparison) ClipInsetRight() int {
	return 100 - c.Wipe()
}

func (c *Comparison) State() ComparisonState {
	c.mu.Lock()
	playing, percent := c.playing, c.percent
	c.mu.Unlock()
	return ComparisonState{
		Primary:     c.primary.State(),
		Secondary:   c.secondary.State(),
		WipePercent: percent,
		Playing:     playing,
	}
}

// Drift is the absolute position difference, or 0 while either side has no
// duration yet.
func (c *Comparison) Drift() float64 {
	p, s := c.primary.State(), c.secondary.State()
	if !p.DurationKnown || !s.DurationKnown {
		return 0
	}
	return math.Abs(p.Position - s.Position)
}

// Close releases both transports and stops listening to the clocks.
func (c *Comparison) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()

	for _, fn := range unsub {
		fn()
	}
	c.primary.releaseTransport()
	c.secondary.releaseTransport()
}

func (c *Comparison) clockReady(clock *Clock) {
	c.mu.Lock()
	playing, closed := c.playing, c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if playing {
		_ = clock.play()
	}
	c.resync()
}

// clockStopped handles a clock that paused on its own at the end of its media.
// Whichever stream ends first stops the pair, and the follower is lined up with
// the leader so both show the same frame.
func (c *Comparison) clockStopped(st PlaybackState) {
	if st.Playing || !st.DurationKnown || st.Position < st.Duration {
		return
	}
	c.mu.Lock()
	playing, closed := c.playing, c.closed
	c.mu.Unlock()
	if closed || !playing {
		return
	}
	c.Pause()
	c.resync()
}

func (c *Comparison) resync() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	p := c.primary.State()
	if !p.DurationKnown {
		return
	}
	if st := c.secondary.Status(); st != StateReady && st != StatePlaying {
		return
	}
	s := c.secondary.State()
	if math.Abs(p.Position-s.Position) > SyncTolerance {
		c.secondary.Seek(p.Position)
	}
}
