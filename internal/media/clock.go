package media

import (
	"errors"
	"fmt"
	"math"
	"sync"
)

// SyncTolerance is the drift, in seconds, a follower clock may have before it is
// snapped to its leader.
const SyncTolerance = 0.1

var (
	ErrNotReady         = errors.New("media not ready")
	ErrTransportClaimed = errors.New("transport is driven by a comparison")
)

type ClockState int

const (
	StateIdle ClockState = iota
	StateLoading
	StateReady
	StatePlaying
)

func (s ClockState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// PlaybackState is a copy of a clock's state. Duration is only meaningful when
// DurationKnown is true.
type PlaybackState struct {
	Position      float64 `json:"position"`
	Duration      float64 `json:"duration"`
	DurationKnown bool    `json:"durationKnown"`
	Playing       bool    `json:"playing"`
	Volume        float64 `json:"volume"`
	Muted         bool    `json:"muted"`
}

// AudibleVolume is what the element should actually output.
func (s PlaybackState) AudibleVolume() float64 {
	if s.Muted {
		return 0
	}
	return s.Volume
}

type EventKind int

const (
	EventLoad EventKind = iota
	EventDuration
	EventPosition
	EventPlaying
	EventVolume
)

type Event struct {
	Kind  EventKind
	State PlaybackState
}

// Events receives notifications from an Element for one opened source.
type Events interface {
	MetadataReady(duration float64)
	TimeUpdate(position float64)
}

// Element is the runtime facility that decodes and renders a media resource.
// Callbacks on Events may arrive from any goroutine.
type Element interface {
	Open(src, poster string, events Events)
	Play() error
	Pause()
	Seek(seconds float64)
	SetVolume(volume float64)
}

// Clock tracks playback of a single Element and is the only writer of its state.
type Clock struct {
	element Element

	mu          sync.Mutex
	src         string
	poster      string
	gen         uint64
	loading     bool
	state       PlaybackState
	pendingSeek *float64
	loop        bool
	claimed     bool
	subs        map[int]func(Event)
	nextSub     int
}

func NewClock(el Element) *Clock {
	return &Clock{
		element: el,
		state:   PlaybackState{Volume: 1},
		subs:    make(map[int]func(Event)),
	}
}

// Load switches the clock to a new source. Notifications still in flight for the
// previous source are dropped.
func (c *Clock) Load(src, poster string) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	wasPlaying := c.state.Playing
	c.src, c.poster = src, poster
	c.loading = true
	c.pendingSeek = nil
	c.state.Position = 0
	c.state.Duration = 0
	c.state.DurationKnown = false
	c.state.Playing = false
	st := c.state
	c.mu.Unlock()

	if wasPlaying {
		c.element.Pause()
	}
	c.element.SetVolume(st.AudibleVolume())
	c.notify(Event{Kind: EventLoad, State: st})
	c.element.Open(src, poster, &sourceEvents{clock: c, gen: gen})
}

func (c *Clock) Source() (src, poster string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.src, c.poster
}

func (c *Clock) State() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Clock) Status() ClockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status()
}

func (c *Clock) status() ClockState {
	switch {
	case c.state.Playing:
		return StatePlaying
	case c.state.DurationKnown:
		return StateReady
	case c.loading:
		return StateLoading
	default:
		return StateIdle
	}
}

// SetLoop makes the clock restart from zero when playback reaches the end.
func (c *Clock) SetLoop(loop bool) {
	c.mu.Lock()
	c.loop = loop
	c.mu.Unlock()
}

func (c *Clock) Play() error {
	if c.isClaimed() {
		return ErrTransportClaimed
	}
	return c.play()
}

func (c *Clock) Pause() error {
	if c.isClaimed() {
		return ErrTransportClaimed
	}
	c.pause()
	return nil
}

func (c *Clock) play() error {
	c.mu.Lock()
	if !c.state.DurationKnown {
		c.mu.Unlock()
		return ErrNotReady
	}
	if c.state.Playing {
		c.mu.Unlock()
		return nil
	}
	c.state.Playing = true
	gen, src := c.gen, c.src
	st := c.state
	c.mu.Unlock()

	if err := c.element.Play(); err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state.Playing = false
		}
		c.mu.Unlock()
		return fmt.Errorf("play %s: %w", src, err)
	}
	c.notify(Event{Kind: EventPlaying, State: st})
	return nil
}

func (c *Clock) pause() {
	c.mu.Lock()
	if !c.state.Playing {
		c.mu.Unlock()
		return
	}
	c.state.Playing = false
	st := c.state
	c.mu.Unlock()

	c.element.Pause()
	c.notify(Event{Kind: EventPlaying, State: st})
}

// Seek moves the position, clamped to the known duration. Before metadata arrives
// the request is held and applied once the duration is known.
func (c *Clock) Seek(seconds float64) {
	if math.IsNaN(seconds) {
		return
	}
	c.mu.Lock()
	if !c.state.DurationKnown {
		if c.loading {
			c.pendingSeek = &seconds
		}
		c.mu.Unlock()
		return
	}
	seconds = clamp(seconds, 0, c.state.Duration)
	c.state.Position = seconds
	st := c.state
	c.mu.Unlock()

	c.element.Seek(seconds)
	c.notify(Event{Kind: EventPosition, State: st})
}

func (c *Clock) SetVolume(v float64) {
	if math.IsNaN(v) {
		return
	}
	v = clamp(v, 0, 1)
	c.mu.Lock()
	c.state.Volume = v
	if v == 0 {
		c.state.Muted = true
	} else if c.state.Muted {
		c.state.Muted = false
	}
	st := c.state
	c.mu.Unlock()

	c.element.SetVolume(st.AudibleVolume())
	c.notify(Event{Kind: EventVolume, State: st})
}

// ToggleMute flips the mute flag. The stored volume is untouched so unmuting
// restores the previous level.
func (c *Clock) ToggleMute() {
	c.mu.Lock()
	c.state.Muted = !c.state.Muted
	st := c.state
	c.mu.Unlock()

	c.element.SetVolume(st.AudibleVolume())
	c.notify(Event{Kind: EventVolume, State: st})
}

// Subscribe registers fn for every state change. The returned func removes it.
func (c *Clock) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Clock) claimTransport() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed {
		return ErrTransportClaimed
	}
	c.claimed = true
	return nil
}

func (c *Clock) releaseTransport() {
	c.mu.Lock()
	c.claimed = false
	c.mu.Unlock()
}

func (c *Clock) isClaimed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimed
}

func (c *Clock) metadataReady(gen uint64, duration float64) {
	if math.IsNaN(duration) || duration < 0 {
		return
	}
	c.mu.Lock()
	if gen != c.gen || !c.loading {
		c.mu.Unlock()
		return
	}
	c.loading = false
	c.state.Duration = duration
	c.state.DurationKnown = true
	var seekTo *float64
	if c.pendingSeek != nil {
		t := clamp(*c.pendingSeek, 0, duration)
		c.state.Position = t
		seekTo = &t
		c.pendingSeek = nil
	}
	st := c.state
	c.mu.Unlock()

	if seekTo != nil {
		c.element.Seek(*seekTo)
	}
	c.notify(Event{Kind: EventDuration, State: st})
}

func (c *Clock) timeUpdate(gen uint64, position float64) {
	if math.IsNaN(position) {
		return
	}
	c.mu.Lock()
	if gen != c.gen || !c.state.DurationKnown {
		c.mu.Unlock()
		return
	}
	c.state.Position = clamp(position, 0, c.state.Duration)
	ended := c.state.Playing && c.state.Position >= c.state.Duration
	restart := ended && c.loop
	if restart {
		c.state.Position = 0
	} else if ended {
		c.state.Playing = false
	}
	st := c.state
	c.mu.Unlock()

	switch {
	case restart:
		c.element.Seek(0)
	case ended:
		c.element.Pause()
	}
	c.notify(Event{Kind: EventPosition, State: st})
	if ended && !restart {
		c.notify(Event{Kind: EventPlaying, State: st})
	}
}

func (c *Clock) notify(ev Event) {
	c.mu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

type sourceEvents struct {
	clock *Clock
	gen   uint64
}

func (e *sourceEvents) MetadataReady(duration float64) {
	e.clock.metadataReady(e.gen, duration)
}

func (e *sourceEvents) TimeUpdate(position float64) {
	e.clock.timeUpdate(e.gen, position)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
