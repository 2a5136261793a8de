package media

import (
	"math"
	"sync"
)

// Range reports the value interval of a scrubber track. ok is false while the
// interval is unavailable, which makes the track inert.
type Range func() (min, max float64, ok bool)

func FixedRange(min, max float64) Range {
	return func() (float64, float64, bool) { return min, max, true }
}

// DurationRange spans the clock's duration once it is known.
func DurationRange(c *Clock) Range {
	return func() (float64, float64, bool) {
		st := c.State()
		if !st.DurationKnown {
			return 0, 0, false
		}
		return 0, st.Duration, true
	}
}

// Scrubber maps pointer positions along a track to values. OnChange fires while
// dragging, OnCommit fires once on release.
type Scrubber struct {
	OnChange func(float64)
	OnCommit func(float64)

	rng  Range
	step float64

	mu       sync.Mutex
	dragging bool
}

func NewScrubber(rng Range, step float64) *Scrubber {
	return &Scrubber{rng: rng, step: step}
}

func (s *Scrubber) Enabled() bool {
	_, _, ok := s.rng()
	return ok
}

func (s *Scrubber) Dragging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dragging
}

// ValueAt maps offset on a track of the given width to a value in the range.
func (s *Scrubber) ValueAt(offset, width float64) (float64, bool) {
	lo, hi, ok := s.rng()
	if !ok || width <= 0 || math.IsNaN(offset) || hi < lo {
		return 0, false
	}
	frac := clamp(offset/width, 0, 1)
	v := lo + frac*(hi-lo)
	if s.step > 0 {
		v = lo + math.Round((v-lo)/s.step)*s.step
	}
	return clamp(v, lo, hi), true
}

func (s *Scrubber) Press(offset, width float64) {
	v, ok := s.ValueAt(offset, width)
	if !ok {
		return
	}
	s.mu.Lock()
	s.dragging = true
	s.mu.Unlock()
	emit(s.OnChange, v)
}

func (s *Scrubber) Drag(offset, width float64) {
	s.mu.Lock()
	dragging := s.dragging
	s.mu.Unlock()
	if !dragging {
		return
	}
	if v, ok := s.ValueAt(offset, width); ok {
		emit(s.OnChange, v)
	}
}

func (s *Scrubber) Release(offset, width float64) {
	s.mu.Lock()
	dragging := s.dragging
	s.dragging = false
	s.mu.Unlock()
	if !dragging {
		return
	}
	if v, ok := s.ValueAt(offset, width); ok {
		emit(s.OnCommit, v)
	}
}

// Click is a press and release at the same point.
func (s *Scrubber) Click(offset, width float64) {
	s.Press(offset, width)
	s.Release(offset, width)
}

func emit(fn func(float64), v float64) {
	if fn != nil {
		fn(v)
	}
}
