package media

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mssola/useragent"
)

const (
	PositionStep = 0.1
	VolumeStep   = 0.1
)

var ErrFullscreenUnsupported = errors.New("fullscreen not supported")

// Fullscreener is implemented by elements that can take over the screen.
type Fullscreener interface {
	RequestFullscreen() error
}

// Player is a self-contained playback unit around one clock.
type Player struct {
	element  Element
	clock    *Clock
	position *Scrubber
	volume   *Scrubber
}

func NewPlayer(el Element) *Player {
	clock := NewClock(el)
	p := &Player{
		element:  el,
		clock:    clock,
		position: NewScrubber(DurationRange(clock), PositionStep),
		volume:   NewScrubber(FixedRange(0, 1), VolumeStep),
	}
	p.position.OnChange = clock.Seek
	p.position.OnCommit = clock.Seek
	p.volume.OnChange = clock.SetVolume
	p.volume.OnCommit = clock.SetVolume
	return p
}

func (p *Player) Load(src, poster string) {
	p.clock.Load(src, poster)
}

func (p *Player) Clock() *Clock                { return p.clock }
func (p *Player) PositionScrubber() *Scrubber { return p.position }
func (p *Player) VolumeScrubber() *Scrubber   { return p.volume }

func (p *Player) TogglePlay() error {
	if p.clock.State().Playing {
		return p.clock.Pause()
	}
	return p.clock.Play()
}

func (p *Player) ToggleMute() {
	p.clock.ToggleMute()
}

func (p *Player) RequestFullscreen() error {
	fs, ok := p.element.(Fullscreener)
	if !ok {
		return ErrFullscreenUnsupported
	}
	if err := fs.RequestFullscreen(); err != nil {
		return fmt.Errorf("request fullscreen: %w", err)
	}
	return nil
}

type PlayerView struct {
	Source      string     `json:"src"`
	Poster      string     `json:"poster,omitempty"`
	State       ClockState `json:"-"`
	StateName   string     `json:"state"`
	Position    float64    `json:"position"`
	Duration    float64    `json:"duration"`
	TimeLabel   string     `json:"timeLabel"`
	Playing     bool       `json:"playing"`
	Muted       bool       `json:"muted"`
	VolumeLevel float64    `json:"volumeLevel"`
	Seekable    bool       `json:"seekable"`
}

// View is a render snapshot. The volume track shows zero while muted.
func (p *Player) View() PlayerView {
	src, poster := p.clock.Source()
	st := p.clock.State()
	status := p.clock.Status()
	return PlayerView{
		Source:      src,
		Poster:      poster,
		State:       status,
		StateName:   status.String(),
		Position:    st.Position,
		Duration:    st.Duration,
		TimeLabel:   FormatTime(st.Position) + " / " + FormatTime(st.Duration),
		Playing:     st.Playing,
		Muted:       st.Muted,
		VolumeLevel: st.AudibleVolume(),
		Seekable:    p.position.Enabled(),
	}
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// ParseTime reads an m:ss (or h:mm:ss) label back into seconds.
func ParseTime(label string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(label), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	total := 0
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || (i > 0 && (n > 59 || len(part) != 2)) {
			return 0, false
		}
		total = total*60 + n
	}
	return float64(total), true
}

// FullscreenSupported reports whether the browser behind userAgent can put a video
// element into fullscreen. iPhone Safari only offers its native player.
func FullscreenSupported(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return true
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		return false
	}
	switch ua.Platform() {
	case "iPhone", "iPod", "iPod touch":
		return false
	}
	return !strings.Contains(ua.OS(), "iPhone OS")
}
