package intake

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/vidforge/vidforge/internal/auth"
	"github.com/vidforge/vidforge/internal/media"
	"github.com/vidforge/vidforge/internal/validate"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseUploaded   Phase = "uploaded"
	PhaseProcessing Phase = "processing"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

// DefaultFailureMessage is what the user sees for any processing failure. The
// processor's error only goes to the log.
const DefaultFailureMessage = "Processing failed. Please try again."

var (
	ErrLoginRequired   = errors.New("login required")
	ErrIdentityPending = errors.New("identity still loading")
	ErrSessionActive   = errors.New("a session is already in progress")
	ErrNotUploaded     = errors.New("no uploaded file to process")
	ErrNotComplete     = errors.New("processing has not completed")
	errEmptyResult     = errors.New("processing produced no result")
)

// ValidationError is a user-correctable rejection of a submitted file.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type File struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

type Session struct {
	ID              string `json:"id,omitempty"`
	File            *File  `json:"file,omitempty"`
	ValidationError string `json:"validationError,omitempty"`
	Phase           Phase  `json:"phase"`
	Progress        int    `json:"progress"`
	ResultURL       string `json:"resultUrl,omitempty"`
	FailureMessage  string `json:"failureMessage,omitempty"`
}

type Navigator interface {
	NavigateToLogin()
}

type NavigatorFunc func()

func (f NavigatorFunc) NavigateToLogin() { f() }

// Job is the work handed to a Processor. UserID is the account that submitted File.
type Job struct {
	SessionID string
	UserID    string
	File      File
}

// Callbacks may be invoked from any goroutine.
type Callbacks struct {
	Progress func(percent int)
	Complete func(resultURL string)
	Failure  func(err error)
}

type CancelFunc func()

// Processor runs the background work for one accepted file. Start must not
// block; the returned CancelFunc stops further callbacks where possible.
type Processor interface {
	Start(ctx context.Context, job Job, cb Callbacks) CancelFunc
}

type Config struct {
	Session      auth.Session
	Navigator    Navigator
	Processor    Processor
	ResultPoster string
	NewID        func() string
}

// Intake drives one upload session from submission to a playable result.
type Intake struct {
	cfg Config

	mu       sync.Mutex
	session  Session
	owner    string
	gen      uint64
	cancel   CancelFunc
	dragging bool
	subs     map[int]func(Session)
	nextSub  int
}

func New(cfg Config) *Intake {
	if cfg.Session == nil {
		cfg.Session = auth.Anonymous
	}
	if cfg.Navigator == nil {
		cfg.Navigator = NavigatorFunc(func() {})
	}
	if cfg.Processor == nil {
		cfg.Processor = &SimulatedProcessor{}
	}
	if cfg.ResultPoster == "" {
		cfg.ResultPoster = DefaultResultPoster
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Intake{
		cfg:     cfg,
		session: Session{Phase: PhaseIdle},
		subs:    make(map[int]func(Session)),
	}
}

// Submit validates f and, if accepted, starts an uploaded session. A nil file
// (picker dismissed) does nothing. Identity is checked before content, and an
// anonymous caller is sent to login without recording a validation error.
func (i *Intake) Submit(ctx context.Context, f *File) error {
	if f == nil {
		return nil
	}

	user := i.cfg.Session.CurrentUser()
	if user == nil {
		if i.cfg.Session.IsLoading() {
			return ErrIdentityPending
		}
		slog.InfoContext(ctx, "intake: anonymous submit, redirecting to login")
		i.cfg.Navigator.NavigateToLogin()
		return ErrLoginRequired
	}

	i.mu.Lock()
	if i.session.Phase != PhaseIdle {
		i.mu.Unlock()
		return ErrSessionActive
	}

	if msg := validate.VideoFile(f.ContentType, f.Size); msg != "" {
		i.session.ValidationError = msg
		snap := i.snapshot()
		i.mu.Unlock()
		slog.InfoContext(ctx, "intake: file rejected", "user_id", user.ID, "content_type", f.ContentType, "size", f.Size)
		i.notify(snap)
		return &ValidationError{Message: msg}
	}

	file := *f
	i.session = Session{
		ID:    i.cfg.NewID(),
		File:  &file,
		Phase: PhaseUploaded,
	}
	i.owner = user.ID
	snap := i.snapshot()
	i.mu.Unlock()

	slog.InfoContext(ctx, "intake: file accepted",
		"session_id", snap.ID,
		"user_id", user.ID,
		"name", f.Name,
		"size", humanize.IBytes(uint64(f.Size)),
	)
	i.notify(snap)
	return nil
}

// Process moves an uploaded session into processing and starts the processor.
func (i *Intake) Process(ctx context.Context) error {
	i.mu.Lock()
	if i.session.Phase != PhaseUploaded {
		i.mu.Unlock()
		return ErrNotUploaded
	}
	i.session.Phase = PhaseProcessing
	i.gen++
	gen := i.gen
	job := Job{SessionID: i.session.ID, UserID: i.owner, File: *i.session.File}
	snap := i.snapshot()
	i.mu.Unlock()

	slog.InfoContext(ctx, "intake: processing started", "session_id", job.SessionID)
	i.notify(snap)

	runCtx, stop := context.WithCancel(ctx)
	stopProcessor := i.cfg.Processor.Start(runCtx, job, Callbacks{
		Progress: func(p int) { i.progress(gen, p) },
		Complete: func(url string) { i.complete(gen, url) },
		Failure:  func(err error) { i.fail(gen, err) },
	})
	cancel := func() {
		stop()
		if stopProcessor != nil {
			stopProcessor()
		}
	}

	i.mu.Lock()
	if i.gen == gen && i.session.Phase == PhaseProcessing {
		i.cancel = cancel
		cancel = nil
	}
	i.mu.Unlock()
	// the run already finished or was reset while starting
	if cancel != nil {
		cancel()
	}
	return nil
}

// Reset returns to idle from any phase and cancels in-flight processing.
// Callbacks from the abandoned run are ignored.
func (i *Intake) Reset() {
	i.mu.Lock()
	cancel := i.cancel
	i.cancel = nil
	i.gen++
	prev := i.session.ID
	i.session = Session{Phase: PhaseIdle}
	i.owner = ""
	i.dragging = false
	snap := i.snapshot()
	i.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if prev != "" {
		slog.Info("intake: session reset", "session_id", prev)
	}
	i.notify(snap)
}

func (i *Intake) DragEnter() { i.setDragging(true) }
func (i *Intake) DragLeave() { i.setDragging(false) }

func (i *Intake) DragActive() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dragging
}

// Drop submits the first dropped file; any others are ignored.
func (i *Intake) Drop(ctx context.Context, files []File) error {
	i.setDragging(false)
	if len(files) == 0 {
		return nil
	}
	f := files[0]
	return i.Submit(ctx, &f)
}

func (i *Intake) setDragging(v bool) {
	i.mu.Lock()
	i.dragging = v
	i.mu.Unlock()
}

func (i *Intake) Snapshot() Session {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snapshot()
}

// OpenPlayer hands the processed result to p.
func (i *Intake) OpenPlayer(p *media.Player) error {
	i.mu.Lock()
	if i.session.Phase != PhaseComplete {
		i.mu.Unlock()
		return ErrNotComplete
	}
	url := i.session.ResultURL
	i.mu.Unlock()

	p.Load(url, i.cfg.ResultPoster)
	return nil
}

// Subscribe registers fn for every session change. The returned func removes it.
func (i *Intake) Subscribe(fn func(Session)) func() {
	i.mu.Lock()
	id := i.nextSub
	i.nextSub++
	i.subs[id] = fn
	i.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			delete(i.subs, id)
			i.mu.Unlock()
		})
	}
}

func (i *Intake) progress(gen uint64, percent int) {
	i.mu.Lock()
	if gen != i.gen || i.session.Phase != PhaseProcessing {
		i.mu.Unlock()
		return
	}
	percent = min(max(percent, 0), 100)
	if percent <= i.session.Progress {
		i.mu.Unlock()
		return
	}
	i.session.Progress = percent
	snap := i.snapshot()
	i.mu.Unlock()

	i.notify(snap)
}

func (i *Intake) complete(gen uint64, resultURL string) {
	if resultURL == "" {
		i.fail(gen, errEmptyResult)
		return
	}

	i.mu.Lock()
	if gen != i.gen || i.session.Phase != PhaseProcessing {
		i.mu.Unlock()
		return
	}
	i.session.Progress = 100
	i.session.Phase = PhaseComplete
	i.session.ResultURL = resultURL
	i.cancel = nil
	snap := i.snapshot()
	i.mu.Unlock()

	slog.Info("intake: processing complete", "session_id", snap.ID)
	i.notify(snap)
}

func (i *Intake) fail(gen uint64, err error) {
	i.mu.Lock()
	if gen != i.gen || i.session.Phase != PhaseProcessing {
		i.mu.Unlock()
		return
	}
	i.session.Phase = PhaseFailed
	i.session.ResultURL = ""
	i.session.FailureMessage = DefaultFailureMessage
	i.cancel = nil
	snap := i.snapshot()
	i.mu.Unlock()

	slog.Warn("intake: processing failed", "session_id", snap.ID, "error", err)
	i.notify(snap)
}

// snapshot copies the session; callers hold i.mu.
func (i *Intake) snapshot() Session {
	s := i.session
	if s.File != nil {
		f := *s.File
		s.File = &f
	}
	return s
}

func (i *Intake) notify(s Session) {
	i.mu.Lock()
	subs := make([]func(Session), 0, len(i.subs))
	for _, fn := range i.subs {
		subs = append(subs, fn)
	}
	i.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}
