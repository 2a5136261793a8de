package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vidforge/vidforge/internal/auth"
	"github.com/vidforge/vidforge/internal/httputil"
	"github.com/vidforge/vidforge/internal/intake"
	"github.com/vidforge/vidforge/internal/media"
	"github.com/vidforge/vidforge/internal/notify"
	"github.com/vidforge/vidforge/internal/storage"
)

const (
	intakeCleanupInterval = 5 * time.Minute
	intakeIdleTTL         = 30 * time.Minute
)

type userIntake struct {
	intake   *intake.Intake
	lastUsed time.Time
}

// intakeRegistry keeps one upload session per signed-in user. Intakes that sit
// idle for intakeIdleTTL are dropped.
type intakeRegistry struct {
	clock     clockwork.Clock
	processor intake.Processor
	poster    string
	notifier  notify.Notifier

	mu     sync.Mutex
	byUser map[string]*userIntake
}

func newIntakeRegistry(clock clockwork.Clock, processor intake.Processor, poster string, notifier notify.Notifier) *intakeRegistry {
	return &intakeRegistry{
		clock:     clock,
		processor: processor,
		poster:    poster,
		notifier:  notifier,
		byUser:    make(map[string]*userIntake),
	}
}

func (reg *intakeRegistry) get(u auth.User) *intake.Intake {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	entry, ok := reg.byUser[u.ID]
	if !ok {
		in := intake.New(intake.Config{
			Session:      auth.UserSession(u),
			Processor:    reg.processor,
			ResultPoster: reg.poster,
		})
		if reg.notifier != nil {
			in.Subscribe(reg.finishedNotifier(u.ID))
		}
		entry = &userIntake{intake: in}
		reg.byUser[u.ID] = entry
	}
	entry.lastUsed = reg.clock.Now()
	return entry.intake
}

// finishedNotifier reports each session once, when it completes or fails.
// Delivery runs in the background so retries never hold up the processor.
func (reg *intakeRegistry) finishedNotifier(userID string) func(intake.Session) {
	var mu sync.Mutex
	last := ""
	return func(s intake.Session) {
		if s.Phase != intake.PhaseComplete && s.Phase != intake.PhaseFailed {
			return
		}
		mu.Lock()
		seen := s.ID == last
		last = s.ID
		mu.Unlock()
		if seen {
			return
		}
		go func() {
			if err := reg.notifier.IntakeFinished(context.Background(), userID, s); err != nil {
				slog.Warn("intake: finish notification failed", "session_id", s.ID, "error", err)
			}
		}()
	}
}

func (reg *intakeRegistry) lookup(userID string) (*intake.Intake, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	entry, ok := reg.byUser[userID]
	if !ok {
		return nil, false
	}
	entry.lastUsed = reg.clock.Now()
	return entry.intake, true
}

// startCleanup evicts idle intakes until ctx is done.
func (reg *intakeRegistry) startCleanup(ctx context.Context) {
	ticker := reg.clock.NewTicker(intakeCleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				reg.evictIdle()
			}
		}
	}()
}

// evictIdle drops intakes with no session that nobody has touched for
// intakeIdleTTL. Sessions in any other phase keep their intake.
func (reg *intakeRegistry) evictIdle() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	now := reg.clock.Now()
	for userID, entry := range reg.byUser {
		if now.Sub(entry.lastUsed) <= intakeIdleTTL {
			continue
		}
		if entry.intake.Snapshot().Phase == intake.PhaseIdle {
			delete(reg.byUser, userID)
		}
	}
}

func (reg *intakeRegistry) size() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.byUser)
}

func (reg *intakeRegistry) resetAll() {
	reg.mu.Lock()
	all := make([]*intake.Intake, 0, len(reg.byUser))
	for _, entry := range reg.byUser {
		all = append(all, entry.intake)
	}
	reg.mu.Unlock()

	for _, in := range all {
		in.Reset()
	}
}

type submitIntakeRequest struct {
	File *intake.File `json:"file"`
}

type submitIntakeResponse struct {
	Session   intake.Session `json:"session"`
	UploadURL string         `json:"uploadUrl,omitempty"`
}

func (s *Server) handleSubmitIntake(w http.ResponseWriter, r *http.Request) {
	var req submitIntakeRequest
	if err := httputil.DecodeJSON(r, &req, true); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// a dismissed picker submits nothing
	if req.File == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		s.rejectAnonymousSubmit(w, r, req.File)
		return
	}

	in := s.intakes.get(user)
	err := in.Submit(r.Context(), req.File)
	var verr *intake.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.WriteError(w, http.StatusBadRequest, verr.Message)
		return
	case errors.Is(err, intake.ErrSessionActive):
		httputil.WriteError(w, http.StatusConflict, "an upload is already in progress")
		return
	case err != nil:
		slog.Error("intake: submit failed", "user_id", user.ID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to submit file")
		return
	}

	snap := in.Snapshot()
	if snap.Phase != intake.PhaseUploaded {
		// reset by another request before the upload was prepared
		httputil.WriteError(w, http.StatusConflict, "upload was reset")
		return
	}
	resp := submitIntakeResponse{Session: snap}
	if s.storage != nil {
		key := storage.UploadKey(user.ID, snap.ID, req.File.ContentType)
		url, err := s.storage.UploadURL(r.Context(), key, req.File.ContentType, req.File.Size)
		if err != nil {
			slog.Error("intake: failed to presign upload", "session_id", snap.ID, "error", err)
			in.Reset()
			httputil.WriteError(w, http.StatusInternalServerError, "failed to prepare upload")
			return
		}
		resp.UploadURL = url
	}

	// processing outlives the request
	err = in.Process(context.WithoutCancel(r.Context()))
	if errors.Is(err, intake.ErrNotUploaded) {
		httputil.WriteError(w, http.StatusConflict, "upload was reset")
		return
	}
	if err != nil {
		slog.Error("intake: failed to start processing", "session_id", snap.ID, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to start processing")
		return
	}
	resp.Session = in.Snapshot()
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// rejectAnonymousSubmit runs the submit through a throwaway intake so the
// login redirect follows the same path a signed-in submit does.
func (s *Server) rejectAnonymousSubmit(w http.ResponseWriter, r *http.Request, f *intake.File) {
	redirected := false
	in := intake.New(intake.Config{
		Session:   auth.Anonymous,
		Navigator: intake.NavigatorFunc(func() { redirected = true }),
		Processor: s.intakes.processor,
	})
	err := in.Submit(r.Context(), f)
	if redirected || errors.Is(err, intake.ErrLoginRequired) {
		httputil.WriteRedirect(w, http.StatusUnauthorized, "login required", "/login")
		return
	}
	httputil.WriteError(w, http.StatusServiceUnavailable, "identity still loading")
}

func (s *Server) handleGetIntake(w http.ResponseWriter, r *http.Request) {
	in, ok := s.intakes.lookup(auth.UserIDFromContext(r.Context()))
	if !ok {
		httputil.WriteJSON(w, http.StatusOK, intake.Session{Phase: intake.PhaseIdle})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, in.Snapshot())
}

func (s *Server) handleResetIntake(w http.ResponseWriter, r *http.Request) {
	in, ok := s.intakes.lookup(auth.UserIDFromContext(r.Context()))
	if !ok {
		httputil.WriteJSON(w, http.StatusOK, intake.Session{Phase: intake.PhaseIdle})
		return
	}
	in.Reset()
	httputil.WriteJSON(w, http.StatusOK, in.Snapshot())
}

func (s *Server) handleIntakePlayer(w http.ResponseWriter, r *http.Request) {
	in, ok := s.intakes.lookup(auth.UserIDFromContext(r.Context()))
	if !ok {
		httputil.WriteError(w, http.StatusConflict, "processing has not completed")
		return
	}

	player := media.NewPlayer(media.NewSimulatedElement(media.SimulatedConfig{Clock: s.clock}))
	if err := in.OpenPlayer(player); err != nil {
		httputil.WriteError(w, http.StatusConflict, "processing has not completed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"player":              player.View(),
		"fullscreenSupported": media.FullscreenSupported(r.UserAgent()),
	})
}
