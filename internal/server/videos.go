package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vidforge/vidforge/internal/catalog"
	"github.com/vidforge/vidforge/internal/httputil"
	"github.com/vidforge/vidforge/internal/media"
	"github.com/vidforge/vidforge/internal/validate"
)

type videoListResponse struct {
	Query  string           `json:"query"`
	Status catalog.Status   `json:"status"`
	Videos []catalog.Record `json:"videos"`
}

type downloadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

func (s *Server) loadCatalog(w http.ResponseWriter, r *http.Request) (*catalog.View, bool) {
	view, err := catalog.NewView(r.Context(), s.catalog)
	if err != nil {
		slog.Error("catalog: failed to load videos", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load videos")
		return nil, false
	}
	return view, true
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if msg := validate.SearchQuery(query); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	status, err := catalog.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "status must be all, processed, processing or failed")
		return
	}

	view, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}
	view.SetQuery(query)
	view.SetStatus(status)

	httputil.WriteJSON(w, http.StatusOK, videoListResponse{
		Query:  query,
		Status: status,
		Videos: view.Results(),
	})
}

func (s *Server) lookupVideo(w http.ResponseWriter, r *http.Request) (catalog.Record, bool) {
	view, ok := s.loadCatalog(w, r)
	if !ok {
		return catalog.Record{}, false
	}
	rec, err := view.Select(chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return catalog.Record{}, false
	}
	return rec, err == nil
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupVideo(w, r)
	if !ok {
		return
	}

	// the record's duration label stands in for decoder metadata
	player := media.NewPlayer(media.NewSimulatedElement(media.SimulatedConfig{
		Clock: s.clock,
		Duration: func(string) (float64, bool) {
			return media.ParseTime(rec.Duration)
		},
	}))
	httputil.WriteJSON(w, http.StatusOK, catalog.OpenDetail(rec, player, r.UserAgent()))
}

func (s *Server) handleDownloadVideo(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupVideo(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, downloadResponse{
		URL:      rec.DownloadURL(),
		Filename: rec.Title + ".mp4",
	})
}
