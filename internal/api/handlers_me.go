package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/models"
)

// handleGetProfile handles GET /api/me/profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	summary, err := s.services.Profiles.Get(r.Context(), uid)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleUpdateProfile handles PUT /api/me/profile
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	var req struct {
		Name       *string `json:"name,omitempty"`
		AvatarURL  *string `json:"avatarUrl,omitempty"`
		ChurchName *string `json:"churchName,omitempty"`
	}
	if err := parseJSONBody(w, r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	summary, err := s.services.Profiles.Update(r.Context(), uid, models.ProfileUpdate{
		Name:       req.Name,
		AvatarURL:  req.AvatarURL,
		ChurchName: req.ChurchName,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleStats handles GET /api/me/stats?date= or ?month=
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	q := r.URL.Query()
	if month := q.Get("month"); month != "" {
		stats, err := s.services.Stats.Month(r.Context(), uid, month)
		if err != nil {
			respondAppError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, stats)
		return
	}

	date, err := s.requestDate(r, q.Get("date"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	stats, err := s.services.Stats.Daily(r.Context(), uid, date)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleDashboard handles GET /api/me/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	date, err := s.requestDate(r, r.URL.Query().Get("date"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	dashboard, err := s.services.Stats.Dashboard(r.Context(), uid, date)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}

// handleCompletedVerses handles GET /api/me/completed-verses
func (s *Server) handleCompletedVerses(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	set, err := s.services.Stats.CompletedKeys(r.Context(), uid)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	})
}

// handleActivity handles GET /api/me/activity?limit=
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	events, err := s.services.Stats.Recent(r.Context(), uid, limit)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
	})
}

// handleReaderChapter handles GET /api/reader/{book}/{chapter}?translation=
func (s *Server) handleReaderChapter(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	vars := mux.Vars(r)
	chapter, err := strconv.Atoi(vars["chapter"])
	if err != nil || chapter <= 0 {
		respondAppError(w, r, apperrors.NewInvalidParameterError("chapter", "must be a positive integer"))
		return
	}

	chapterView, err := s.services.Reader.Chapter(r.Context(), uid, r.URL.Query().Get("translation"), vars["book"], chapter)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, chapterView)
}
