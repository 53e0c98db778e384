package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// healthTimeout bounds each dependency probe
const healthTimeout = 2 * time.Second

// handleHealth handles GET /health. Any failing dependency turns the
// response into 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.healthChecks))
	for name := range s.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := s.healthChecks[name](ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	respondJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "verse-scribe",
		"checks":  checks,
	})
}

// handleListTopics handles GET /api/topics
func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"topics": s.services.Topics.List(),
	})
}

// handleSearch handles GET /api/bible/search?q=&translation=&limit=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	q := r.URL.Query()
	verses, err := s.services.Reader.Search(r.Context(), q.Get("translation"), q.Get("q"), limit)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"verses": verses,
		"count":  len(verses),
	})
}
