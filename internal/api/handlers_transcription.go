package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/verse-scribe/internal/bible"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/service"
	"github.com/verse-scribe/internal/transcription"
	"github.com/verse-scribe/internal/types"
)

// handleRecordTranscription handles POST /api/transcriptions. The local date
// defaults to today in the client's timezone.
func (s *Server) handleRecordTranscription(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	var req struct {
		Mode           string `json:"mode"`
		Book           string `json:"book"`
		Chapter        int    `json:"chapter"`
		VerseNumber    int    `json:"verseNumber"`
		CreditsAwarded int    `json:"creditsAwarded"`
		LocalDate      string `json:"localDate,omitempty"`
	}
	if err := parseJSONBody(w, r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	mode, err := types.ParseMode(req.Mode)
	if err != nil {
		respondAppError(w, r, apperrors.NewInvalidParameterError("mode", err.Error()))
		return
	}
	book, ok := bible.LookupBook(req.Book)
	if !ok {
		respondAppError(w, r, apperrors.NewInvalidParameterError("book", "unknown book "+req.Book))
		return
	}
	if !book.HasChapter(req.Chapter) {
		respondAppError(w, r, apperrors.NewInvalidParameterError("chapter", "out of range for "+book.ID))
		return
	}
	date, err := s.recordDate(r, req.LocalDate)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	result, err := s.services.Transcriptions.RecordTranscription(r.Context(), uid, types.TranscriptionRecord{
		Mode:           mode,
		Book:           book.ID,
		Chapter:        req.Chapter,
		Verse:          req.VerseNumber,
		CreditsAwarded: req.CreditsAwarded,
		LocalDate:      date,
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// handleStartSession handles POST /api/sessions
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	var in service.StartInput
	if err := parseJSONBody(w, r, &in); err != nil {
		respondAppError(w, r, err)
		return
	}
	loc, err := s.requestLocation(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	in.UserID = uid
	in.Location = loc

	result, err := s.services.Sessions.Start(r.Context(), in)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// handleGetSession handles GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	snap, err := s.services.Sessions.Get(uid, mux.Vars(r)["id"])
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// handleDeleteSession handles DELETE /api/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	if err := s.services.Sessions.Delete(uid, mux.Vars(r)["id"]); err != nil {
		respondAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionInput handles POST /api/sessions/{id}/input
func (s *Server) handleSessionInput(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := parseJSONBody(w, r, &req); err != nil {
		respondAppError(w, r, err)
		return
	}

	snap, err := s.services.Sessions.Input(uid, mux.Vars(r)["id"], req.Text)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// AdvanceErrorResponse is sent when the award could not be saved. The
// session stays on the same verse and can be advanced again.
type AdvanceErrorResponse struct {
	ErrorResponse
	Session transcription.Snapshot `json:"session"`
}

// handleSessionAdvance handles POST /api/sessions/{id}/advance
func (s *Server) handleSessionAdvance(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	snap, err := s.services.Sessions.Advance(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		if !apperrors.IsPersistenceFailure(err) {
			respondAppError(w, r, err)
			return
		}
		catErr := apperrors.Categorize(err)
		respondJSON(w, catErr.StatusCode, AdvanceErrorResponse{
			ErrorResponse: ErrorResponse{Error: *catErr.ToServiceError()},
			Session:       snap,
		})
		return
	}
	respondJSON(w, http.StatusOK, snap)
}
