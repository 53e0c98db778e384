package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/verse-scribe/internal/auth"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/types"
)

// TimezoneHeader carries the client's IANA timezone. Credits are attributed
// to the calendar day in this zone.
const TimezoneHeader = "X-Timezone"

// requestLocation returns the client's timezone, or the server default when
// none was sent
func (s *Server) requestLocation(r *http.Request) (*time.Location, error) {
	name := strings.TrimSpace(r.Header.Get(TimezoneHeader))
	if name == "" {
		return s.config.DefaultLocation, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, apperrors.NewInvalidParameterError(TimezoneHeader, "unknown timezone "+name)
	}
	return loc, nil
}

// requestDate returns an explicit date, or today in the client's timezone
func (s *Server) requestDate(r *http.Request, explicit string) (string, error) {
	if explicit != "" {
		if err := types.ValidateDate(explicit); err != nil {
			return "", apperrors.NewInvalidParameterError("date", err.Error())
		}
		return explicit, nil
	}
	loc, err := s.requestLocation(r)
	if err != nil {
		return "", err
	}
	return types.LocalDate(s.now(), loc), nil
}

// recordDate is requestDate for completions. A client-supplied date must be
// yesterday, today or tomorrow in the request's timezone.
func (s *Server) recordDate(r *http.Request, explicit string) (string, error) {
	date, err := s.requestDate(r, explicit)
	if err != nil || explicit == "" {
		return date, err
	}
	loc, err := s.requestLocation(r)
	if err != nil {
		return "", err
	}
	now := s.now().In(loc)
	earliest := types.LocalDate(now.AddDate(0, 0, -1), loc)
	latest := types.LocalDate(now.AddDate(0, 0, 1), loc)
	if date < earliest || date > latest {
		return "", apperrors.NewInvalidParameterError("localDate", "must be within one day of "+types.LocalDate(now, loc))
	}
	return date, nil
}

// userID returns the authenticated profile id
func userID(r *http.Request) (string, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok || id == "" {
		return "", apperrors.NewAuthRequiredError("missing token")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.NewInvalidParameterError(name, "must be a non-negative integer")
	}
	return v, nil
}
