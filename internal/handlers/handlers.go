// Package handlers wires HTTP requests to the service layer: decode and
// validate transport-level input, call the service, write the envelope.
// Authorization itself happens in the services, never here.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/auth"
	"github.com/diewo77/go-prescriptions/internal/token"
)

const maxBodyBytes = 1 << 20

func decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return apperr.Validation("invalid JSON body")
	}
	return nil
}

// mustClaims returns the verified claims; the auth middleware guarantees they
// exist on protected routes, so a miss is a wiring bug surfaced as 401.
func mustClaims(r *http.Request) (*token.Claims, error) {
	c, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return nil, apperr.Unauthenticated("missing credentials")
	}
	return c, nil
}

func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// parseDate accepts both plain dates and RFC 3339 timestamps. Plain dates
// are anchored at midnight UTC.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("invalid date, use YYYY-MM-DD or RFC 3339")
}

// parseDateEnd is parseDate for inclusive upper bounds: a plain date covers
// its whole day, so it is extended to the last instant of that day.
func parseDateEnd(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		end := t.Add(24*time.Hour - time.Nanosecond)
		return &end, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	return nil, apperr.Validation("invalid date, use YYYY-MM-DD or RFC 3339")
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	t, err := parseDate(r.URL.Query().Get(name))
	if err != nil {
		return nil, apperr.Validation("invalid " + name + " date, use YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

func queryDateEnd(r *http.Request, name string) (*time.Time, error) {
	t, err := parseDateEnd(r.URL.Query().Get(name))
	if err != nil {
		return nil, apperr.Validation("invalid " + name + " date, use YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}
