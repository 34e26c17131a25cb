package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// UserIDHeader carries the caller's user id. Authentication happens upstream.
const UserIDHeader = "X-User-ID"

const (
	maxUserIDLength    = 128
	maxRequestIDLength = 64
)

// userID returns the cleaned user id header, or "" when it is missing or
// cannot be used as a key.
func userID(r *http.Request) string {
	id := sanitizeInput(r.Header.Get(UserIDHeader))
	if len(id) > maxUserIDLength || strings.ContainsAny(id, "|\t\r\n") {
		return ""
	}
	return id
}

// requestID keeps a caller supplied id when it is sane and mints one
// otherwise.
func requestID(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get("X-Request-ID")); id != "" && len(id) <= maxRequestIDLength {
		return id
	}
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// sanitizeInput trims s and drops control characters other than tab, CR
// and LF.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < ' ' && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
