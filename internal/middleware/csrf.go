package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/google/uuid"
)

const (
	// CSRFHeader must carry the session's token on unsafe requests authenticated by cookie
	CSRFHeader = "X-CSRF-Token"
	// SessionCSRFKey is the cookie session key holding the token
	SessionCSRFKey = "csrf_token"

	csrfFailedKey = "csrfFailed"
)

// IssueCSRFToken stores a fresh token in the session and returns it.
// The caller saves the session.
func IssueCSRFToken(session sessions.Session) string {
	token := uuid.NewString()
	session.Set(SessionCSRFKey, token)
	return token
}

func validCSRFToken(session sessions.Session, header string) bool {
	expected, ok := session.Get(SessionCSRFKey).(string)
	if !ok || expected == "" || header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(header)) == 1
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
