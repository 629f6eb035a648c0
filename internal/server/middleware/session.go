// Package middleware provides HTTP middleware for resolving analysis sessions.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonathan/syllabus-analyzer/internal/session"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// sessionKey is the context key for storing the resolved session.
const sessionKey ContextKey = "session"

// SessionLookup finds a session by id.
type SessionLookup interface {
	Lookup(id string) (*session.Session, bool)
}

// NotFoundFunc writes the response for an unknown session id.
type NotFoundFunc func(w http.ResponseWriter, id string)

// SessionMiddleware resolves the {id} path value to a session and adds it to
// the request context. Unknown ids are passed to notFound, or get a 404 JSON
// error when notFound is nil.
func SessionMiddleware(store SessionLookup, notFound NotFoundFunc) func(http.Handler) http.Handler {
	if notFound == nil {
		notFound = func(w http.ResponseWriter, id string) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("session not found: %s", id))
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.PathValue("id")
			if id == "" {
				writeError(w, http.StatusBadRequest, "session id is required")
				return
			}

			sess, ok := store.Lookup(id)
			if !ok {
				notFound(w, id)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession extracts the resolved session from the request context.
func GetSession(r *http.Request) (*session.Session, error) {
	sess, ok := r.Context().Value(sessionKey).(*session.Session)
	if !ok || sess == nil {
		return nil, fmt.Errorf("session not found in request context")
	}
	return sess, nil
}

// WithSession returns ctx carrying sess (for testing purposes).
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
