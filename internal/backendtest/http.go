package backendtest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Joseda-hg/taskflow/internal/session"
)

type sessionKey struct{}

func withSession(ctx context.Context, s session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) session.Session {
	s, _ := ctx.Value(sessionKey{}).(session.Session)
	return s
}

// readAll drains the request body and puts a fresh reader back so handlers
// further down the chain can decode it.
func readAll(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
