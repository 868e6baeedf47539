package middleware

import (
	"net/http"
)

// writeText writes a plain-text response; the callback surface is text/plain.
func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
