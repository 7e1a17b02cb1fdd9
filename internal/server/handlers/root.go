package handlers

import (
	"net/http"
)

// RootMessage is the body of GET /.
const RootMessage = "GFG Backend is running"

// RootHandler answers GET / with a fixed plain-text liveness message.
func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(RootMessage))
}
