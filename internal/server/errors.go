package server

import (
	"net/http"

	apperrors "github.com/solvedrelay/solvedrelay/internal/errors"
)

// HandleError renders err as an envelope response. The solved route writes
// its own bodies and does not go through here.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
