package handlers

import (
	"net/http"
	"sync/atomic"

	apperrors "github.com/solvedrelay/solvedrelay/internal/errors"
)

// ErrorResponder writes an error response for r.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

var errorResponder atomic.Pointer[ErrorResponder]

// SetHTTPErrorResponder installs the responder used for envelope errors.
// nil restores apperrors.RespondWithError.
func SetHTTPErrorResponder(responder ErrorResponder) {
	if responder == nil {
		errorResponder.Store(nil)
		return
	}
	errorResponder.Store(&responder)
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if responder := errorResponder.Load(); responder != nil {
		(*responder)(w, r, err)
		return
	}
	apperrors.RespondWithError(w, r, err)
}
