// Package handlers implements the HTTP handlers of the scoring API.
package handlers

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/molscore/pkg/errors"
	"github.com/turtacn/molscore/pkg/types/common"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeData wraps data in a success envelope.
func writeData[T any](w http.ResponseWriter, r *http.Request, data T) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = chimw.GetReqID(r.Context())
	writeJSON(w, http.StatusOK, resp)
}

// writeAppError maps err to its HTTP status. Server-side failures keep
// their code but not their message.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	resp := common.NewErrorResponse(code.String(), "internal server error")
	if status < http.StatusInternalServerError || code == errors.ErrCodeResourceUnavailable {
		var ae *errors.AppError
		if errors.As(err, &ae) {
			resp.Error.Message = ae.Message
			resp.Error.Detail = ae.Detail
		}
	}
	resp.RequestID = chimw.GetReqID(r.Context())
	writeJSON(w, status, resp)
}
