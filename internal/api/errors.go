// internal/api/errors.go
package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/storage"
)

const (
	codeBadRequest = "bad_request"
	codeNotFound   = "not_found"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// badRequest marks malformed input caught before the engine is called.
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func errBadRequest(msg string) error { return &badRequest{msg: msg} }

var statusByCode = map[string]int{
	curve.CodeInvalidAmount:      http.StatusBadRequest,
	curve.CodeInvalidCurveConfig: http.StatusBadRequest,
	curve.CodeInvalidFee:         http.StatusBadRequest,

	curve.CodeCurveNotFound: http.StatusNotFound,

	curve.CodeCurveExists:         http.StatusConflict,
	curve.CodeMigrationComplete:   http.StatusConflict,
	curve.CodeThresholdNotReached: http.StatusConflict,

	curve.CodePriceExceedsMaxCost:   http.StatusUnprocessableEntity,
	curve.CodePriceBelowMinReturn:   http.StatusUnprocessableEntity,
	curve.CodeInsufficientLiquidity: http.StatusUnprocessableEntity,
	curve.CodeInsufficientFunds:     http.StatusUnprocessableEntity,
	curve.CodeMathOverflow:          http.StatusUnprocessableEntity,
	curve.CodeUnauthorizedVault:     http.StatusUnprocessableEntity,
}

// classify maps err to its API code and HTTP status.
func classify(err error) (string, int) {
	var br *badRequest
	if errors.As(err, &br) {
		return codeBadRequest, http.StatusBadRequest
	}
	if errors.Is(err, storage.ErrNotFound) {
		return codeNotFound, http.StatusNotFound
	}
	code := curve.Code(err)
	if status, ok := statusByCode[code]; ok {
		return code, status
	}
	return curve.CodeInternal, http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = http.StatusText(status)
	}
	s.writeJSON(w, status, ErrorResponse{Code: code, Error: msg})
}
