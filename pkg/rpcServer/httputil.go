package rpcServer

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ledgerlabs/stakevault/pkg/types"
)

type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

// HTTPError creates an error with an explicit http status code.
func HTTPError(cause error, status int) error {
	return &httpError{
		cause:  cause,
		status: status,
	}
}

func badRequest(cause error) error {
	return &httpError{
		cause:  cause,
		status: http.StatusBadRequest,
	}
}

// HandlerFunc is like http.HandlerFunc but returns an error. Ledger errors
// are mapped to status codes; anything unrecognized becomes a 500.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

func WrapHandlerFunc(f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}
		if he, ok := err.(*httpError); ok {
			if he.cause != nil {
				writeError(w, he.cause, he.status)
			} else {
				w.WriteHeader(he.status)
			}
			return
		}
		writeError(w, err, statusForError(err))
	}
}

// statusForError maps the ledger error taxonomy onto http semantics. Input
// problems are 400s, state conflicts 409s, a failed external transfer 422.
func statusForError(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, types.ErrZeroAmount),
		errors.Is(err, types.ErrInvalidRewardRate),
		errors.Is(err, types.ErrInvalidVestingParameters):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, types.ErrVestingNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInsufficientBalance),
		errors.Is(err, types.ErrInsufficientAllowance),
		errors.Is(err, types.ErrVestingAlreadyRevoked),
		errors.Is(err, types.ErrNothingToClaim),
		errors.Is(err, types.ErrReentrantCall),
		isTokensLocked(err):
		return http.StatusConflict
	case errors.Is(err, types.ErrTransferFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func isTokensLocked(err error) bool {
	var locked *types.TokensLockedError
	return errors.As(err, &locked)
}

const jsonContentType = "application/json; charset=utf-8"

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Error()})
}

// ParseJSON parses a JSON object using strict mode.
func ParseJSON(r io.Reader, v interface{}) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// WriteJSON responds an object in JSON encoding.
func WriteJSON(w http.ResponseWriter, obj interface{}) error {
	w.Header().Set("Content-Type", jsonContentType)
	return json.NewEncoder(w).Encode(obj)
}
