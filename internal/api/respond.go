package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/depot"
)

// maxJSONBody caps JSON request bodies. Uploads go through multipart
// with their own limit; nothing legitimate sends a megabyte of JSON.
const maxJSONBody = 1 << 20

// envelope is the body of every JSON response. Code repeats the HTTP
// status so clients reading the body alone can branch on it.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// respond writes a success envelope.
func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Code: status, Message: message, Data: data})
}

// respondErr translates err into an HTTP status and writes an error
// envelope. Internal details are logged against the request, never
// returned to the client; 5xx envelopes carry the request id so a
// reported failure can be matched to its log line.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, message := translate(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("request failed")
		var data any
		if id := requestIDFrom(r.Context()); id != "" {
			data = map[string]string{"request_id": id}
		}
		writeJSON(w, status, envelope{Code: status, Message: message, Data: data})
		return
	}
	zerolog.Ctx(r.Context()).Debug().Err(err).Int("status", status).Msg("request rejected")
	writeJSON(w, status, envelope{Code: status, Message: message})
}

// unauthorizedError maps to 401 with its message. Used for credential
// failures that are not token problems: wrong login password, unknown
// refresh token, wrong share access code.
type unauthorizedError string

func (e unauthorizedError) Error() string { return string(e) }

// translate maps domain errors to HTTP statuses with client-safe
// messages. Everything unrecognized becomes a generic 500.
func translate(err error) (int, string) {
	if errors.Is(err, auth.ErrInvalidToken) {
		return http.StatusUnauthorized, "invalid or expired token"
	}

	var ue unauthorizedError
	if errors.As(err, &ue) {
		return http.StatusUnauthorized, string(ue)
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "request body too large"
	}

	var se *depot.StoreError
	if errors.As(err, &se) {
		switch se.Code {
		case depot.ErrNotFound:
			return http.StatusNotFound, se.Message
		case depot.ErrExists:
			return http.StatusConflict, se.Message
		case depot.ErrConstraint:
			return http.StatusConflict, se.Message
		case depot.ErrInvalidArgument:
			return http.StatusBadRequest, se.Message
		case depot.ErrAccessDenied:
			return http.StatusForbidden, se.Message
		case depot.ErrQuotaExceeded:
			return http.StatusRequestEntityTooLarge, se.Message
		case depot.ErrIOError:
			// Backend details (paths, object keys) stay in the logs
			return http.StatusInternalServerError, "storage backend error"
		}
	}

	return http.StatusInternalServerError, "internal server error"
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON reads a capped JSON request body into dst. An empty body
// decodes to the zero value so endpoints with optional bodies work; the
// handler's own validation catches missing fields either way.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return badRequest("malformed JSON body")
	}
	return nil
}

// badRequest builds a 400-mapped error for request validation failures.
func badRequest(message string) error {
	return &depot.StoreError{Code: depot.ErrInvalidArgument, Message: message}
}

// forbidden builds a 403-mapped error.
func forbidden(message string) error {
	return &depot.StoreError{Code: depot.ErrAccessDenied, Message: message}
}

// notFound builds a 404-mapped error.
func notFound(message string) error {
	return &depot.StoreError{Code: depot.ErrNotFound, Message: message}
}
