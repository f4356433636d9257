package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/apperr"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.Invalid("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("missing request body")
		}
		return apperr.Invalid("invalid JSON body: %v", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return apperr.Invalid("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// Respond writes payload and logs an encoding failure.
func Respond(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}

// WriteError maps err to its HTTP status. Caller errors carry their message;
// upstream and unclassified errors are logged and answered generically.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	body := ErrorBody{Error: err.Error()}

	var fieldErr apperr.FieldError
	if errors.As(err, &fieldErr) {
		body.Field = fieldErr.Field
		body.Error = fieldErr.Error()
	}

	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().
			Err(err).
			Int("status", status).
			Str("path", r.URL.Path).
			Msg("Request failed")
		body = ErrorBody{Error: http.StatusText(status)}
	}
	Respond(w, r, status, body)
}

// WriteTooManyRequests answers a throttled submission.
func WriteTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	Respond(w, r, http.StatusTooManyRequests, ErrorBody{
		Error: fmt.Sprintf("too many submissions, retry in %ds", seconds),
	})
}
