package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const maxErrorBody = 64 * 1024

// ErrMissingFile is returned when an upload is attempted without a file.
var ErrMissingFile = errors.New("a file is required")

// Error is a failure reported by the backend, either through a non-2xx status
// or an envelope with success=false.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: API error (status %d): %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsStatus reports whether err is an *Error carrying the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

func newError(method, path string, status int, body []byte) *Error {
	e := &Error{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       string(body),
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			e.Message = payload.Error
		case payload.Message != "":
			e.Message = payload.Message
		}
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}
