package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	ErrTransport = errors.New("commerce api unreachable")
	ErrMalformed = errors.New("commerce api returned a malformed response")
)

const maxMessage = 200

// StatusError is a non-2xx answer from the commerce API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("commerce api: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("commerce api: %d: %s", e.Code, e.Message)
}

// IsClientError reports whether err is a 4xx StatusError.
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

// statusError builds a StatusError from an error body. The API answers
// {"error": "..."} from its own handlers and {"detail": "..."} from the
// framework's validation layer.
func statusError(code int, body []byte) *StatusError {
	var eb struct {
		Error  string          `json:"error"`
		Detail json.RawMessage `json:"detail"`
	}
	msg := ""
	if err := json.Unmarshal(body, &eb); err == nil {
		msg = eb.Error
		if msg == "" && len(eb.Detail) > 0 {
			var s string
			if json.Unmarshal(eb.Detail, &s) == nil {
				msg = s
			} else {
				msg = string(eb.Detail)
			}
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
		msg = truncate(msg, maxMessage)
	}
	return &StatusError{Code: code, Message: msg}
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
