/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNotFound    = errors.New("wish not found")
	ErrRateLimited = errors.New("too many wishes, please wait a moment and try again")
)

// ValidationError reports a missing or oversized submission field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ImportError rejects a whole import batch because of the item at Index.
type ImportError struct {
	Index  int
	Reason string
}

func (e *ImportError) Error() string {
	if e.Index < 0 {
		return e.Reason
	}
	return fmt.Sprintf("wish %d: %s", e.Index, e.Reason)
}

// PersistenceError wraps a failed snapshot write.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("write snapshot %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type errorResponse struct {
	Error string `json:"error"`
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and a JSON error body, and returns
// any error hit while writing the response.
func writeError(cfg *Config, w http.ResponseWriter, err error) error {
	var (
		validation  *ValidationError
		malformed   *ImportError
		persistence *PersistenceError
	)

	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		message = validation.Error()
	case errors.As(err, &malformed):
		status = http.StatusBadRequest
		message = "import rejected: " + malformed.Error()
	case errors.Is(err, ErrRateLimited):
		status = http.StatusTooManyRequests
		message = err.Error()
		w.Header().Set("Retry-After", strconv.Itoa(max(1, int(cfg.cooldown.Round(time.Second)/time.Second))))
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.As(err, &persistence):
		message = "failed to save wishes"
		logf(cfg, "ERROR: %v", err)
	default:
		logf(cfg, "ERROR: %v", err)
	}

	return writeJSON(w, status, errorResponse{Error: message})
}

func newPage(prefix, title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(fmt.Sprintf(`<link rel="stylesheet" href="%s/assets/wishwall.css">`, prefix))
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body class=\"error\"><a href=\"%s/\">%s</a></body></html>", prefix, body))

	return htmlBody.String()
}
