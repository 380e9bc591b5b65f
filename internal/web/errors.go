package web

// errors.go maps technical errors to client-facing messages with a stable
// code for support reference. Technical details are logged server-side with
// the request ID; clients only ever see the mapped message.
//
// Codes:
//
//	RUN001 - A run is already in progress
//	RUN002 - No run has finished yet
//	REQ001 - Invalid request parameter
//	REQ002 - Route not found
//	SRC001 - Source table is missing a required column
//	DB004  - Database connection refused
//	DB005  - Database connection interrupted
//	DB006  - Operation timed out
//	HIST001 - Run history table missing (run the migrate command)
//	ERR000 - Unexpected error

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/cademycode/internal/core"
	"github.com/JonMunkholm/cademycode/internal/pipeline"
	"github.com/go-chi/chi/v5/middleware"
)

var (
	errNoRuns       = errors.New("no pipeline run has finished")
	errNotFound     = errors.New("route not found")
	errInvalidLimit = errors.New("limit must be a positive integer")
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// UserMessage is the client-facing description of an error.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

// sentinelMessages are matched with errors.Is before any pattern.
var sentinelMessages = []struct {
	err error
	msg UserMessage
}{
	{pipeline.ErrRunInProgress, UserMessage{"A pipeline run is already in progress", "Wait for it to finish and check /api/runs/last", "RUN001"}},
	{errNoRuns, UserMessage{"No pipeline run has finished yet", "Trigger one with POST /api/runs", "RUN002"}},
	{errInvalidLimit, UserMessage{"Invalid limit parameter", "Use a positive integer", "REQ001"}},
	{errNotFound, UserMessage{"Not found", "", "REQ002"}},
	{core.ErrMissingColumn, UserMessage{"A source table is missing a required column", "Check the source schema", "SRC001"}},
	{context.DeadlineExceeded, UserMessage{"Operation timed out", "Please try again later", "DB006"}},
}

// errorPatterns map technical error text (case-insensitive) to messages.
// The first match wins, so specific patterns come first.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{`"pipeline_runs" does not exist`, UserMessage{"Run history is not initialized", "Run the migrate command against the destination", "HIST001"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again later", "DB006"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the server logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a client-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, strings.ToLower(ep.pattern)) {
			return ep.msg
		}
	}

	return defaultMessage
}

// respondError logs the technical error with request context and writes the
// mapped message as JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := MapError(err)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:  userMsg.Message,
		Action: userMsg.Action,
		Code:   userMsg.Code,
	}); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
