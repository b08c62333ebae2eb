package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/omni/messenger-watcher/logging"
)

// StatusError carries the http status an error should be rendered with.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func WithStatus(status int, err error) error {
	return &StatusError{Status: status, Err: err}
}

func JSON(w http.ResponseWriter, r *http.Request, status int, res interface{}) {
	blob, err := marshal(r, res)
	if err != nil {
		Error(w, r, fmt.Errorf("failed to marshal JSON result: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(blob); err != nil {
		logging.LoggerFromContext(r.Context()).WithError(err).Warn("failed to write response")
	}
}

func marshal(r *http.Request, res interface{}) ([]byte, error) {
	if pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty")); pretty {
		return json.MarshalIndent(res, "", "  ")
	}
	return json.Marshal(res)
}

type errorResult struct {
	Error string `json:"error"`
}

// Error renders err as a JSON body. Errors without an attached status are
// internal server errors.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		status = statusErr.Status
	}

	logger := logging.LoggerFromContext(r.Context()).WithError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request handling failed")
	} else {
		logger.WithField("status", status).Warn("request rejected")
	}
	JSON(w, r, status, &errorResult{Error: err.Error()})
}
