package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/omni/messenger-watcher/logging"
	"github.com/omni/messenger-watcher/presenter/http/render"
)

var errPanic = errors.New("internal error")

func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger := logging.LoggerFromContext(r.Context())
				if err2, ok := err.(error); ok {
					logger = logger.WithError(err2)
				} else {
					logger = logger.WithField("recovered", fmt.Sprint(err))
				}
				logger.Error("recovered error from the http handler")
				render.Error(w, r, errPanic)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
