package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/negroni"

	"github.com/kava-labs/odata-batch-service/logging"
)

// createRequestLoggingMiddleware returns a handler that logs every request
// along with the status and latency of the response written for it
func createRequestLoggingMiddleware(h http.Handler, serviceLogger *logging.ServiceLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestAt := time.Now()

		lrw := negroni.NewResponseWriter(w)

		h.ServeHTTP(lrw, r)

		serviceLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", lrw.Status()).
			Int("size", lrw.Size()).
			Dur("latency", time.Since(requestAt)).
			Msg("handled request")
	}
}

// recoveryLogger writes the panics recovered by negroni to the service logger
type recoveryLogger struct {
	*logging.ServiceLogger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.Error().Msg(fmt.Sprint(v...))
}

func (l recoveryLogger) Printf(format string, v ...interface{}) {
	l.Error().Msg(fmt.Sprintf(format, v...))
}

// createRecoveryMiddleware returns a handler that answers 500 instead of
// dropping the connection when a handler panics
func createRecoveryMiddleware(h http.Handler, serviceLogger *logging.ServiceLogger) http.Handler {
	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	recovery.Logger = recoveryLogger{serviceLogger}

	n := negroni.New(recovery)
	n.UseHandler(h)

	return n
}
