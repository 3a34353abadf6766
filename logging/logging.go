// package logging provides the structured leveled logger
// shared by the components of the batch service
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ServiceLogger is a json structured leveled logger
// used by the service to log messages to stdout
type ServiceLogger struct {
	*zerolog.Logger
}

var (
	serviceLogLevelToZeroLogLevel = map[string]zerolog.Level{
		"TRACE": zerolog.TraceLevel,
		"DEBUG": zerolog.DebugLevel,
		"INFO":  zerolog.InfoLevel,
		"ERROR": zerolog.ErrorLevel,
	}
)

// New creates and returns a new ServiceLogger writing to stdout and error (if any).
func New(logLevel string) (ServiceLogger, error) {
	return NewWithWriter(logLevel, os.Stdout)
}

// NewWithWriter creates and returns a new ServiceLogger writing to w and error (if any).
func NewWithWriter(logLevel string, w io.Writer) (ServiceLogger, error) {
	zerologLevel, exists := serviceLogLevelToZeroLogLevel[logLevel]
	if !exists {
		return ServiceLogger{}, fmt.Errorf("invalid zero log level provided %s ", logLevel)
	}

	serviceLog := zerolog.New(w).Level(zerologLevel).With().Timestamp().Caller().Logger()

	return ServiceLogger{
		Logger: &serviceLog,
	}, nil
}

// NewNop returns a ServiceLogger that discards everything
func NewNop() *ServiceLogger {
	logger := zerolog.Nop()
	return &ServiceLogger{Logger: &logger}
}

// WithBatchID returns a child logger tagging every message with batchID
func (l *ServiceLogger) WithBatchID(batchID string) *ServiceLogger {
	logger := l.Logger.With().Str("batch_id", batchID).Logger()
	return &ServiceLogger{Logger: &logger}
}
