// Package sentry provides error tracking and monitoring using Sentry.
package sentry

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	LevelDebug   Level = sentry.LevelDebug
	LevelInfo    Level = sentry.LevelInfo
	LevelWarning Level = sentry.LevelWarning
	LevelError   Level = sentry.LevelError
	LevelFatal   Level = sentry.LevelFatal
)

type Scope = sentry.Scope
type Level = sentry.Level

type SentryService struct {
	Dsn         string
	Environment string
	Debug       bool
}

// NewSentryService initializes Sentry and returns the service. An empty
// DSN disables reporting without changing call sites.
func NewSentryService(dsn, environment string) *SentryService {
	debug := environment == "development"

	_ = sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Debug:       debug,
		SampleRate:  1.0,
	})

	return &SentryService{
		Dsn:         dsn,
		Environment: environment,
		Debug:       debug,
	}
}

// CaptureException sends an error to Sentry.
func (s *SentryService) CaptureException(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// CaptureMessage sends a message to Sentry.
func (s *SentryService) CaptureMessage(message string) {
	sentry.CaptureMessage(message)
}

// Flush waits for all events to be sent to Sentry.
func (s *SentryService) Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// Close flushes pending events and shuts down the Sentry client.
func (s *SentryService) Close() {
	s.Flush(2 * time.Second)
}

// WithScope allows modifying the Sentry scope for a single operation.
func (s *SentryService) WithScope(fn func(scope *Scope)) {
	sentry.WithScope(fn)
}
