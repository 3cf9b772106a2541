package app

import (
	"time"

	"github.com/AncientDemagogue/natours-api/internal/sdk/sqldb"
	"github.com/AncientDemagogue/natours-api/internal/services/credentials"
	"github.com/AncientDemagogue/natours-api/internal/services/sentry"
	"github.com/AncientDemagogue/natours-api/internal/services/token"
)

type App struct {
	db     sqldb.Service
	sentry *sentry.SentryService
	creds  *credentials.Store
	reset  *credentials.ResetFlow
	codec  *token.Codec

	cookieTTL    time.Duration
	cookieSecure bool
}

func NewApp(
	db sqldb.Service,
	sentryService *sentry.SentryService,
	creds *credentials.Store,
	reset *credentials.ResetFlow,
	codec *token.Codec,
	cookieTTL time.Duration,
	cookieSecure bool,
) *App {
	return &App{
		db:           db,
		sentry:       sentryService,
		creds:        creds,
		reset:        reset,
		codec:        codec,
		cookieTTL:    cookieTTL,
		cookieSecure: cookieSecure,
	}
}
