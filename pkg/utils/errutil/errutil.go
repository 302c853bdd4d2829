package errutil

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
)

// Handle logs err with its goerr values and stack, and forwards it to Sentry
// when a Sentry client is configured.
func Handle(ctx context.Context, err error, msg string) {
	if err == nil {
		return
	}

	logger := logging.From(ctx)

	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error(msg,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
	} else {
		logger.Error(msg, "error", err.Error())
	}

	report(ctx, err, msg, ge)
}

// HandleHTTP logs a failed request. Only server side failures are reported to
// Sentry; client errors are logged at warn level.
func HandleHTTP(ctx context.Context, r *http.Request, err error, statusCode int) {
	if err == nil {
		return
	}

	if statusCode < http.StatusInternalServerError {
		logging.From(ctx).Warn("request rejected",
			"status", statusCode,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		return
	}

	Handle(ctx, err, "HTTP error")
}

func report(ctx context.Context, err error, msg string, ge *goerr.Error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("message", msg)
		if ge != nil {
			for k, v := range ge.Values() {
				scope.SetExtra(k, v)
			}
		}
		evID := hub.CaptureException(err)
		if evID != nil {
			logging.From(ctx).Debug("error reported to sentry", "event_id", *evID)
		}
	})
}
