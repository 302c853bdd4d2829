package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/utils/errutil"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
)

// Dispatch runs handler in its own goroutine, detached from the request
// lifetime but keeping the request logger. Errors and panics are reported
// through errutil and never reach the caller.
func Dispatch(ctx context.Context, name string, handler func(ctx context.Context) error) {
	bgCtx := logging.With(context.Background(), logging.From(ctx).With("job", name))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errutil.Handle(bgCtx, goerr.New("panic in async handler", goerr.V("panic", r)), "async job panicked")
			}
		}()

		if err := handler(bgCtx); err != nil {
			errutil.Handle(bgCtx, err, "async job failed")
		}
	}()
}
