package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/tasklane/pkg/utils/logging"
)

// Close closes closer and logs a failure. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// Copy streams src into dst and returns the number of bytes written. Errors
// are logged because the response header has usually been sent already.
func Copy(ctx context.Context, dst io.Writer, src io.Reader) int64 {
	n, err := io.Copy(dst, src)
	if err != nil {
		logging.From(ctx).Error("Failed to copy", slog.Any("error", err), slog.Int64("written", n))
	}
	return n
}

// Do runs a cleanup callback such as a staged file purge and logs its error.
func Do(ctx context.Context, what string, fn func() error) {
	if err := fn(); err != nil {
		logging.From(ctx).Error("Cleanup failed", slog.String("what", what), slog.Any("error", err))
	}
}
