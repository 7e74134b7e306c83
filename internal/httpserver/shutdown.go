package httpserver

import (
	"context"
	"time"
)

// ShutdownTimeout bounds how long in-flight requests get once the process is
// asked to stop. Watch streams end as soon as Shutdown starts, so the budget
// only covers ordinary requests such as uploads.
var ShutdownTimeout = 10 * time.Second

// Shutdown stops accepting connections, ends open watch streams and waits for
// the remaining requests. A ctx without a deadline is bounded by
// ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ShutdownTimeout)
		defer cancel()
	}
	return s.inner.Shutdown(ctx)
}
