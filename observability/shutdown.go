package observability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultShutdownTimeout bounds Shutdown when no timeout is given.
const DefaultShutdownTimeout = 10 * time.Second

// Shutdown flushes provider and then stops it, both within one timeout, so a
// short-lived command still exports the spans and metrics of its last call.
// A nil provider is ignored; timeout <= 0 selects DefaultShutdownTimeout.
func Shutdown(provider Provider, timeout time.Duration) error {
	if provider == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := provider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if err := provider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("observability shutdown failed: %w", errors.Join(errs...))
	}
	return nil
}

// MustShutdown is Shutdown for deferred cleanup; it panics on error.
func MustShutdown(provider Provider, timeout time.Duration) {
	if err := Shutdown(provider, timeout); err != nil {
		panic(err)
	}
}
