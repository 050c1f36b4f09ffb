// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrFetchFailed, etc.)
//   - Keep interfaces small and focused
package ports

import (
	"context"

	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

// QuoteClient fetches quotes from the quote service.
//
// Implementations make exactly one outbound request per call and must honor
// ctx cancellation: a superseded fetch is abandoned by canceling its context.
// Every failure is reported as a domain.FetchError.
type QuoteClient interface {
	// RandomQuote returns one random quote. domain.CategoryAll asks for any
	// category.
	RandomQuote(ctx context.Context, category domain.Category) (*domain.Quote, error)
}

// SessionStore keeps per-session values keyed by an opaque session ID.
// Entries expire after a period without access.
type SessionStore[T any] interface {
	// Get returns the value for id and refreshes its expiry.
	// Returns domain.ErrNotFound if the session does not exist or expired.
	Get(ctx context.Context, id string) (T, error)

	// Put stores or replaces the value for id.
	Put(ctx context.Context, id string, value T) error

	// Delete removes the session. Missing sessions are not an error.
	Delete(ctx context.Context, id string) error

	// Len returns the number of live sessions.
	Len() int
}

// ErrorReporter ships unexpected failures to an external error tracker.
// Reporting is fire-and-forget: implementations must not block the caller
// on network I/O and must tolerate a nil or canceled context.
type ErrorReporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

// NopErrorReporter discards every report.
type NopErrorReporter struct{}

// Report implements ErrorReporter.
func (NopErrorReporter) Report(context.Context, error, map[string]string) {}
