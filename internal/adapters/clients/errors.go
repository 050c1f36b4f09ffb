// Package clients provides HTTP client adapters for downstream services.
package clients

import "errors"

// ErrRequestFailed wraps transport-level failures: DNS, connect, TLS,
// timeouts and cancellation. The cause stays reachable with errors.Is.
// Callers translate it into a domain error; it never leaves the adapter layer.
var ErrRequestFailed = errors.New("downstream request failed")
