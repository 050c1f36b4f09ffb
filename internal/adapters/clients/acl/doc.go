// Package acl is the anti-corruption layer between the hitokoto API and the
// widget domain.
//
// The upstream payload is decoded into unexported DTOs and translated into
// [domain.Quote]. Nothing from the wire format leaks past this package:
// field names, nullable attribution and the loosely typed created_at
// timestamp all stop here.
//
// # Error Handling Strategy
//
// Every failure becomes a [domain.FetchError] tagged with the stage that
// broke:
//
//   - request: transport errors, timeouts and cancellation
//   - status: any non-200 response, with the upstream message if it sent one
//   - decode: malformed JSON or a payload without quote text
//
// Callers only ever test for [domain.ErrFetchFailed]. The stage and cause
// exist for logs and error reporting.
package acl
