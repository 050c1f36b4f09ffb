package domain

// FetchStatus is the loading/error tri-state of a widget.
type FetchStatus string

const (
	// StatusLoading means a fetch is in flight; no quote is shown.
	StatusLoading FetchStatus = "loading"

	// StatusLoaded means a quote is present and nothing is in flight.
	StatusLoaded FetchStatus = "loaded"

	// StatusFailed means the last fetch failed and no quote is held.
	StatusFailed FetchStatus = "failed"
)

// DeriveStatus computes the tri-state from the two facts it depends on.
func DeriveStatus(inFlight bool, quote *Quote) FetchStatus {
	switch {
	case inFlight:
		return StatusLoading
	case quote != nil:
		return StatusLoaded
	default:
		return StatusFailed
	}
}
