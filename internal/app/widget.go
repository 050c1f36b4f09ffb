package app

import (
	"context"
	"sync"
	"time"

	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
)

// Widget is one browser session's state: the style, the current quote and
// the fetch in flight, if any.
//
// Concurrency model:
//   - every field is guarded by mu
//   - quotes are immutable once stored; a fetch replaces the pointer
//   - each fetch gets the next seq; a completion whose seq is no longer
//     current is discarded, so the latest request always wins
//   - outside the service, widgets are only seen through Snapshots
type Widget struct {
	mu sync.Mutex

	id        string
	style     domain.Style
	quote     *domain.Quote
	seq       uint64
	inFlight  bool
	cancel    context.CancelFunc
	done      chan struct{}
	updatedAt time.Time
}

func newWidget(id string, style domain.Style, now time.Time) *Widget {
	return &Widget{
		id:        id,
		style:     style,
		updatedAt: now,
	}
}

// Snapshot is a point-in-time copy of a Widget. Quote is only set when
// Status is loaded and must be treated as read-only.
type Snapshot struct {
	ID        string
	Style     domain.Style
	Quote     *domain.Quote
	Status    domain.FetchStatus
	Seq       uint64
	UpdatedAt time.Time

	// Opened is set when the Open call that returned this snapshot created
	// the widget. Its first fetch is already running.
	Opened bool
}

// Loading reports whether a fetch is outstanding.
func (s Snapshot) Loading() bool { return s.Status == domain.StatusLoading }

// Failed reports whether the last fetch failed.
func (s Snapshot) Failed() bool { return s.Status == domain.StatusFailed }

// FailureMessage is the user-facing text for a failed fetch, or "".
func (s Snapshot) FailureMessage() string {
	if s.Failed() {
		return domain.FetchFailureMessage
	}

	return ""
}

// snapshotLocked copies the widget. The caller holds w.mu.
func (w *Widget) snapshotLocked() Snapshot {
	status := domain.DeriveStatus(w.inFlight, w.quote)

	snap := Snapshot{
		ID:        w.id,
		Style:     w.style,
		Status:    status,
		Seq:       w.seq,
		UpdatedAt: w.updatedAt,
	}

	if status == domain.StatusLoaded {
		snap.Quote = w.quote
	}

	return snap
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.snapshotLocked()
}

// stop cancels the fetch in flight. Its completion will still be discarded
// by sequence, so stop never races with a newer fetch.
func (w *Widget) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}
