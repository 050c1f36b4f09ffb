package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/logging"
	"github.com/jsamuelsen/hitokoto-widget/internal/ports"
)

// DefaultFetchTimeout bounds a fetch when no timeout is configured.
const DefaultFetchTimeout = 10 * time.Second

// Fetcher retrieves one quote. *QuoteService implements it.
type Fetcher interface {
	Fetch(ctx context.Context, category domain.Category) (*domain.Quote, error)
}

// Change sets one option to a raw value, as posted by a form or API call.
type Change struct {
	Option domain.Option
	Value  string
}

// WidgetService manages widget sessions: their style, and the quote fetch
// each style change may start.
//
// Fetches run in the background so no request waits on the quote service.
// A new fetch on a widget cancels the previous one, and a completion that is
// no longer the latest is dropped.
type WidgetService struct {
	fetcher      Fetcher
	store        ports.SessionStore[*Widget]
	defaults     domain.Style
	fetchTimeout time.Duration
	metrics      *Metrics
	logger       *slog.Logger
	now          func() time.Time

	wg sync.WaitGroup
}

// WidgetServiceConfig contains configuration for the widget service.
type WidgetServiceConfig struct {
	Fetcher      Fetcher
	Store        ports.SessionStore[*Widget]
	Defaults     domain.Style
	FetchTimeout time.Duration
	Metrics      *Metrics
	Logger       *slog.Logger
	Now          func() time.Time
}

// NewWidgetService creates a widget service. Panics if Fetcher or Store is nil.
func NewWidgetService(cfg WidgetServiceConfig) *WidgetService {
	if cfg.Fetcher == nil {
		panic("WidgetService: Fetcher is required")
	}
	if cfg.Store == nil {
		panic("WidgetService: Store is required")
	}

	s := &WidgetService{
		fetcher:      cfg.Fetcher,
		store:        cfg.Store,
		defaults:     cfg.Defaults,
		fetchTimeout: cfg.FetchTimeout,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}

	if s.defaults == (domain.Style{}) {
		s.defaults = domain.DefaultStyle()
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = DefaultFetchTimeout
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// EvictWidget is the store eviction hook: it stops the widget's fetch.
func EvictWidget(_ string, w *Widget) {
	w.stop()
}

// Open returns the widget for sessionID, creating one when the ID is empty
// or unknown. A new widget starts from the default style with dark mode
// seeded from prefersDark, and immediately starts its first fetch; its
// snapshot has Opened set.
func (s *WidgetService) Open(ctx context.Context, sessionID string, prefersDark bool) (Snapshot, error) {
	if sessionID != "" {
		w, err := s.store.Get(ctx, sessionID)
		if err == nil {
			return w.Snapshot(), nil
		}
		if !domain.IsNotFound(err) {
			return Snapshot{}, err
		}
	}

	w := newWidget(uuid.NewString(), s.DefaultStyle(prefersDark), s.now())
	if err := s.store.Put(ctx, w.id, w); err != nil {
		return Snapshot{}, err
	}

	s.metrics.sessionsOpened.Inc()
	s.log(ctx, w.id).InfoContext(ctx, "widget opened", slog.Bool("dark_mode", prefersDark))

	w.mu.Lock()
	defer w.mu.Unlock()

	s.startFetchLocked(ctx, w)

	snap := w.snapshotLocked()
	snap.Opened = true

	return snap, nil
}

// Get returns the current state of a widget.
// Returns domain.ErrNotFound for unknown or expired sessions.
func (s *WidgetService) Get(ctx context.Context, sessionID string) (Snapshot, error) {
	w, err := s.lookup(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	return w.Snapshot(), nil
}

// Apply sets options on a widget. All changes are validated before any is
// applied, so a bad value leaves the widget untouched. A changed category
// starts a new fetch; every other option only restyles.
func (s *WidgetService) Apply(ctx context.Context, sessionID string, changes ...Change) (Snapshot, error) {
	w, err := s.lookup(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.style
	for _, c := range changes {
		if next, err = next.Set(c.Option, c.Value); err != nil {
			return w.snapshotLocked(), err
		}
	}

	categoryChanged := next.Category != w.style.Category
	w.style = next
	w.updatedAt = s.now()

	if categoryChanged {
		s.startFetchLocked(ctx, w)
	}

	return w.snapshotLocked(), nil
}

// Refresh starts a new fetch in the widget's current category, superseding
// any fetch in flight.
func (s *WidgetService) Refresh(ctx context.Context, sessionID string) (Snapshot, error) {
	w, err := s.lookup(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	s.startFetchLocked(ctx, w)

	return w.snapshotLocked(), nil
}

// ToggleDarkMode flips the color scheme. It never fetches.
func (s *WidgetService) ToggleDarkMode(ctx context.Context, sessionID string) (Snapshot, error) {
	return s.toggle(ctx, sessionID, func(st *domain.Style) { st.DarkMode = !st.DarkMode })
}

// TogglePanel shows or hides the settings panel. It never fetches.
func (s *WidgetService) TogglePanel(ctx context.Context, sessionID string) (Snapshot, error) {
	return s.toggle(ctx, sessionID, func(st *domain.Style) { st.PanelOpen = !st.PanelOpen })
}

func (s *WidgetService) toggle(ctx context.Context, sessionID string, flip func(*domain.Style)) (Snapshot, error) {
	w, err := s.lookup(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	flip(&w.style)
	w.updatedAt = s.now()

	return w.snapshotLocked(), nil
}

// Wait blocks until the widget has no fetch in flight, then returns its
// state. If ctx ends first the current state is returned with ctx's error.
func (s *WidgetService) Wait(ctx context.Context, sessionID string) (Snapshot, error) {
	w, err := s.lookup(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}

	for {
		w.mu.Lock()
		if !w.inFlight {
			snap := w.snapshotLocked()
			w.mu.Unlock()

			return snap, nil
		}
		done := w.done
		w.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return w.Snapshot(), ctx.Err()
		}
	}
}

// Close removes every session, cancels their fetches and waits for the
// fetch goroutines to finish.
func (s *WidgetService) Close(ctx context.Context) error {
	if closer, ok := s.store.(interface{ Close() }); ok {
		closer.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DefaultStyle is the style a new widget starts from.
func (s *WidgetService) DefaultStyle(prefersDark bool) domain.Style {
	st := s.defaults
	st.DarkMode = prefersDark

	return st
}

// Sessions returns the number of live sessions.
func (s *WidgetService) Sessions() int {
	return s.store.Len()
}

func (s *WidgetService) lookup(ctx context.Context, sessionID string) (*Widget, error) {
	if sessionID == "" {
		return nil, domain.NewNotFoundError("session")
	}

	return s.store.Get(ctx, sessionID)
}

// startFetchLocked supersedes any fetch in flight and starts a new one for
// the widget's current category. The caller holds w.mu.
//
// The fetch outlives the request that started it, so it runs on a context
// detached from the request's cancellation but keeping its values (logger,
// request and correlation IDs).
func (s *WidgetService) startFetchLocked(ctx context.Context, w *Widget) {
	if w.cancel != nil {
		w.cancel()
	}

	w.seq++
	seq := w.seq
	category := w.style.Category

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
	done := make(chan struct{})

	w.cancel = cancel
	w.done = done
	w.inFlight = true
	w.updatedAt = s.now()

	logger := s.log(ctx, w.id)
	fetchCtx = logging.WithContext(fetchCtx, logger)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		defer cancel()

		quote, err := s.fetcher.Fetch(fetchCtx, category)
		s.complete(w, seq, quote, err, logger)
	}()
}

// complete publishes a finished fetch if it is still the latest one.
func (s *WidgetService) complete(w *Widget, seq uint64, quote *domain.Quote, err error, logger *slog.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if seq != w.seq {
		s.metrics.fetchDiscarded.Inc()
		logger.Debug("discarded superseded fetch",
			slog.Uint64("seq", seq),
			slog.Uint64("current_seq", w.seq),
		)

		return
	}

	w.inFlight = false
	w.cancel = nil
	w.updatedAt = s.now()

	if err != nil {
		// A failed fetch clears the quote rather than leaving a stale one.
		w.quote = nil
		if !errors.Is(err, context.Canceled) {
			logger.Info("widget shows fetch failure")
		}

		return
	}

	w.quote = quote
}

func (s *WidgetService) log(ctx context.Context, sessionID string) *slog.Logger {
	return logging.FromContextOr(ctx, s.logger).With(logging.SessionAttr(sessionID))
}
