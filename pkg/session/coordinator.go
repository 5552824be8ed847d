package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"flowcap/pkg/action"
	"flowcap/pkg/recording"
	"flowcap/pkg/sanitize"
)

// Config tunes the coordinator's background behavior
type Config struct {
	// PollInterval is how often the observability cache is refreshed
	// from durable state. That cache only serves status queries when a
	// fresh read fails; it is never merged from.
	PollInterval time.Duration
	// PageTimeout bounds every message sent to the live page, so an
	// unreachable page surfaces as an error instead of a hang.
	PageTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = 3 * time.Second
	}
	return c
}

// DefaultCoordinator implements Coordinator over a durable store. All
// state transitions run as a serialized read-modify-write: the store
// resolves concurrent writes last-write-wins, so the coordinator never
// lets two transitions interleave and never trusts an in-memory mirror
// across operations.
type DefaultCoordinator struct {
	mu         sync.Mutex
	store      Store
	recordings recording.Store
	page       PageConn
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time

	cacheMu sync.RWMutex
	cached  *Status

	quit      chan struct{}
	closeOnce sync.Once
}

// NewDefaultCoordinator wires the coordinator and starts its
// observability poller. Close stops the poller.
func NewDefaultCoordinator(store Store, recordings recording.Store, logger *zap.Logger, cfg Config) *DefaultCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &DefaultCoordinator{
		store:      store,
		recordings: recordings,
		cfg:        cfg.withDefaults(),
		logger:     logger.With(zap.String("component", "session_coordinator")),
		now:        time.Now,
		quit:       make(chan struct{}),
	}

	go c.pollLoop()
	return c
}

// Start begins a recording. Only valid from idle, and only with a page
// attached and reachable.
func (c *DefaultCoordinator) Start(ctx context.Context, opts StartOptions) (*Status, error) {
	if opts.TestName == "" {
		return nil, fmt.Errorf("test name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	if st.Phase != PhaseIdle {
		return nil, ErrAlreadyRecording
	}
	if c.page == nil {
		return nil, ErrNoActivePage
	}

	fresh := &State{
		Phase:      PhaseRecording,
		TestName:   opts.TestName,
		StartedAt:  c.now(),
		OriginURL:  opts.URL,
		CurrentURL: opts.URL,
		Viewport:   opts.Viewport,
		UserAgent:  opts.UserAgent,
	}
	if err := c.store.Save(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to save session state: %w", err)
	}

	if err := c.pageStart(ctx); err != nil {
		// The session never really began; roll back to idle.
		if rbErr := c.store.Save(ctx, NewIdleState()); rbErr != nil {
			c.logger.Error("failed to roll back session state", zap.Error(rbErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrNoActivePage, err)
	}

	c.logger.Info("recording started",
		zap.String("test_name", opts.TestName),
		zap.String("url", opts.URL))

	return statusFromState(fresh), nil
}

// Pause suspends capture. The page must acknowledge before any state
// changes, so a failure leaves the session exactly as it was.
func (c *DefaultCoordinator) Pause(ctx context.Context) (*Status, error) {
	return c.setPhase(ctx, PhaseRecording, PhasePaused)
}

// Resume restarts capture after a pause
func (c *DefaultCoordinator) Resume(ctx context.Context) (*Status, error) {
	return c.setPhase(ctx, PhasePaused, PhaseRecording)
}

func (c *DefaultCoordinator) setPhase(ctx context.Context, from, to Phase) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	if st.Phase != from {
		return nil, fmt.Errorf("%w: cannot go from %s to %s", ErrInvalidTransition, st.Phase, to)
	}

	if c.page == nil {
		return nil, ErrPageUnreachable
	}
	pctx, cancel := c.pageCtx(ctx)
	err = c.page.SetPhase(pctx, to)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageUnreachable, err)
	}

	st.Phase = to
	if err := c.store.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save session state: %w", err)
	}

	c.logger.Info("recording phase changed", zap.String("phase", string(to)))
	return statusFromState(st), nil
}

// Sync assigns the next global id, sanitizes the action and appends it
// to the durable page cache. Actions racing a pause are accepted rather
// than dropped; only a truly idle session rejects them.
func (c *DefaultCoordinator) Sync(ctx context.Context, a *action.Action) (string, error) {
	if a == nil {
		return "", fmt.Errorf("action cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load session state: %w", err)
	}
	if st.Phase == PhaseIdle {
		return "", fmt.Errorf("%w: no recording in progress", ErrInvalidTransition)
	}
	if st.Phase == PhasePaused {
		c.logger.Debug("action accepted during pause transition",
			zap.String("type", string(a.Type)))
	}

	st.Counter++
	a.ID = action.FormatID(st.Counter)
	sanitize.Apply(a)
	st.PageCache = append(st.PageCache, a)

	if err := c.store.Save(ctx, st); err != nil {
		return "", fmt.Errorf("failed to save session state: %w", err)
	}

	return a.ID, nil
}

// OnNavigationStart runs just before the current page unloads: flush
// the live page best-effort, then fold the page cache into the
// accumulated set and clear it so the next page starts clean. The merge
// deduplicates so a retried report of the same action cannot land twice.
func (c *DefaultCoordinator) OnNavigationStart(ctx context.Context, newURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session state: %w", err)
	}
	if st.Phase == PhaseIdle {
		return nil
	}

	c.absorbPageView(ctx, st)

	st.Accumulated = mergeActions(st.Accumulated, st.PageCache)
	st.PageCache = nil
	if newURL != "" {
		st.CurrentURL = newURL
	}

	if err := c.store.Save(ctx, st); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}

	c.logger.Debug("navigation reconciled",
		zap.String("new_url", newURL),
		zap.Int("accumulated", len(st.Accumulated)))
	return nil
}

// OnNavigationComplete attaches the freshly booted page's connection
// and answers its state query from durable state alone. The new page
// applies the answer itself; the coordinator never drives it.
func (c *DefaultCoordinator) OnNavigationComplete(ctx context.Context, conn PageConn) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.page = conn

	st, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	return statusFromState(st), nil
}

// OnPageClosed resets the lifecycle without assembling an artifact.
// Actions already synced stay in the durable store until the next start
// wipes them, so nothing is silently destroyed.
func (c *DefaultCoordinator) OnPageClosed(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.page = nil

	st, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session state: %w", err)
	}
	if st.Phase == PhaseIdle {
		return nil
	}

	c.logger.Warn("page closed during recording, resetting to idle",
		zap.String("test_name", st.TestName),
		zap.Int("actions_synced", st.ActionCount()))

	st.Phase = PhaseIdle
	if err := c.store.Save(ctx, st); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

// Stop assembles the final recording. The live page is consulted
// best-effort; when it is unreachable the artifact is built from
// durable state alone. Validation problems are surfaced alongside the
// recording but never block persistence.
func (c *DefaultCoordinator) Stop(ctx context.Context) (*recording.Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}
	if st.Phase == PhaseIdle {
		return nil, fmt.Errorf("%w: no recording in progress", ErrInvalidTransition)
	}
	if st.TestName == "" || st.StartedAt.IsZero() {
		if rbErr := c.store.Save(ctx, NewIdleState()); rbErr != nil {
			c.logger.Error("failed to reset session state", zap.Error(rbErr))
		}
		return nil, ErrMissingMetadata
	}

	c.absorbPageView(ctx, st)

	final := mergeActions(st.Accumulated, st.PageCache)
	rec := recording.New(st.TestName, st.OriginURL, st.Viewport, st.UserAgent,
		st.StartedAt, c.now(), final)

	var failures []error
	if vErr := recording.Validate(rec); vErr != nil {
		c.logger.Warn("recording failed validation", zap.Error(vErr))
		failures = append(failures, ErrValidationFailed, vErr)
	}

	if err := c.recordings.Save(rec); err != nil {
		c.logger.Error("failed to persist recording", zap.Error(err))
		failures = append(failures, fmt.Errorf("failed to persist recording: %w", err))
	}

	if err := c.store.Save(ctx, NewIdleState()); err != nil {
		c.logger.Error("failed to reset session state", zap.Error(err))
		failures = append(failures, fmt.Errorf("failed to reset session state: %w", err))
	}

	c.logger.Info("recording stopped",
		zap.String("id", rec.ID),
		zap.String("test_name", rec.TestName),
		zap.Int("actions", len(rec.Actions)))

	return rec, errors.Join(failures...)
}

// Status answers from a fresh read of durable state. When that read
// fails, the poller's last observation is served instead, so status
// stays available while the store hiccups.
func (c *DefaultCoordinator) Status(ctx context.Context) (*Status, error) {
	st, err := c.store.Load(ctx)
	if err != nil {
		c.cacheMu.RLock()
		cached := c.cached
		c.cacheMu.RUnlock()
		if cached != nil {
			c.logger.Warn("serving cached status, state read failed", zap.Error(err))
			return cached, nil
		}
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	status := statusFromState(st)
	c.updateCache(status)
	return status, nil
}

// Close stops the observability poller
func (c *DefaultCoordinator) Close() error {
	c.closeOnce.Do(func() { close(c.quit) })
	return nil
}

// absorbPageView asks the live page for its local action log and folds
// in anything the durable cache has not seen, assigning fresh ids.
// Failures are swallowed: an unreachable page only costs the window of
// actions that never made it through sync.
func (c *DefaultCoordinator) absorbPageView(ctx context.Context, st *State) {
	if c.page == nil {
		return
	}

	pctx, cancel := c.pageCtx(ctx)
	defer cancel()

	pageActions, err := c.page.SaveState(pctx)
	if err != nil {
		c.logger.Debug("pre-unload flush failed", zap.Error(err))
		return
	}

	seen := make(map[string]struct{}, len(st.PageCache)+len(st.Accumulated))
	for _, a := range st.PageCache {
		seen[a.DedupeKey()] = struct{}{}
	}
	for _, a := range st.Accumulated {
		seen[a.DedupeKey()] = struct{}{}
	}

	recovered := 0
	for _, a := range pageActions {
		key := a.DedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		st.Counter++
		a.ID = action.FormatID(st.Counter)
		sanitize.Apply(a)
		st.PageCache = append(st.PageCache, a)
		recovered++
	}

	if recovered > 0 {
		c.logger.Info("recovered unsynced actions from page", zap.Int("count", recovered))
	}
}

func (c *DefaultCoordinator) pageStart(ctx context.Context) error {
	pctx, cancel := c.pageCtx(ctx)
	defer cancel()
	return c.page.StartCapture(pctx)
}

func (c *DefaultCoordinator) pageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.PageTimeout)
}

func (c *DefaultCoordinator) pollLoop() {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PollInterval)
			st, err := c.store.Load(ctx)
			cancel()
			if err != nil {
				c.logger.Debug("status poll failed", zap.Error(err))
				continue
			}
			c.updateCache(statusFromState(st))
		}
	}
}

func (c *DefaultCoordinator) updateCache(s *Status) {
	c.cacheMu.Lock()
	c.cached = s
	c.cacheMu.Unlock()
}

// mergeActions appends src entries whose merge identity is not already
// present in dst, preserving arrival order
func mergeActions(dst, src []*action.Action) []*action.Action {
	seen := make(map[string]struct{}, len(dst))
	for _, a := range dst {
		seen[a.DedupeKey()] = struct{}{}
	}
	for _, a := range src {
		key := a.DedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		dst = append(dst, a)
	}
	return dst
}

func statusFromState(st *State) *Status {
	return &Status{
		Phase:       st.Phase,
		TestName:    st.TestName,
		StartedAt:   st.StartedAt,
		ActionCount: st.ActionCount(),
	}
}
