package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"flowcap/pkg/action"
	"flowcap/pkg/recording"
)

type fakePage struct {
	mu       sync.Mutex
	started  bool
	phase    Phase
	view     []*action.Action
	startErr error
	phaseErr error
	saveErr  error
}

func (p *fakePage) StartCapture(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	p.phase = PhaseRecording
	return nil
}

func (p *fakePage) SetPhase(ctx context.Context, phase Phase) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phaseErr != nil {
		return p.phaseErr
	}
	p.phase = phase
	return nil
}

func (p *fakePage) SaveState(ctx context.Context) ([]*action.Action, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return nil, p.saveErr
	}
	return p.view, nil
}

func clickOn(target string, ts int64) *action.Action {
	return &action.Action{
		Type:      action.TypeClick,
		Timestamp: ts,
		URL:       "https://app.test/",
		Selector:  (&action.SelectorStrategy{ID: target}).RankPriority(),
		Click:     &action.ClickDetail{X: 1, Y: 2, Button: "left"},
	}
}

func newTestCoordinator(t *testing.T) (*DefaultCoordinator, *fakePage, Store) {
	t.Helper()
	store := NewMemoryStore()
	coord := NewDefaultCoordinator(store, recording.NewMemoryStore(), zaptest.NewLogger(t), Config{
		PollInterval: 50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = coord.Close() })

	page := &fakePage{}
	_, err := coord.OnNavigationComplete(context.Background(), page)
	require.NoError(t, err)
	return coord, page, store
}

func startRecording(t *testing.T, coord *DefaultCoordinator) {
	t.Helper()
	_, err := coord.Start(context.Background(), StartOptions{
		TestName:  "login flow",
		URL:       "https://app.test/",
		Viewport:  recording.Viewport{Width: 1280, Height: 800},
		UserAgent: "Mozilla/5.0",
	})
	require.NoError(t, err)
}

func TestStart_Transitions(t *testing.T) {
	coord, page, _ := newTestCoordinator(t)
	ctx := context.Background()

	startRecording(t, coord)
	assert.True(t, page.started)

	_, err := coord.Start(ctx, StartOptions{TestName: "again"})
	assert.ErrorIs(t, err, ErrAlreadyRecording)
}

func TestStart_PageFailureRollsBack(t *testing.T) {
	coord, page, store := newTestCoordinator(t)
	page.startErr = fmt.Errorf("page gone")

	_, err := coord.Start(context.Background(), StartOptions{TestName: "doomed"})
	assert.ErrorIs(t, err, ErrNoActivePage)

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, st.Phase)
}

func TestStart_RequiresPage(t *testing.T) {
	store := NewMemoryStore()
	coord := NewDefaultCoordinator(store, recording.NewMemoryStore(), zaptest.NewLogger(t), Config{})
	defer coord.Close()

	_, err := coord.Start(context.Background(), StartOptions{TestName: "no page"})
	assert.ErrorIs(t, err, ErrNoActivePage)
}

func TestPauseResume(t *testing.T) {
	coord, page, _ := newTestCoordinator(t)
	ctx := context.Background()

	// Pause while idle is a phase mismatch.
	_, err := coord.Pause(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	startRecording(t, coord)

	status, err := coord.Pause(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhasePaused, status.Phase)
	assert.Equal(t, PhasePaused, page.phase)

	// Resume twice: second one must fail.
	_, err = coord.Resume(ctx)
	require.NoError(t, err)
	_, err = coord.Resume(ctx)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPause_UnreachablePageLeavesStateUntouched(t *testing.T) {
	coord, page, store := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	page.phaseErr = fmt.Errorf("no reply")
	_, err := coord.Pause(ctx)
	assert.ErrorIs(t, err, ErrPageUnreachable)

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseRecording, st.Phase)
}

func TestSync_AssignsStrictlyIncreasingIDs(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	for i := 1; i <= 5; i++ {
		id, err := coord.Sync(ctx, clickOn("btn", int64(1000*i)))
		require.NoError(t, err)
		assert.Equal(t, action.FormatID(i), id)
	}

	// Ids keep counting across a navigation boundary.
	require.NoError(t, coord.OnNavigationStart(ctx, "https://app.test/next"))
	id, err := coord.Sync(ctx, clickOn("next-btn", 9000))
	require.NoError(t, err)
	assert.Equal(t, "act_006", id)
}

func TestSync_RejectedWhenIdle(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	_, err := coord.Sync(context.Background(), clickOn("btn", 1000))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSync_AcceptedDuringPause(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	_, err := coord.Pause(ctx)
	require.NoError(t, err)

	id, err := coord.Sync(ctx, clickOn("racer", 1234))
	require.NoError(t, err)
	assert.Equal(t, "act_001", id)
}

func TestSync_SanitizesInput(t *testing.T) {
	coord, _, store := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	a := &action.Action{
		Type:      action.TypeInput,
		Timestamp: 1000,
		Selector:  (&action.SelectorStrategy{Name: "cardNumber"}).RankPriority(),
		Input:     &action.InputDetail{Value: "4111 1111 1111 1234", FieldName: "cardNumber"},
	}
	_, err := coord.Sync(ctx, a)
	require.NoError(t, err)

	st, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, st.PageCache, 1)
	assert.Equal(t, "**** **** **** 1234", st.PageCache[0].Input.Value)
	assert.True(t, st.PageCache[0].Input.Sensitive)
}

func TestNavigationMerge_DeduplicatesRetries(t *testing.T) {
	coord, _, store := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	_, err := coord.Sync(ctx, clickOn("submit", 5000))
	require.NoError(t, err)
	// The same interaction reported twice by a flaky relay: identical
	// timestamp, type and selector.
	_, err = coord.Sync(ctx, clickOn("submit", 5000))
	require.NoError(t, err)

	require.NoError(t, coord.OnNavigationStart(ctx, "https://app.test/done"))

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Accumulated, 1)
	assert.Empty(t, st.PageCache)
}

func TestNavigationMerge_KeepsDistinctActionsInSameMillisecond(t *testing.T) {
	coord, _, store := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	_, err := coord.Sync(ctx, clickOn("save", 5000))
	require.NoError(t, err)
	_, err = coord.Sync(ctx, clickOn("cancel", 5000))
	require.NoError(t, err)

	require.NoError(t, coord.OnNavigationStart(ctx, ""))

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Accumulated, 2)
}

func TestStop_EmptyRecordingIsValid(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	rec, err := coord.Stop(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotNil(t, rec.Actions)
	assert.Empty(t, rec.Actions)
	assert.NoError(t, recording.Validate(rec))

	status, err := coord.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, status.Phase)
}

func TestStop_MergesPagesSortedWithContiguousIDs(t *testing.T) {
	coord, page, _ := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	// First page.
	_, err := coord.Sync(ctx, clickOn("a", 1000))
	require.NoError(t, err)
	_, err = coord.Sync(ctx, clickOn("b", 2000))
	require.NoError(t, err)
	require.NoError(t, coord.OnNavigationStart(ctx, "https://app.test/two"))

	// Second page reports an earlier timestamp than the first page's
	// last action; the final artifact must still sort ascending.
	_, err = coord.OnNavigationComplete(ctx, page)
	require.NoError(t, err)
	_, err = coord.Sync(ctx, clickOn("c", 1500))
	require.NoError(t, err)
	_, err = coord.Sync(ctx, clickOn("d", 3000))
	require.NoError(t, err)

	rec, err := coord.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, rec.Actions, 4)

	var stamps []int64
	var targets []string
	for i, a := range rec.Actions {
		assert.Equal(t, action.FormatID(i+1), a.ID)
		stamps = append(stamps, a.Timestamp)
		targets = append(targets, a.Selector.ID)
	}
	assert.Equal(t, []int64{1000, 1500, 2000, 3000}, stamps)
	assert.Equal(t, []string{"a", "c", "b", "d"}, targets)
}

func TestStop_RecoversUnsyncedPageActions(t *testing.T) {
	coord, page, _ := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	_, err := coord.Sync(ctx, clickOn("synced", 1000))
	require.NoError(t, err)

	// The page's local log holds the synced action plus one that never
	// made it through.
	page.view = []*action.Action{clickOn("synced", 1000), clickOn("lost", 2000)}

	rec, err := coord.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, rec.Actions, 2)
	assert.Equal(t, "synced", rec.Actions[0].Selector.ID)
	assert.Equal(t, "lost", rec.Actions[1].Selector.ID)
}

func TestStop_BestEffortWhenPageUnreachable(t *testing.T) {
	coord, page, _ := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	_, err := coord.Sync(ctx, clickOn("btn", 1000))
	require.NoError(t, err)

	page.saveErr = fmt.Errorf("page closed")

	rec, err := coord.Stop(ctx)
	require.NoError(t, err)
	require.Len(t, rec.Actions, 1)
}

func TestStop_SurfacesValidationWithoutBlockingPersistence(t *testing.T) {
	store := NewMemoryStore()
	recStore := recording.NewMemoryStore()
	coord := NewDefaultCoordinator(store, recStore, zaptest.NewLogger(t), Config{})
	defer coord.Close()
	ctx := context.Background()

	page := &fakePage{}
	_, err := coord.OnNavigationComplete(ctx, page)
	require.NoError(t, err)

	// Zero viewport makes the finished recording structurally invalid.
	_, err = coord.Start(ctx, StartOptions{TestName: "bad viewport", URL: "https://app.test/"})
	require.NoError(t, err)

	rec, err := coord.Stop(ctx)
	require.NotNil(t, rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	var verrs recording.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	// Persisted despite the validation failure.
	saved, err := recStore.Load(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "bad viewport", saved.TestName)
}

func TestStop_MissingMetadataResets(t *testing.T) {
	coord, _, store := newTestCoordinator(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &State{Phase: PhaseRecording}))

	_, err := coord.Stop(ctx)
	assert.ErrorIs(t, err, ErrMissingMetadata)

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, st.Phase)
}

func TestStop_WhileIdle(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	_, err := coord.Stop(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestOnPageClosed_ResetsWithoutArtifact(t *testing.T) {
	store := NewMemoryStore()
	recStore := recording.NewMemoryStore()
	coord := NewDefaultCoordinator(store, recStore, zaptest.NewLogger(t), Config{})
	defer coord.Close()
	ctx := context.Background()

	page := &fakePage{}
	_, err := coord.OnNavigationComplete(ctx, page)
	require.NoError(t, err)
	_, err = coord.Start(ctx, StartOptions{
		TestName: "closed tab",
		URL:      "https://app.test/",
		Viewport: recording.Viewport{Width: 800, Height: 600},
	})
	require.NoError(t, err)
	_, err = coord.Sync(ctx, clickOn("btn", 1000))
	require.NoError(t, err)

	require.NoError(t, coord.OnPageClosed(ctx))

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseIdle, st.Phase)
	// Synced data stays in durable state; no artifact was produced.
	assert.Len(t, st.PageCache, 1)
	assert.Equal(t, int64(0), recStore.Stats().TotalRecordings)
}

func TestStatus_ReconstructsAcrossPageBoots(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	startRecording(t, coord)

	_, err := coord.Sync(ctx, clickOn("one", 1000))
	require.NoError(t, err)
	_, err = coord.Sync(ctx, clickOn("two", 2000))
	require.NoError(t, err)
	require.NoError(t, coord.OnNavigationStart(ctx, "https://app.test/next"))

	// A brand-new page connection queries state it never saw being made.
	freshPage := &fakePage{}
	status, err := coord.OnNavigationComplete(ctx, freshPage)
	require.NoError(t, err)
	assert.Equal(t, PhaseRecording, status.Phase)
	assert.Equal(t, "login flow", status.TestName)
	assert.Equal(t, 2, status.ActionCount)
	assert.False(t, status.StartedAt.IsZero())
}

type flakyStore struct {
	Store
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *flakyStore) Load(ctx context.Context) (*State, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("store offline")
	}
	return f.Store.Load(ctx)
}

func TestStatus_ServedFromCacheWhenStoreFails(t *testing.T) {
	flaky := &flakyStore{Store: NewMemoryStore()}
	coord := NewDefaultCoordinator(flaky, recording.NewMemoryStore(), zaptest.NewLogger(t), Config{})
	defer coord.Close()
	ctx := context.Background()

	page := &fakePage{}
	_, err := coord.OnNavigationComplete(ctx, page)
	require.NoError(t, err)
	_, err = coord.Start(ctx, StartOptions{
		TestName: "cached",
		URL:      "https://app.test/",
		Viewport: recording.Viewport{Width: 800, Height: 600},
	})
	require.NoError(t, err)

	// Prime the cache with a good read, then cut the store off.
	status, err := coord.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, PhaseRecording, status.Phase)

	flaky.setFail(true)
	cached, err := coord.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cached", cached.TestName)
}
