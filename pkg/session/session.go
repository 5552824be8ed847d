// Package session owns the recording lifecycle. The coordinator is the
// only writer of durable session state and the sole authority for
// action ids; capture engines are disposable per page load and report
// into it. Because any page can vanish mid-conversation, every
// state-relevant operation re-reads the durable store instead of
// trusting an in-memory mirror.
package session

import (
	"context"
	"errors"
	"time"

	"flowcap/pkg/action"
	"flowcap/pkg/recording"
)

// Phase is the coordinator's lifecycle state
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRecording Phase = "recording"
	PhasePaused    Phase = "paused"
)

// Operation errors. Handlers map these onto transport responses.
var (
	ErrInvalidTransition = errors.New("operation not valid in current phase")
	ErrAlreadyRecording  = errors.New("a recording is already in progress")
	ErrNoActivePage      = errors.New("no active page to record")
	ErrPageUnreachable   = errors.New("active page is unreachable")
	ErrMissingMetadata   = errors.New("session metadata is missing")
	ErrValidationFailed  = errors.New("recording failed validation")
)

// State is the durable session record. The store persists it verbatim;
// the coordinator re-derives everything else from it.
type State struct {
	Phase     Phase     `json:"phase"`
	TestName  string    `json:"test_name,omitempty"`
	StartedAt time.Time `json:"started_at"`
	OriginURL string    `json:"origin_url,omitempty"`
	// CurrentURL tracks the page across navigations.
	CurrentURL string             `json:"current_url,omitempty"`
	Viewport   recording.Viewport `json:"viewport"`
	UserAgent  string             `json:"user_agent,omitempty"`

	// Counter is the global action counter ids are assigned from.
	Counter int `json:"global_action_counter"`
	// Accumulated holds actions confirmed from completed prior pages.
	Accumulated []*action.Action `json:"accumulated_actions,omitempty"`
	// PageCache holds actions reported by the live page, not yet
	// folded into Accumulated.
	PageCache []*action.Action `json:"current_page_actions,omitempty"`
}

// NewIdleState returns the zero session
func NewIdleState() *State {
	return &State{Phase: PhaseIdle}
}

// ActionCount is the total across completed pages and the live one
func (s *State) ActionCount() int {
	return len(s.Accumulated) + len(s.PageCache)
}

// StartOptions carries the metadata a recording begins with. TestName
// comes from the user; the rest is reported by the page being recorded.
type StartOptions struct {
	TestName  string
	URL       string
	Viewport  recording.Viewport
	UserAgent string
}

// Status is the answer to a status query
type Status struct {
	Phase       Phase     `json:"phase"`
	TestName    string    `json:"test_name,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	ActionCount int       `json:"action_count"`
}

// PageConn is the coordinator's handle on the live page's capture
// engine. Implementations deliver messages to wherever the page runs;
// any of them may fail when the page is gone, and callers treat that
// as a soft failure.
type PageConn interface {
	// StartCapture tells the page to begin capturing.
	StartCapture(ctx context.Context) error
	// SetPhase propagates a pause or resume.
	SetPhase(ctx context.Context, p Phase) error
	// SaveState asks the page to flush pending events and return its
	// local view of everything it captured this page load.
	SaveState(ctx context.Context) ([]*action.Action, error)
}

// Coordinator is the process-wide recording authority
type Coordinator interface {
	Start(ctx context.Context, opts StartOptions) (*Status, error)
	Stop(ctx context.Context) (*recording.Recording, error)
	Pause(ctx context.Context) (*Status, error)
	Resume(ctx context.Context) (*Status, error)
	Status(ctx context.Context) (*Status, error)

	// Sync assigns the next id, sanitizes and durably appends the
	// action. Returns the assigned id.
	Sync(ctx context.Context, a *action.Action) (string, error)

	// OnNavigationStart reconciles the live page's actions into the
	// accumulated set before the page is destroyed.
	OnNavigationStart(ctx context.Context, newURL string) error
	// OnNavigationComplete attaches the freshly booted page and
	// answers its state query from durable state alone.
	OnNavigationComplete(ctx context.Context, conn PageConn) (*Status, error)
	// OnPageClosed resets to idle without assembling an artifact.
	OnPageClosed(ctx context.Context) error

	Close() error
}
