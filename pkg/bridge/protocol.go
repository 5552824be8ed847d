// Package bridge exposes the session coordinator over a localhost HTTP
// transport. Control clients (the CLI, a popup) drive the lifecycle;
// recording pages report actions and lifecycle events and long-poll a
// command channel for the coordinator-to-page direction.
package bridge

import (
	"flowcap/pkg/action"
	"flowcap/pkg/recording"
)

// StartRequest begins a recording session
type StartRequest struct {
	TestName  string             `json:"test_name"`
	URL       string             `json:"url"`
	Viewport  recording.Viewport `json:"viewport"`
	UserAgent string             `json:"user_agent,omitempty"`
}

// StatusResponse reports the session lifecycle as clients see it
type StatusResponse struct {
	Phase       string `json:"phase"`
	TestName    string `json:"test_name,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	ActionCount int    `json:"action_count"`
}

// StopResponse carries the finished artifact. Warnings surface
// validation findings that did not block persistence.
type StopResponse struct {
	Recording *recording.Recording `json:"recording"`
	Warnings  []string             `json:"warnings,omitempty"`
}

// SyncRequest reports one captured action
type SyncRequest struct {
	Action *action.Action `json:"action"`
}

// SyncResponse acknowledges a synced action with its assigned id
type SyncResponse struct {
	ID string `json:"id"`
}

// NavigationStartRequest announces the current page is about to unload
type NavigationStartRequest struct {
	URL string `json:"url,omitempty"`
}

// AckResponse is the generic success reply for notification endpoints
type AckResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the uniform error payload
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Command names for the coordinator-to-page channel
const (
	CommandStartCapture = "start_capture"
	CommandSetPhase     = "set_phase"
	CommandSaveState    = "save_state"
)

// Command is one coordinator-to-page instruction, delivered through
// the page's long-poll
type Command struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phase string `json:"phase,omitempty"` // set_phase only
}

// CommandResult is the page's answer to a command
type CommandResult struct {
	ID      string           `json:"id"`
	Actions []*action.Action `json:"actions,omitempty"` // save_state only
	Error   string           `json:"error,omitempty"`
}

// ListResponse carries stored recording summaries
type ListResponse struct {
	Recordings []RecordingSummary `json:"recordings"`
	Total      int                `json:"total"`
}

// RecordingSummary is the listing view of a stored recording
type RecordingSummary struct {
	ID          string `json:"id"`
	TestName    string `json:"test_name"`
	URL         string `json:"url"`
	StartTime   string `json:"start_time"`
	ActionCount int    `json:"action_count"`
}
