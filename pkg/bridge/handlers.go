package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"flowcap/pkg/recording"
	"flowcap/pkg/session"
)

// errBadRequest marks handler errors caused by a malformed request
var errBadRequest = errors.New("bad request")

// Handlers binds the bridge endpoints to the coordinator, the page
// relay and the recordings store
type Handlers struct {
	coordinator session.Coordinator
	relay       *Relay
	recordings  recording.Store
	pollWindow  time.Duration
	logger      *zap.Logger
}

// NewHandlers wires handler dependencies
func NewHandlers(coordinator session.Coordinator, relay *Relay, recordings recording.Store, pollWindow time.Duration, logger *zap.Logger) *Handlers {
	if pollWindow <= 0 {
		pollWindow = 25 * time.Second
	}
	return &Handlers{
		coordinator: coordinator,
		relay:       relay,
		recordings:  recordings,
		pollWindow:  pollWindow,
		logger:      logger,
	}
}

// RegisterRoutes installs every bridge endpoint on the router
func (h *Handlers) RegisterRoutes(r *Router) {
	r.Register("POST", "/api/v1/start", h.Start)
	r.Register("POST", "/api/v1/stop", h.Stop)
	r.Register("POST", "/api/v1/pause", h.Pause)
	r.Register("POST", "/api/v1/resume", h.Resume)
	r.Register("GET", "/api/v1/status", h.Status)
	r.Register("POST", "/api/v1/sync", h.Sync)
	r.Register("POST", "/api/v1/navigation/start", h.NavigationStart)
	r.Register("POST", "/api/v1/navigation/complete", h.NavigationComplete)
	r.Register("POST", "/api/v1/page/closed", h.PageClosed)
	r.Register("GET", "/api/v1/commands", h.PollCommands)
	r.Register("POST", "/api/v1/commands/result", h.CommandResult)
	r.Register("GET", "/api/v1/recordings", h.ListRecordings)
	r.Register("GET", "/api/v1/health", h.Health)
}

// Start begins a recording session
func (h *Handlers) Start(ctx *fasthttp.RequestCtx) error {
	var req StartRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if req.TestName == "" {
		return fmt.Errorf("%w: test_name is required", errBadRequest)
	}

	status, err := h.coordinator.Start(ctx, session.StartOptions{
		TestName:  req.TestName,
		URL:       req.URL,
		Viewport:  req.Viewport,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		return err
	}

	writeJSON(ctx, fasthttp.StatusOK, statusResponse(status))
	return nil
}

// Stop finishes the session and returns the assembled recording.
// Validation findings come back as warnings, not failures: the artifact
// was persisted either way.
func (h *Handlers) Stop(ctx *fasthttp.RequestCtx) error {
	rec, err := h.coordinator.Stop(ctx)
	if err != nil && !errors.Is(err, session.ErrValidationFailed) {
		return err
	}

	resp := StopResponse{Recording: rec}
	if err != nil {
		resp.Warnings = validationWarnings(err)
	}

	writeJSON(ctx, fasthttp.StatusOK, resp)
	return nil
}

// Pause suspends capture
func (h *Handlers) Pause(ctx *fasthttp.RequestCtx) error {
	status, err := h.coordinator.Pause(ctx)
	if err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, statusResponse(status))
	return nil
}

// Resume restarts capture
func (h *Handlers) Resume(ctx *fasthttp.RequestCtx) error {
	status, err := h.coordinator.Resume(ctx)
	if err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, statusResponse(status))
	return nil
}

// Status answers the current lifecycle state
func (h *Handlers) Status(ctx *fasthttp.RequestCtx) error {
	status, err := h.coordinator.Status(ctx)
	if err != nil {
		return err
	}
	writeJSON(ctx, fasthttp.StatusOK, statusResponse(status))
	return nil
}

// Sync accepts one captured action and answers with its assigned id
func (h *Handlers) Sync(ctx *fasthttp.RequestCtx) error {
	var req SyncRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if req.Action == nil {
		return fmt.Errorf("%w: action is required", errBadRequest)
	}

	id, err := h.coordinator.Sync(ctx, req.Action)
	if err != nil {
		return err
	}

	writeJSON(ctx, fasthttp.StatusOK, SyncResponse{ID: id})
	return nil
}

// NavigationStart reconciles the departing page's actions
func (h *Handlers) NavigationStart(ctx *fasthttp.RequestCtx) error {
	var req NavigationStartRequest
	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}

	if err := h.coordinator.OnNavigationStart(ctx, req.URL); err != nil {
		return err
	}

	writeJSON(ctx, fasthttp.StatusOK, AckResponse{Status: "ok"})
	return nil
}

// NavigationComplete attaches the freshly booted page and answers its
// state query; the page drives itself from the answer
func (h *Handlers) NavigationComplete(ctx *fasthttp.RequestCtx) error {
	status, err := h.coordinator.OnNavigationComplete(ctx, h.relay)
	if err != nil {
		return err
	}

	writeJSON(ctx, fasthttp.StatusOK, statusResponse(status))
	return nil
}

// PageClosed resets the lifecycle after the recorded tab went away
func (h *Handlers) PageClosed(ctx *fasthttp.RequestCtx) error {
	if err := h.coordinator.OnPageClosed(ctx); err != nil {
		return err
	}

	writeJSON(ctx, fasthttp.StatusOK, AckResponse{Status: "ok"})
	return nil
}

// PollCommands is the page's long-poll. It answers with one pending
// command, or 204 when the window closes empty.
func (h *Handlers) PollCommands(ctx *fasthttp.RequestCtx) error {
	cmd, ok := h.relay.Next(ctx, h.pollWindow)
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return nil
	}

	writeJSON(ctx, fasthttp.StatusOK, cmd)
	return nil
}

// CommandResult accepts the page's answer to a delivered command
func (h *Handlers) CommandResult(ctx *fasthttp.RequestCtx) error {
	var res CommandResult
	if err := json.Unmarshal(ctx.PostBody(), &res); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if res.ID == "" {
		return fmt.Errorf("%w: command id is required", errBadRequest)
	}

	if !h.relay.Deliver(res) {
		writeJSON(ctx, fasthttp.StatusGone, ErrorResponse{
			Error: "command expired",
			Code:  "command_expired",
		})
		return nil
	}

	writeJSON(ctx, fasthttp.StatusOK, AckResponse{Status: "ok"})
	return nil
}

// ListRecordings returns stored recording summaries, newest first
func (h *Handlers) ListRecordings(ctx *fasthttp.RequestCtx) error {
	filter := recording.ListFilter{
		TestName: string(ctx.QueryArgs().Peek("test_name")),
	}
	if v := ctx.QueryArgs().Peek("limit"); len(v) > 0 {
		n, err := strconv.Atoi(string(v))
		if err != nil || n < 0 {
			return fmt.Errorf("%w: invalid limit", errBadRequest)
		}
		filter.Limit = n
	}
	if v := ctx.QueryArgs().Peek("offset"); len(v) > 0 {
		n, err := strconv.Atoi(string(v))
		if err != nil || n < 0 {
			return fmt.Errorf("%w: invalid offset", errBadRequest)
		}
		filter.Offset = n
	}

	recs, err := h.recordings.List(filter)
	if err != nil {
		return err
	}

	resp := ListResponse{
		Recordings: make([]RecordingSummary, 0, len(recs)),
		Total:      len(recs),
	}
	for _, rec := range recs {
		resp.Recordings = append(resp.Recordings, RecordingSummary{
			ID:          rec.ID,
			TestName:    rec.TestName,
			URL:         rec.URL,
			StartTime:   rec.StartTime,
			ActionCount: rec.ActionCount(),
		})
	}

	writeJSON(ctx, fasthttp.StatusOK, resp)
	return nil
}

// Health is a liveness probe
func (h *Handlers) Health(ctx *fasthttp.RequestCtx) error {
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "flowcap",
		"timestamp": ctx.Time().Unix(),
	})
	return nil
}

func statusResponse(s *session.Status) StatusResponse {
	resp := StatusResponse{
		Phase:       string(s.Phase),
		TestName:    s.TestName,
		ActionCount: s.ActionCount,
	}
	if !s.StartedAt.IsZero() {
		resp.StartedAt = recording.FormatTime(s.StartedAt)
	}
	return resp
}

// validationWarnings flattens the validation part of a stop error into
// display strings
func validationWarnings(err error) []string {
	var verrs recording.ValidationErrors
	if errors.As(err, &verrs) {
		warnings := make([]string, 0, len(verrs))
		for _, ve := range verrs {
			warnings = append(warnings, ve.Error())
		}
		return warnings
	}
	return []string{err.Error()}
}
