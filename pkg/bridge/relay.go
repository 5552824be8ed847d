package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"flowcap/pkg/action"
	"flowcap/pkg/capture"
	"flowcap/pkg/session"
)

// Relay carries coordinator-to-page commands to a page that can only
// be reached by letting it poll. Commands queue until the page's next
// long-poll picks them up; every dispatch waits for the page's posted
// result under the caller's deadline, so an absent page surfaces as a
// timeout instead of a hang.
type Relay struct {
	queue   chan Command
	mu      sync.Mutex
	waiting map[string]chan CommandResult
	logger  *zap.Logger
}

// NewRelay creates a relay for one recording page
func NewRelay(logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		queue:   make(chan Command, 16),
		waiting: make(map[string]chan CommandResult),
		logger:  logger.With(zap.String("component", "page_relay")),
	}
}

// StartCapture implements session.PageConn
func (r *Relay) StartCapture(ctx context.Context) error {
	_, err := r.dispatch(ctx, Command{Name: CommandStartCapture})
	return err
}

// SetPhase implements session.PageConn
func (r *Relay) SetPhase(ctx context.Context, phase session.Phase) error {
	_, err := r.dispatch(ctx, Command{Name: CommandSetPhase, Phase: string(phase)})
	return err
}

// SaveState implements session.PageConn
func (r *Relay) SaveState(ctx context.Context) ([]*action.Action, error) {
	res, err := r.dispatch(ctx, Command{Name: CommandSaveState})
	if err != nil {
		return nil, err
	}
	return res.Actions, nil
}

func (r *Relay) dispatch(ctx context.Context, cmd Command) (CommandResult, error) {
	cmd.ID = uuid.NewString()

	reply := make(chan CommandResult, 1)
	r.mu.Lock()
	r.waiting[cmd.ID] = reply
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.waiting, cmd.ID)
		r.mu.Unlock()
	}()

	select {
	case r.queue <- cmd:
	case <-ctx.Done():
		return CommandResult{}, fmt.Errorf("page did not pick up %s command: %w", cmd.Name, ctx.Err())
	}

	select {
	case res := <-reply:
		if res.Error != "" {
			return res, fmt.Errorf("page rejected %s command: %s", cmd.Name, res.Error)
		}
		return res, nil
	case <-ctx.Done():
		return CommandResult{}, fmt.Errorf("page did not answer %s command: %w", cmd.Name, ctx.Err())
	}
}

// Next blocks until a command is queued or the poll window elapses.
// The boolean is false when the window expired with nothing to deliver.
func (r *Relay) Next(ctx context.Context, window time.Duration) (Command, bool) {
	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case cmd := <-r.queue:
		return cmd, true
	case <-timer.C:
		return Command{}, false
	case <-ctx.Done():
		return Command{}, false
	}
}

// Deliver routes a page's result to the dispatch waiting on it. False
// means no dispatch was waiting, e.g. the command already timed out.
func (r *Relay) Deliver(res CommandResult) bool {
	r.mu.Lock()
	reply, ok := r.waiting[res.ID]
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("dropping result for expired command", zap.String("id", res.ID))
		return false
	}

	select {
	case reply <- res:
		return true
	default:
		return false
	}
}

// EnginePage adapts an in-process capture engine to the coordinator's
// page connection. Used when the page lives in the same process, e.g.
// headless capture and the demo.
type EnginePage struct {
	engine capture.Engine
}

// NewEnginePage wraps an engine as a page connection
func NewEnginePage(engine capture.Engine) *EnginePage {
	return &EnginePage{engine: engine}
}

// StartCapture implements session.PageConn
func (p *EnginePage) StartCapture(ctx context.Context) error {
	p.engine.SetPhase(capture.PhaseRecording)
	return nil
}

// SetPhase implements session.PageConn
func (p *EnginePage) SetPhase(ctx context.Context, phase session.Phase) error {
	switch phase {
	case session.PhaseRecording:
		p.engine.SetPhase(capture.PhaseRecording)
	case session.PhasePaused:
		p.engine.SetPhase(capture.PhasePaused)
	case session.PhaseIdle:
		p.engine.SetPhase(capture.PhaseIdle)
	default:
		return fmt.Errorf("unknown phase: %s", phase)
	}
	return nil
}

// SaveState implements session.PageConn
func (p *EnginePage) SaveState(ctx context.Context) ([]*action.Action, error) {
	return p.engine.SaveCurrentState(ctx), nil
}
