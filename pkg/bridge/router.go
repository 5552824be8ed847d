package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"flowcap/pkg/session"
)

// Router dispatches bridge endpoints. Routes are a fixed table keyed by
// method and exact path.
type Router struct {
	routes map[string]map[string]HandlerFunc
	logger *zap.Logger
}

// HandlerFunc represents a route handler function
type HandlerFunc func(ctx *fasthttp.RequestCtx) error

// NewRouter creates an empty router
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		routes: make(map[string]map[string]HandlerFunc),
		logger: logger,
	}
}

// Register adds a route to the table
func (r *Router) Register(method, path string, handler HandlerFunc) {
	if r.routes[method] == nil {
		r.routes[method] = make(map[string]HandlerFunc)
	}
	r.routes[method][path] = handler

	r.logger.Debug("Route registered",
		zap.String("method", method),
		zap.String("path", path),
	)
}

// Handler is the main FastHTTP handler
func (r *Router) Handler(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	path := string(ctx.Path())

	methodRoutes, ok := r.routes[method]
	if !ok {
		r.handleNotFound(ctx, method, path)
		return
	}
	handler, ok := methodRoutes[path]
	if !ok {
		r.handleNotFound(ctx, method, path)
		return
	}

	if err := handler(ctx); err != nil {
		r.handleError(ctx, err)
	}
}

func (r *Router) handleNotFound(ctx *fasthttp.RequestCtx, method, path string) {
	writeJSON(ctx, fasthttp.StatusNotFound, ErrorResponse{
		Error:     fmt.Sprintf("no endpoint for %s %s", method, path),
		Code:      "not_found",
		RequestID: requestID(ctx),
	})

	r.logger.Warn("Endpoint not found",
		zap.String("method", method),
		zap.String("path", path),
	)
}

func (r *Router) handleError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)

	writeJSON(ctx, status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: requestID(ctx),
	})

	fields := []zap.Field{
		zap.String("method", string(ctx.Method())),
		zap.String("path", string(ctx.Path())),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= 500 {
		r.logger.Error("Request failed", fields...)
	} else {
		r.logger.Warn("Request rejected", fields...)
	}
}

// mapError translates coordinator errors onto HTTP semantics
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrAlreadyRecording):
		return fasthttp.StatusConflict, "already_recording"
	case errors.Is(err, session.ErrInvalidTransition):
		return fasthttp.StatusConflict, "invalid_transition"
	case errors.Is(err, session.ErrNoActivePage):
		return fasthttp.StatusPreconditionFailed, "no_active_page"
	case errors.Is(err, session.ErrPageUnreachable):
		return fasthttp.StatusBadGateway, "page_unreachable"
	case errors.Is(err, session.ErrMissingMetadata):
		return fasthttp.StatusUnprocessableEntity, "missing_metadata"
	case errors.Is(err, errBadRequest):
		return fasthttp.StatusBadRequest, "bad_request"
	default:
		return fasthttp.StatusInternalServerError, "internal"
	}
}

func requestID(ctx *fasthttp.RequestCtx) string {
	if val := ctx.UserValue("request_id"); val != nil {
		if id, ok := val.(string); ok {
			return id
		}
	}
	return ""
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, payload interface{}) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")

	data, err := json.Marshal(payload)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"error": "failed to encode response"}`)
		return
	}
	ctx.SetBody(data)
}
