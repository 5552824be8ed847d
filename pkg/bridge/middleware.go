package bridge

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"flowcap/pkg/config"
)

// MiddlewareFunc is the type of function for FastHTTP middleware
type MiddlewareFunc func(next fasthttp.RequestHandler) fasthttp.RequestHandler

// Stack represents a stack of middleware
type Stack struct {
	middlewares []MiddlewareFunc
	mu          sync.RWMutex
}

// NewStack creates a new middleware stack with optional initial middlewares
func NewStack(middlewares ...MiddlewareFunc) *Stack {
	stack := &Stack{
		middlewares: make([]MiddlewareFunc, len(middlewares)),
	}
	copy(stack.middlewares, middlewares)
	return stack
}

// Use adds a middleware to the stack
func (s *Stack) Use(middleware MiddlewareFunc) *Stack {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, middleware)
	return s
}

// Apply applies all middleware in the stack to a handler
func (s *Stack) Apply(handler fasthttp.RequestHandler) fasthttp.RequestHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Apply middlewares in reverse order to maintain the correct execution order
	result := handler
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		result = s.middlewares[i](result)
	}
	return result
}

// RequestID middleware generates and injects unique request IDs
func RequestID(enabled bool) MiddlewareFunc {
	if !enabled {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			requestID := uuid.New().String()

			ctx.SetUserValue("request_id", requestID)
			ctx.Response.Header.Set("X-Request-ID", requestID)

			next(ctx)
		}
	}
}

// Logger middleware provides request/response logging with zap integration
func Logger(logger *zap.Logger) MiddlewareFunc {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()

			next(ctx)

			duration := time.Since(start)

			requestID := ""
			if val := ctx.UserValue("request_id"); val != nil {
				requestID = val.(string)
			}

			fields := []zap.Field{
				zap.String("method", string(ctx.Method())),
				zap.String("path", string(ctx.Path())),
				zap.Int("status", ctx.Response.StatusCode()),
				zap.Duration("duration", duration),
				zap.String("remote_addr", ctx.RemoteAddr().String()),
				zap.Int("request_size", len(ctx.Request.Body())),
				zap.Int("response_size", len(ctx.Response.Body())),
			}

			if requestID != "" {
				fields = append(fields, zap.String("request_id", requestID))
			}

			status := ctx.Response.StatusCode()
			switch {
			case status >= 500:
				logger.Error("HTTP request", fields...)
			case status >= 400:
				logger.Warn("HTTP request", fields...)
			default:
				logger.Info("HTTP request", fields...)
			}
		}
	}
}

// Recovery middleware recovers from panics and logs them
func Recovery(logger *zap.Logger, recoveryCfg *config.RecoveryConfig) MiddlewareFunc {
	if !recoveryCfg.Enabled {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if r := recover(); r != nil {
					requestID := ""
					if val := ctx.UserValue("request_id"); val != nil {
						requestID = val.(string)
					}

					stack := make([]byte, 4096)
					length := runtime.Stack(stack, false)
					stackTrace := string(stack[:length])

					fields := []zap.Field{
						zap.Any("panic", r),
						zap.String("method", string(ctx.Method())),
						zap.String("path", string(ctx.Path())),
						zap.String("remote_addr", ctx.RemoteAddr().String()),
					}

					if requestID != "" {
						fields = append(fields, zap.String("request_id", requestID))
					}

					if recoveryCfg.LogStack {
						fields = append(fields, zap.String("stack_trace", stackTrace))
					}

					logger.Error("Panic recovered", fields...)

					if recoveryCfg.PrintStack {
						fmt.Printf("Panic: %v\nStack trace:\n%s\n", r, stackTrace)
					}

					ctx.SetStatusCode(fasthttp.StatusInternalServerError)
					ctx.SetContentType("application/json")

					errorResponse := fmt.Sprintf(`{"error": "Internal server error", "request_id": "%s"}`, requestID)
					ctx.SetBody([]byte(errorResponse))
				}
			}()

			next(ctx)
		}
	}
}

// CORS middleware handles Cross-Origin Resource Sharing. Recording
// pages call the daemon from arbitrary origins, so preflights must
// succeed for capture to work at all.
func CORS(corsCfg *config.CORSConfig) MiddlewareFunc {
	if !corsCfg.Enabled {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			origin := string(ctx.Request.Header.Peek("Origin"))

			allowedOrigin := ""
			for _, allowed := range corsCfg.AllowOrigins {
				if allowed == "*" || allowed == origin {
					allowedOrigin = allowed
					break
				}
			}

			if allowedOrigin != "" {
				if allowedOrigin == "*" {
					ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
				} else {
					ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
				}

				if len(corsCfg.AllowMethods) > 0 {
					ctx.Response.Header.Set("Access-Control-Allow-Methods", strings.Join(corsCfg.AllowMethods, ", "))
				}

				if len(corsCfg.AllowHeaders) > 0 {
					ctx.Response.Header.Set("Access-Control-Allow-Headers", strings.Join(corsCfg.AllowHeaders, ", "))
				}

				if corsCfg.AllowCredentials {
					ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
				}

				if corsCfg.MaxAge > 0 {
					ctx.Response.Header.Set("Access-Control-Max-Age", strconv.Itoa(corsCfg.MaxAge))
				}
			}

			if string(ctx.Method()) == "OPTIONS" {
				ctx.SetStatusCode(fasthttp.StatusNoContent)
				return
			}

			next(ctx)
		}
	}
}

// Timeout middleware enforces request timeouts
func Timeout(timeoutCfg *config.TimeoutConfig) MiddlewareFunc {
	if !timeoutCfg.Enabled {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			timeoutCtx, cancel := context.WithTimeout(context.Background(), timeoutCfg.Duration)
			defer cancel()

			done := make(chan struct{})

			go func() {
				defer func() {
					if r := recover(); r != nil {
						// Re-panic to be caught by recovery middleware
						panic(r)
					}
					close(done)
				}()
				next(ctx)
			}()

			select {
			case <-done:
			case <-timeoutCtx.Done():
				requestID := ""
				if val := ctx.UserValue("request_id"); val != nil {
					requestID = val.(string)
				}

				ctx.SetStatusCode(fasthttp.StatusRequestTimeout)
				ctx.SetContentType("application/json")

				errorResponse := fmt.Sprintf(`{"error": "Request timeout", "timeout": "%s", "request_id": "%s"}`,
					timeoutCfg.Duration, requestID)
				ctx.SetBody([]byte(errorResponse))
			}
		}
	}
}

// Auth middleware validates bearer JWTs on every non-public endpoint.
// Only HMAC signing methods are supported; the daemon and its clients
// share one secret.
func Auth(authCfg *config.AuthConfig, logger *zap.Logger) MiddlewareFunc {
	if !authCfg.Enabled {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}
	}

	secret := []byte(authCfg.JWTSecret)

	var method jwt.SigningMethod
	switch authCfg.JWTMethod {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		method = jwt.SigningMethodHS256
	}

	public := make(map[string]bool, len(authCfg.PublicEndpoints))
	for _, p := range authCfg.PublicEndpoints {
		public[p] = true
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			path := string(ctx.Path())
			if public[path] || string(ctx.Method()) == "OPTIONS" {
				next(ctx)
				return
			}

			token := extractBearer(ctx)
			if token == "" {
				unauthorized(ctx, logger, "missing bearer token")
				return
			}

			subject, err := validateJWT(token, method, secret, authCfg.JWTIssuer)
			if err != nil {
				unauthorized(ctx, logger, err.Error())
				return
			}

			ctx.SetUserValue("subject", subject)
			next(ctx)
		}
	}
}

func extractBearer(ctx *fasthttp.RequestCtx) string {
	authHeader := string(ctx.Request.Header.Peek("Authorization"))
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func validateJWT(tokenString string, method jwt.SigningMethod, secret []byte, issuer string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != method {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}

	if issuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != issuer {
			return "", fmt.Errorf("invalid issuer")
		}
	}

	subject, _ := claims["sub"].(string)
	return subject, nil
}

func unauthorized(ctx *fasthttp.RequestCtx, logger *zap.Logger, reason string) {
	logger.Warn("Authentication failed",
		zap.String("path", string(ctx.Path())),
		zap.String("remote_addr", ctx.RemoteAddr().String()),
		zap.String("reason", reason))

	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetContentType("application/json")
	ctx.SetBody([]byte(`{"error": "Unauthorized"}`))
}

// RateLimiter bounds per-client sync throughput. A runaway page
// re-reporting in a loop gets 429s instead of flooding the session
// store.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*limiterEntry

	cleanupInterval time.Duration
	entryTTL        time.Duration
	quit            chan struct{}
	closeOnce       sync.Once
	logger          *zap.Logger
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewRateLimiter creates a per-client limiter and starts its idle-entry
// cleanup loop. Close stops the loop.
func NewRateLimiter(cfg *config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	burst := cfg.SyncBurst
	if burst <= 0 {
		burst = int(cfg.SyncPerSecond)
	}
	if burst < 1 {
		burst = 1
	}

	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}
	ttl := cfg.EntryTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	rl := &RateLimiter{
		limit:           rate.Limit(cfg.SyncPerSecond),
		burst:           burst,
		clients:         make(map[string]*limiterEntry),
		cleanupInterval: cleanup,
		entryTTL:        ttl,
		quit:            make(chan struct{}),
		logger:          logger,
	}

	go rl.cleanupLoop()
	return rl
}

// Allow reports whether the client identified by key may proceed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	entry, ok := rl.clients[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = entry
	}
	entry.lastUsed = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// Close stops the cleanup loop
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.quit) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.quit:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() {
	cutoff := time.Now().Add(-rl.entryTTL)

	rl.mu.Lock()
	evicted := 0
	for key, entry := range rl.clients {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.clients, key)
			evicted++
		}
	}
	rl.mu.Unlock()

	if evicted > 0 {
		rl.logger.Debug("evicted idle rate limiter entries", zap.Int("count", evicted))
	}
}

// RateLimit returns a middleware that applies rl to the sync endpoint
// only; lifecycle and long-poll traffic is not throttled
func RateLimit(rl *RateLimiter, syncPath string) MiddlewareFunc {
	if rl == nil {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if string(ctx.Path()) != syncPath {
				next(ctx)
				return
			}

			if !rl.Allow(clientIP(ctx)) {
				ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
				ctx.SetContentType("application/json")
				ctx.SetBody([]byte(`{"error": "Rate limit exceeded"}`))
				return
			}

			next(ctx)
		}
	}
}

func clientIP(ctx *fasthttp.RequestCtx) string {
	addr := ctx.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
