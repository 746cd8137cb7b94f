package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/haukened/linkguard/internal/links/common/log"
	"github.com/haukened/linkguard/internal/links/domain"
	"github.com/haukened/linkguard/internal/links/repos/ruleset"
)

// shutdownTimeout bounds how long Stop waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// HTTPTransport serves the JSON API with gin.
type HTTPTransport struct {
	addr      string
	evaluator Evaluator
	rules     RuleAdmin
	logger    log.Logger
	router    *gin.Engine

	mu       sync.RWMutex
	server   *http.Server
	listener net.Listener
	running  bool
	stopCh   chan struct{}
}

// NewHTTPTransport builds the router; nothing is bound until Start.
func NewHTTPTransport(addr string, evaluator Evaluator, rules RuleAdmin, logger log.Logger) *HTTPTransport {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	t := &HTTPTransport{
		addr:      addr,
		evaluator: evaluator,
		rules:     rules,
		logger:    logger.With(map[string]any{"transport": "http"}),
	}
	t.router = t.routes()
	return t
}

// Handler returns the HTTP handler, for embedding or testing without a socket.
func (t *HTTPTransport) Handler() http.Handler { return t.router }

// Start binds addr and serves until Stop is called or ctx is done.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("HTTP transport already running")
	}

	l, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.addr, err)
	}
	srv := &http.Server{
		Handler:           t.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	t.server = srv
	t.listener = l
	t.running = true
	t.stopCh = make(chan struct{})
	stopCh := t.stopCh

	t.logger.Info(map[string]any{"address": l.Addr().String()}, "HTTP transport started")

	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error(map[string]any{"error": err}, "HTTP server failed")
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = t.Stop()
		case <-stopCh:
		}
	}()
	return nil
}

// Stop gracefully shuts down the server. It is safe to call more than once.
func (t *HTTPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	t.running = false
	close(t.stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := t.server.Shutdown(ctx)
	if err != nil {
		t.logger.Warn(map[string]any{"error": err}, "Error shutting down HTTP server")
	}
	t.logger.Info(map[string]any{"address": t.listener.Addr().String()}, "HTTP transport stopped")
	return err
}

// Address returns the bound address once started, otherwise the configured one.
func (t *HTTPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}

func (t *HTTPTransport) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), t.requestLogger())

	r.GET("/healthz", t.health)

	v1 := r.Group("/v1/tenants/:tenant")
	{
		v1.POST("/evaluate", t.evaluate)
		v1.GET("/rules", t.listRules)
		v1.POST("/rules", t.addRule)
		v1.DELETE("/rules/:id", t.removeRule)
	}
	return r
}

func (t *HTTPTransport) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		t.logger.Debug(map[string]any{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}, "request")
	}
}

type evaluateRequest struct {
	Content *string `json:"content" binding:"required"`
}

type addRuleRequest struct {
	Domain   string `json:"domain" binding:"required,max=253"`
	RuleType string `json:"rule_type" binding:"required,oneof=blocked allowed competitor trusted"`
	Reason   string `json:"reason" binding:"max=512"`
}

type rulesResponse struct {
	Source     ruleset.Source      `json:"source"`
	Blocked    []string            `json:"blocked"`
	Allowed    []string            `json:"allowed"`
	Competitor []string            `json:"competitor"`
	Rules      []domain.DomainRule `json:"rules"`
}

func (t *HTTPTransport) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rules": t.rules.Stats()})
}

func (t *HTTPTransport) evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	res, err := t.evaluator.Evaluate(c.Request.Context(), c.Param("tenant"), *req.Content)
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (t *HTTPTransport) listRules(c *gin.Context) {
	tenant := c.Param("tenant")
	rules, err := t.rules.ListRules(c.Request.Context(), tenant)
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	snap := t.rules.Load(c.Request.Context(), tenant)
	c.JSON(http.StatusOK, rulesResponse{
		Source:     snap.Source(),
		Blocked:    snap.Blocked(),
		Allowed:    snap.Allowed(),
		Competitor: snap.Competitor(),
		Rules:      rules,
	})
}

func (t *HTTPTransport) addRule(c *gin.Context) {
	var req addRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	ruleType, err := domain.ParseRuleType(req.RuleType)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	rule, err := t.rules.AddRule(c.Request.Context(), c.Param("tenant"), req.Domain, ruleType, req.Reason)
	if err != nil {
		abort(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (t *HTTPTransport) removeRule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		abort(c, http.StatusBadRequest, fmt.Errorf("invalid rule id %q", c.Param("id")))
		return
	}
	if err := t.rules.RemoveRule(c.Request.Context(), c.Param("tenant"), id); err != nil {
		abort(c, statusFor(err), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// statusFor maps domain errors to HTTP status codes. Anything unrecognised
// is a failure of the rule store behind us.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidTenant),
		errors.Is(err, domain.ErrInvalidDomain),
		errors.Is(err, domain.ErrInvalidRuleType),
		errors.Is(err, domain.ErrInvalidContent):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicateRule):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRuleNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

var _ ServerTransport = (*HTTPTransport)(nil)
