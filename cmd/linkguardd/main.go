package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/haukened/linkguard/internal/links/common/clock"
	"github.com/haukened/linkguard/internal/links/common/log"
	"github.com/haukened/linkguard/internal/links/config"
	"github.com/haukened/linkguard/internal/links/domain"
	"github.com/haukened/linkguard/internal/links/gateways/analytics"
	"github.com/haukened/linkguard/internal/links/gateways/transport"
	"github.com/haukened/linkguard/internal/links/repos/ruleset"
	"github.com/haukened/linkguard/internal/links/repos/ruleset/bloom"
	"github.com/haukened/linkguard/internal/links/repos/ruleset/bolt"
	"github.com/haukened/linkguard/internal/links/repos/ruleset/lru"
	"github.com/haukened/linkguard/internal/links/repos/ruleset/parsers"
	"github.com/haukened/linkguard/internal/links/services/policy"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "linkguardd"

	defaultShutdownTimeout = 10 * time.Second
	redisPingTimeout       = 2 * time.Second
)

// Application holds all the components of the link policy server
type Application struct {
	config    *config.AppConfig
	transport *transport.HTTPTransport
	evaluator *policy.Evaluator
	closers   []io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":            version,
		"env":                cfg.Env,
		"log_level":          cfg.LogLevel,
		"http_addr":          cfg.HTTPAddr,
		"store_path":         cfg.StorePath,
		"rules_cache_size":   cfg.RulesCacheSize,
		"rules_ttl":          cfg.RulesTTL.String(),
		"rules_load_timeout": cfg.RulesLoadTimeout.String(),
	}, "Starting "+appName)

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, appName+" stopped gracefully")
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	repos, err := buildRepositories(cfg, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repositories: %w", err)
	}

	counter, closers := buildAnalytics(cfg, logger)

	evaluator, err := policy.NewEvaluator(policy.EvaluatorOptions{
		Rules:   repos.manager,
		Counter: counter,
		Logger:  logger,
	})
	if err != nil {
		_ = repos.store.Close()
		return nil, fmt.Errorf("failed to build evaluator: %w", err)
	}

	httpTransport := transport.NewHTTPTransport(cfg.HTTPAddr, evaluator, repos.manager, logger)

	return &Application{
		config:    cfg,
		transport: httpTransport,
		evaluator: evaluator,
		closers:   append(closers, repos.store),
	}, nil
}

// repositories holds all repository implementations
type repositories struct {
	store   ruleset.Store
	manager *ruleset.Manager
}

// buildRepositories opens the rule store and assembles the snapshot manager
func buildRepositories(cfg *config.AppConfig, clk clock.Clock, logger log.Logger) (*repositories, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	store, err := bolt.New(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule store %s: %w", cfg.StorePath, err)
	}

	var defaults []domain.DomainRule
	if cfg.DefaultsDir != "" {
		defaults, err = parsers.LoadDirectory(cfg.DefaultsDir, ruleset.SystemTenant, logger, clk.Now())
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to load default rules: %w", err)
		}
		log.Info(map[string]any{
			"defaults_dir": cfg.DefaultsDir,
			"rules":        len(defaults),
		}, "Default rules loaded from directory")
	}

	manager, err := ruleset.NewManager(ruleset.ManagerOptions{
		Store:       store,
		Cache:       lru.New(cfg.RulesCacheSize, cfg.RulesTTL),
		Compiler:    ruleset.NewCompiler(bloom.NewFactory(), ruleset.DefaultFPRate),
		Defaults:    defaults,
		LoadTimeout: cfg.RulesLoadTimeout,
		Clock:       clk,
		Logger:      logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create rule manager: %w", err)
	}

	log.Info(map[string]any{
		"type":         "LRU",
		"size":         cfg.RulesCacheSize,
		"ttl":          cfg.RulesTTL.String(),
		"default_size": manager.Defaults().Len(),
	}, "Rule snapshot cache configured")

	return &repositories{store: store, manager: manager}, nil
}

// buildAnalytics returns the block counter. Without a Redis address, or when
// Redis is unreachable at startup, increments are discarded.
func buildAnalytics(cfg *config.AppConfig, logger log.Logger) (policy.BlockCounter, []io.Closer) {
	if cfg.RedisAddr == "" {
		log.Info(map[string]any{"enabled": false}, "Blocked-domain analytics disabled")
		return analytics.NopCounter{}, nil
	}
	counter := analytics.NewRedisCounter(analytics.RedisOptions{
		Address: cfg.RedisAddr,
		DB:      cfg.RedisDB,
		Prefix:  cfg.AnalyticsPrefix,
	})
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := counter.Ping(ctx); err != nil {
		logger.Warn(map[string]any{"redis_addr": cfg.RedisAddr, "error": err}, "Redis unreachable, analytics disabled")
		_ = counter.Close()
		return analytics.NopCounter{}, nil
	}
	log.Info(map[string]any{"redis_addr": cfg.RedisAddr, "prefix": cfg.AnalyticsPrefix}, "Blocked-domain analytics enabled")
	return counter, []io.Closer{counter}
}

// Run starts the HTTP server and blocks until context is cancelled
func (app *Application) Run(ctx context.Context) error {
	if err := app.transport.Start(ctx); err != nil {
		app.close()
		return fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	log.Info(map[string]any{
		"address":   app.transport.Address(),
		"transport": "HTTP",
	}, "Link policy server started")

	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := app.transport.Stop(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error during transport shutdown")
	}

	done := make(chan struct{})
	go func() {
		app.evaluator.Wait()
		app.close()
		close(done)
	}()

	select {
	case <-done:
		log.Info(nil, "Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}

func (app *Application) close() {
	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error closing resource")
		}
	}
}
