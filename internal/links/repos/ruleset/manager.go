package ruleset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/haukened/linkguard/internal/links/common/clock"
	"github.com/haukened/linkguard/internal/links/common/log"
	"github.com/haukened/linkguard/internal/links/domain"
)

// DefaultLoadTimeout bounds a single store fetch when no timeout is configured.
const DefaultLoadTimeout = 2 * time.Second

var ErrNilStore = errors.New("ruleset manager requires a store")

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	Store       Store
	Cache       SnapshotCache // nil disables caching
	Compiler    *Compiler     // nil compiles without a prefilter
	Defaults    []domain.DomainRule
	LoadTimeout time.Duration
	Clock       clock.Clock
	Logger      log.Logger
}

// Manager loads, caches and invalidates per-tenant rule snapshots.
//
// Load never fails: a store error, a timeout or a cancelled caller all yield
// the system defaults for that call. Such fallback snapshots are not cached,
// so the next evaluation tries the store again.
type Manager struct {
	store       Store
	cache       SnapshotCache
	compiler    *Compiler
	defaults    *Snapshot
	loadTimeout time.Duration
	clock       clock.Clock
	logger      log.Logger

	group singleflight.Group

	// mu guards gens; gens[tenant] is bumped on every invalidation so that a
	// fetch started before the invalidation never lands in the cache.
	mu   sync.Mutex
	gens map[string]uint64

	loads     atomic.Uint64
	fallbacks atomic.Uint64
}

// NewManager constructs a Manager. Defaults fall back to DefaultRules when empty.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Store == nil {
		return nil, ErrNilStore
	}
	if opts.Cache == nil {
		opts.Cache = disabledCache{}
	}
	if opts.Compiler == nil {
		opts.Compiler = NewCompiler(nil, DefaultFPRate)
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	now := opts.Clock.Now()
	if len(opts.Defaults) == 0 {
		opts.Defaults = DefaultRules(now)
	}
	return &Manager{
		store:       opts.Store,
		cache:       opts.Cache,
		compiler:    opts.Compiler,
		defaults:    opts.Compiler.Compile(SystemTenant, SourceDefaults, opts.Defaults, now),
		loadTimeout: opts.LoadTimeout,
		clock:       opts.Clock,
		logger:      opts.Logger.With(map[string]any{"component": "ruleset"}),
		gens:        make(map[string]uint64),
	}, nil
}

// Defaults returns the compiled system default snapshot.
func (m *Manager) Defaults() *Snapshot { return m.defaults }

// Load returns the current snapshot for tenantID. Concurrent loads for the
// same tenant share one store fetch. Every Manager method normalizes the
// tenant id first, so " acme" and "acme" share one cache entry.
func (m *Manager) Load(ctx context.Context, tenantID string) *Snapshot {
	tenantID = domain.NormalizeTenant(tenantID)
	if s, ok := m.cache.Get(tenantID); ok {
		return s
	}

	gen := m.generation(tenantID)
	ch := m.group.DoChan(tenantID, func() (any, error) {
		return m.loadWithFallback(ctx, tenantID, gen), nil
	})

	select {
	case res := <-ch:
		return res.Val.(*Snapshot)
	case <-ctx.Done():
		m.fallbacks.Add(1)
		m.logger.Warn(map[string]any{"tenant": tenantID, "error": ctx.Err()}, "rule load abandoned by caller, using defaults")
		return m.defaults.forTenant(tenantID, SourceFallback)
	}
}

// Invalidate drops the cached snapshot for tenantID so the next Load refetches.
// In-flight evaluations keep the snapshot they already hold.
func (m *Manager) Invalidate(tenantID string) {
	tenantID = domain.NormalizeTenant(tenantID)
	m.mu.Lock()
	m.gens[tenantID]++
	m.cache.Remove(tenantID)
	m.group.Forget(tenantID)
	m.mu.Unlock()
	m.logger.Debug(map[string]any{"tenant": tenantID}, "rule snapshot invalidated")
}

// Reload invalidates and immediately loads a fresh snapshot.
func (m *Manager) Reload(ctx context.Context, tenantID string) *Snapshot {
	m.Invalidate(tenantID)
	return m.Load(ctx, tenantID)
}

// AddRule persists a new rule and invalidates the tenant snapshot. On any
// failure the cached snapshot is left untouched.
func (m *Manager) AddRule(ctx context.Context, tenantID, domainName string, ruleType domain.RuleType, reason string) (domain.DomainRule, error) {
	tenantID = domain.NormalizeTenant(tenantID)
	rule, err := domain.NewDomainRule(tenantID, domainName, ruleType, reason, m.clock.Now())
	if err != nil {
		return domain.DomainRule{}, err
	}
	saved, err := m.store.InsertRule(ctx, rule)
	if err != nil {
		return domain.DomainRule{}, fmt.Errorf("insert rule: %w", err)
	}
	m.Invalidate(tenantID)
	m.logger.Info(map[string]any{
		"tenant":    tenantID,
		"rule_id":   saved.ID,
		"domain":    saved.Domain,
		"rule_type": saved.Type,
	}, "rule added")
	return saved, nil
}

// RemoveRule deletes a rule and invalidates the tenant snapshot. On any
// failure the cached snapshot is left untouched.
func (m *Manager) RemoveRule(ctx context.Context, tenantID string, ruleID uint64) error {
	tenantID = domain.NormalizeTenant(tenantID)
	if tenantID == "" {
		return domain.ErrInvalidTenant
	}
	if err := m.store.DeleteRule(ctx, tenantID, ruleID); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	m.Invalidate(tenantID)
	m.logger.Info(map[string]any{"tenant": tenantID, "rule_id": ruleID}, "rule removed")
	return nil
}

// ListRules returns every stored rule for tenantID, active or not.
func (m *Manager) ListRules(ctx context.Context, tenantID string) ([]domain.DomainRule, error) {
	tenantID = domain.NormalizeTenant(tenantID)
	if tenantID == "" {
		return nil, domain.ErrInvalidTenant
	}
	rules, err := m.store.ListRules(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// Stats returns manager counters and cache metrics.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		Cache:     m.cache.Stats(),
		Loads:     m.loads.Load(),
		Fallbacks: m.fallbacks.Load(),
	}
}

type listResult struct {
	rules []domain.DomainRule
	err   error
}

// loadWithFallback is the single place the fallback policy lives. The fetch
// is detached from the caller's cancellation because its result is shared
// with every waiter on the singleflight key; it is bounded by loadTimeout.
func (m *Manager) loadWithFallback(ctx context.Context, tenantID string, gen uint64) *Snapshot {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
	defer cancel()
	m.loads.Add(1)

	ch := make(chan listResult, 1)
	go func() {
		rules, err := m.store.ListActiveRules(ctx, tenantID)
		ch <- listResult{rules: rules, err: err}
	}()

	var res listResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		m.fallbacks.Add(1)
		m.logger.Warn(map[string]any{"tenant": tenantID, "error": res.err}, "rule store unavailable, using defaults")
		return m.defaults.forTenant(tenantID, SourceFallback)
	}

	// Tenant rules replace the defaults entirely, but only when at least one
	// of them compiles to a usable entry.
	snap := m.compiler.Compile(tenantID, SourceTenant, res.rules, m.clock.Now())
	if snap.Len() == 0 {
		snap = m.defaults.forTenant(tenantID, SourceDefaults)
	}
	if m.putIfCurrent(tenantID, gen, snap) {
		m.logger.Debug(map[string]any{
			"tenant":  tenantID,
			"source":  snap.Source(),
			"domains": snap.Len(),
		}, "rule snapshot loaded")
	}
	return snap
}

func (m *Manager) generation(tenantID string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gens[tenantID]
}

func (m *Manager) putIfCurrent(tenantID string, gen uint64, s *Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gens[tenantID] != gen {
		return false
	}
	m.cache.Put(tenantID, s)
	return true
}

// disabledCache is a no-op SnapshotCache used when no cache is configured.
type disabledCache struct{}

func (disabledCache) Get(string) (*Snapshot, bool) { return nil, false }
func (disabledCache) Put(string, *Snapshot)        {}
func (disabledCache) Remove(string)                {}
func (disabledCache) Len() int                     { return 0 }
func (disabledCache) Purge()                       {}
func (disabledCache) Stats() CacheStats            { return CacheStats{} }
