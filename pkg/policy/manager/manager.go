package manager

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/policy/composite"
	"mercator-hq/saturn/pkg/policy/pointcut"
	"mercator-hq/saturn/pkg/policy/processor"
	"mercator-hq/saturn/pkg/telemetry/metrics"

	"github.com/robfig/cron/v3"
)

// applicability is a cached provider answer for one (component, pointcut
// parameters) pair. It holds one reference on its instance.
type applicability struct {
	epoch    uint64
	expires  time.Time
	instance *instance
}

// Manager creates the policies applying to source and operation
// invocations and caches their composites.
//
// Lookups run under the read side of evictionMu while they ask the provider;
// InvalidateCaches takes the write side, so an invalidation waits for the
// lookups in progress and the lookups after it see the new policies.
type Manager struct {
	config       Config
	provider     PolicyProvider
	pointcuts    *pointcut.Manager
	factory      processor.Factory
	transformers ParametersTransformerResolver
	collector    *metrics.Collector
	logger       *slog.Logger
	now          func() time.Time

	evictionMu sync.RWMutex
	epoch      atomic.Uint64

	mu        sync.Mutex
	source    map[string]*applicability
	operation map[string]*applicability
	instances map[string]*instance
	live      map[string]int
	closed    bool

	sweeper *cron.Cron
}

// Option configures a Manager.
type Option func(*Manager)

// WithProcessorFactory sets the factory the composites create policy
// processors with.
func WithProcessorFactory(f processor.Factory) Option {
	return func(m *Manager) { m.factory = f }
}

// WithParametersTransformerResolver sets the resolver of operation
// parameters transformers.
func WithParametersTransformerResolver(r ParametersTransformerResolver) Option {
	return func(m *Manager) { m.transformers = r }
}

// WithMetrics sets the metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.collector = c }
}

// WithClock sets the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a manager resolving policies with provider. A nil
// pointcuts manager creates base parameters for every component. The manager
// subscribes to provider changes and, when cfg.SweepSchedule is set, starts
// its sweeper; call Close to stop it.
func NewManager(provider PolicyProvider, pointcuts *pointcut.Manager, cfg Config, opts ...Option) (*Manager, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: policy provider is required", policy.ErrInvalidArgument)
	}

	m := &Manager{
		config:    cfg,
		provider:  provider,
		pointcuts: pointcuts,
		now:       time.Now,
		source:    make(map[string]*applicability),
		operation: make(map[string]*applicability),
		instances: make(map[string]*instance),
		live:      make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "policy_manager")
	if m.pointcuts == nil {
		m.pointcuts = pointcut.NewManager(nil, nil, m.logger)
	}
	if m.factory == nil {
		m.factory = processor.NewFactory(nil, nil, m.logger)
	}

	if cfg.SweepSchedule != "" {
		m.sweeper = cron.New()
		if _, err := m.sweeper.AddFunc(cfg.SweepSchedule, func() { m.Sweep() }); err != nil {
			return nil, fmt.Errorf("%w: invalid sweep schedule %q: %v", policy.ErrInvalidArgument, cfg.SweepSchedule, err)
		}
		m.sweeper.Start()
	}

	provider.OnPoliciesChanged(m.InvalidateCaches)

	return m, nil
}

// CreateSourcePolicyInstance returns the policies applying to the invocation
// of component for ev, around flow. pp computes the response parameters; it
// may be nil. The caller must Dispose the instance when done with it.
//
// When no policy applies the flow runs directly and nothing is cached.
func (m *Manager) CreateSourcePolicyInstance(component policy.Component, ev *event.Event, flow policy.Processor, pp composite.SourceParametersProcessor) (*SourcePolicyInstance, error) {
	params, err := m.pointcuts.CreateSourcePointcutParameters(component, ev.Message().Attributes)
	if err != nil {
		return nil, err
	}
	composite.AttachSourcePolicyContext(ev.Context(), params)

	result := &SourcePolicyInstance{pp: pp, params: params}
	if !m.provider.IsSourcePoliciesAvailable() {
		result.policy = composite.NewNoSourcePolicy(flow, m.logger)
		return result, nil
	}

	inst, err := m.resolve(kindSource, component, params,
		func() []policy.Policy { return m.provider.FindSourceParameterizedPolicies(params) },
		func(policies []policy.Policy, onDisposed func()) (retainer, error) {
			return composite.NewCompositeSourcePolicy(policies, flow, m.compositeOptions(component, params, onDisposed)...)
		},
	)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		result.policy = composite.NewNoSourcePolicy(flow, m.logger)
		return result, nil
	}

	result.policy = inst.source
	return result, nil
}

// CreateOperationPolicy returns the policies applying to the invocation of
// component with parameters, on behalf of the execution of ev. The caller
// must Dispose the instance when done with it.
//
// When no policy applies the operation runs directly and nothing is cached.
func (m *Manager) CreateOperationPolicy(component policy.Component, ev *event.Event, parameters map[string]any) (*OperationPolicyInstance, error) {
	var source policy.PointcutParameters
	if sctx, ok := composite.SourcePolicyContextFrom(ev); ok {
		source = sctx.PointcutParameters()
	}

	params, err := m.pointcuts.CreateOperationPointcutParameters(component, source, parameters)
	if err != nil {
		return nil, err
	}

	result := &OperationPolicyInstance{parameters: parameters, location: component.Location, params: params}
	if !m.provider.IsOperationPoliciesAvailable() {
		result.policy = composite.NewNoOperationPolicy(m.logger)
		return result, nil
	}

	inst, err := m.resolve(kindOperation, component, params,
		func() []policy.Policy { return m.provider.FindOperationParameterizedPolicies(params) },
		func(policies []policy.Policy, onDisposed func()) (retainer, error) {
			opts := m.compositeOptions(component, params, onDisposed)
			if m.transformers != nil {
				if t, ok := m.transformers.ParametersTransformer(component.Identifier); ok {
					opts = append(opts, composite.WithParametersTransformer(t))
				}
			}
			return composite.NewCompositeOperationPolicy(policies, opts...)
		},
	)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		result.policy = composite.NewNoOperationPolicy(m.logger)
		return result, nil
	}

	result.policy = inst.operation
	return result, nil
}

func (m *Manager) compositeOptions(component policy.Component, params policy.PointcutParameters, onDisposed func()) []composite.Option {
	return []composite.Option{
		composite.WithProcessorFactory(m.factory),
		composite.WithSinkCount(m.config.SinkCount),
		composite.WithPointcutParameters(params),
		composite.WithComponent(component),
		composite.WithOnDisposed(onDisposed),
		composite.WithLogger(m.logger),
	}
}

type buildFunc func(policies []policy.Policy, onDisposed func()) (retainer, error)

// resolve returns the instance for the applicability of params, retained
// for the caller, or nil when no policy applies.
func (m *Manager) resolve(kind string, component policy.Component, params policy.PointcutParameters, find func() []policy.Policy, build buildFunc) (*instance, error) {
	key := applicabilityKey(component, params)

	inst, expired, err := m.lookup(kind, key)
	m.releaseAll(expired)
	m.collector.RecordCacheEviction(kind, "expired", len(expired))
	if err != nil || inst != nil {
		if inst != nil {
			m.collector.RecordCacheHit(kind)
		}
		return inst, err
	}
	m.collector.RecordCacheMiss(kind)

	m.evictionMu.RLock()
	defer m.evictionMu.RUnlock()

	epoch := m.epoch.Load()
	policies := find()
	if len(policies) == 0 {
		return nil, nil
	}

	inst, replaced, err := m.store(kind, key, epoch, component, params, policies, build)
	if replaced != nil {
		replaced.instance.release()
	}
	return inst, err
}

// store caches the instance for policies under key and returns it retained
// for the caller, with the entry it replaced, if any.
func (m *Manager) store(kind, key string, epoch uint64, component policy.Component, params policy.PointcutParameters, policies []policy.Policy, build buildFunc) (*instance, *applicability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, ErrClosed
	}

	cache := m.cache(kind)
	previous, cached := cache[key]
	if cached && previous.epoch == epoch && !m.expired(previous) && previous.instance.retain() {
		// Another lookup cached the answer meanwhile.
		return previous.instance, nil, nil
	}

	inst, err := m.instanceLocked(kind, component, params, policies, build)
	if err != nil {
		return nil, nil, err
	}

	// The cache entry holds one reference, the caller another.
	if !inst.retain() {
		return nil, nil, fmt.Errorf("policy instance %s disposed while cached", inst.key)
	}
	cache[key] = &applicability{
		epoch:    epoch,
		expires:  m.expiry(),
		instance: inst,
	}
	m.collector.UpdateCacheSize(kind, len(cache))

	if !cached {
		previous = nil
	}
	return inst, previous, nil
}

// lookup returns the cached instance of key retained for the caller. Expired
// entries are removed and returned for release outside the lock.
func (m *Manager) lookup(kind, key string) (*instance, []*applicability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, ErrClosed
	}

	cache := m.cache(kind)
	entry, ok := cache[key]
	if !ok {
		return nil, nil, nil
	}

	if entry.epoch != m.epoch.Load() || m.expired(entry) {
		delete(cache, key)
		m.collector.UpdateCacheSize(kind, len(cache))
		return nil, []*applicability{entry}, nil
	}

	if !entry.instance.retain() {
		return nil, nil, nil
	}
	return entry.instance, nil, nil
}

// instanceLocked returns the live instance for the policies, retained once,
// building it if needed. A built instance starts with the reference given to
// the cache entry, so it is returned without an extra retain.
func (m *Manager) instanceLocked(kind string, component policy.Component, params policy.PointcutParameters, policies []policy.Policy, build buildFunc) (*instance, error) {
	key := instanceKey(kind, component, params, policies)

	if inst, ok := m.instances[key]; ok && inst.retain() {
		return inst, nil
	}

	inst := &instance{key: key, kind: kind}
	c, err := build(policies, func() { m.onDisposed(inst) })
	if err != nil {
		return nil, err
	}
	inst.composite = c
	if p, ok := c.(composite.SourcePolicy); ok {
		inst.source = p
	}
	if p, ok := c.(composite.OperationPolicy); ok {
		inst.operation = p
	}

	m.instances[key] = inst
	m.live[kind]++
	m.collector.RecordInstanceCreated(kind)
	m.collector.UpdateLivePipelines(kind, m.live[kind])

	m.logger.Debug("policy instance created",
		"kind", kind,
		"location", component.Location,
		"policies", strings.Join(policy.IDs(policies), ","),
	)
	return inst, nil
}

func (m *Manager) onDisposed(inst *instance) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.instances[inst.key] == inst {
		delete(m.instances, inst.key)
	}
	m.live[inst.kind]--
	m.collector.RecordInstanceDisposed(inst.kind)
	m.collector.UpdateLivePipelines(inst.kind, m.live[inst.kind])
}

// InvalidateCaches drops every cached applicability answer. It waits for the
// lookups asking the provider, so their callers get a consistent answer and
// later lookups ask the provider again.
func (m *Manager) InvalidateCaches() {
	m.evictionMu.Lock()
	m.epoch.Add(1)
	m.mu.Lock()
	source, operation := m.drainLocked()
	m.mu.Unlock()
	m.evictionMu.Unlock()

	m.releaseAll(source)
	m.releaseAll(operation)
	m.collector.RecordCacheEviction(kindSource, "invalidated", len(source))
	m.collector.RecordCacheEviction(kindOperation, "invalidated", len(operation))

	m.logger.Debug("policy caches invalidated", "entries", len(source)+len(operation))
}

// Sweep drops expired applicability answers and returns how many it dropped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	var source, operation []*applicability
	for key, entry := range m.source {
		if m.expired(entry) {
			delete(m.source, key)
			source = append(source, entry)
		}
	}
	for key, entry := range m.operation {
		if m.expired(entry) {
			delete(m.operation, key)
			operation = append(operation, entry)
		}
	}
	m.collector.UpdateCacheSize(kindSource, len(m.source))
	m.collector.UpdateCacheSize(kindOperation, len(m.operation))
	m.mu.Unlock()

	m.releaseAll(source)
	m.releaseAll(operation)
	m.collector.RecordCacheEviction(kindSource, "expired", len(source))
	m.collector.RecordCacheEviction(kindOperation, "expired", len(operation))

	return len(source) + len(operation)
}

// CachedPipelineCount returns the number of live composites, cached or
// still referenced by a checkout.
func (m *Manager) CachedPipelineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// Stats returns the cache sizes.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		SourceEntries:    len(m.source),
		OperationEntries: len(m.operation),
		LiveSource:       m.live[kindSource],
		LiveOperation:    m.live[kindOperation],
		Epoch:            m.epoch.Load(),
		Closed:           m.closed,
	}
}

// Close stops the sweeper and releases the cache references. Composites
// still checked out are disposed when their last holder releases them.
func (m *Manager) Close() error {
	if m.sweeper != nil {
		<-m.sweeper.Stop().Done()
	}

	m.evictionMu.Lock()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.evictionMu.Unlock()
		return nil
	}
	m.closed = true
	source, operation := m.drainLocked()
	m.mu.Unlock()
	m.evictionMu.Unlock()

	m.releaseAll(source)
	m.releaseAll(operation)
	m.collector.RecordCacheEviction(kindSource, "closed", len(source))
	m.collector.RecordCacheEviction(kindOperation, "closed", len(operation))
	return nil
}

func (m *Manager) drainLocked() (source, operation []*applicability) {
	for _, entry := range m.source {
		source = append(source, entry)
	}
	for _, entry := range m.operation {
		operation = append(operation, entry)
	}
	m.source = make(map[string]*applicability)
	m.operation = make(map[string]*applicability)
	m.collector.UpdateCacheSize(kindSource, 0)
	m.collector.UpdateCacheSize(kindOperation, 0)
	return source, operation
}

func (m *Manager) releaseAll(entries []*applicability) {
	for _, entry := range entries {
		entry.instance.release()
	}
}

func (m *Manager) cache(kind string) map[string]*applicability {
	if kind == kindSource {
		return m.source
	}
	return m.operation
}

func (m *Manager) expiry() time.Time {
	if m.config.TTL <= 0 {
		return time.Time{}
	}
	return m.now().Add(m.config.TTL)
}

func (m *Manager) expired(entry *applicability) bool {
	return !entry.expires.IsZero() && !m.now().Before(entry.expires)
}

func applicabilityKey(component policy.Component, params policy.PointcutParameters) string {
	return component.Location + "\x00" + params.Key()
}

// instanceKey identifies a composite by component, pointcut parameters and
// policies. Policies are compared by id and chain identity, so a reloaded
// policy keeping its id gets a new composite.
func instanceKey(kind string, component policy.Component, params policy.PointcutParameters, policies []policy.Policy) string {
	var sb strings.Builder
	sb.WriteString(kind)
	sb.WriteString("\x00")
	sb.WriteString(component.Location)
	sb.WriteString("\x00")
	sb.WriteString(params.Key())
	for _, p := range policies {
		fmt.Fprintf(&sb, "\x00%s@%p", p.ID, p.Chain)
	}
	return sb.String()
}
