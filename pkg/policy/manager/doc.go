// Package manager creates and caches the policy composites applied to
// source and operation invocations.
//
// # Caching
//
// The manager keeps two levels of cache:
//
//   - applicability entries, keyed by component location and pointcut
//     parameters key, remember which composite the provider's answer maps to;
//     they expire after Config.TTL and are dropped by InvalidateCaches
//   - live composites, keyed by component, pointcut parameters and the
//     ordered policies, so equal answers share one composite
//
// Every applicability entry and every checked out instance holds one
// reference on its composite. A composite is disposed when its last reference
// is released and its last in-flight invocation completed.
//
// # Invalidation
//
// The manager subscribes to PolicyProvider.OnPoliciesChanged. Invalidation
// bumps an epoch and waits for the lookups asking the provider, so a lookup
// never caches an answer older than the last invalidation.
//
// # Usage
//
//	m, err := manager.NewManager(provider, pointcuts, manager.Config{
//	    TTL:           time.Minute,
//	    SweepSchedule: "@every 1m",
//	}, manager.WithMetrics(collector))
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	inst, err := m.CreateSourcePolicyInstance(component, ev, flow, nil)
//	if err != nil {
//	    return err
//	}
//	defer inst.Dispose()
//	inst.Process(ev, func(r composite.SourcePolicyResult) { ... })
package manager
