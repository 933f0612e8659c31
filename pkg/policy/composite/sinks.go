package composite

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
)

// sinkGroup dispatches invocations to a fixed set of sinks and tracks the
// invocations in flight so it can release the composite once the group was
// disposed and the last invocation finished.
type sinkGroup struct {
	sinks    []*sink
	next     atomic.Uint64
	inFlight atomic.Int64
	disposed atomic.Bool
	closed   atomic.Bool

	closeOnce sync.Once
	onClosed  func()
	logger    *slog.Logger
}

// sink holds one lazily built pipeline. The pipeline is shared by every
// invocation routed to the sink and runs on the invoking goroutine.
type sink struct {
	build    func() policy.Processor
	once     sync.Once
	pipeline policy.Processor
}

func newSinkGroup(count int, build func() policy.Processor, onClosed func(), logger *slog.Logger) *sinkGroup {
	g := &sinkGroup{
		sinks:    make([]*sink, count),
		onClosed: onClosed,
		logger:   logger,
	}
	for i := range g.sinks {
		g.sinks[i] = &sink{build: build}
	}
	return g
}

// emit runs ev through the pipeline of the next sink. done is invoked exactly
// once with the outcome, after which the invocation no longer counts as in
// flight.
func (g *sinkGroup) emit(ev *event.Event, done policy.Callback) error {
	g.inFlight.Add(1)
	if g.disposed.Load() {
		g.finish()
		return ErrDisposed
	}

	s := g.sinks[(g.next.Add(1)-1)%uint64(len(g.sinks))]
	s.start()

	var once sync.Once
	s.pipeline.Process(ev, func(result *event.Event, err error) {
		called := false
		once.Do(func() {
			called = true
			done(result, err)
			g.finish()
		})
		if !called {
			g.logger.Warn("policy pipeline completed more than once", "execution_id", ev.ID())
		}
	})
	return nil
}

// finish marks one invocation as done.
func (g *sinkGroup) finish() {
	if g.inFlight.Add(-1) == 0 && g.disposed.Load() {
		g.close()
	}
}

// dispose stops accepting invocations. The group is closed now if nothing is
// in flight, otherwise when the last invocation finishes.
func (g *sinkGroup) dispose() {
	g.disposed.Store(true)
	if g.inFlight.Load() == 0 {
		g.close()
	}
}

func (g *sinkGroup) close() {
	g.closeOnce.Do(func() {
		if g.onClosed != nil {
			g.onClosed()
		}
		g.closed.Store(true)
	})
}

func (s *sink) start() {
	s.once.Do(func() {
		s.pipeline = s.build()
	})
}

// refCount counts the holders of a composite. The release function runs once,
// when the last holder lets go.
type refCount struct {
	refs    atomic.Int64
	release func()
}

func (r *refCount) initRefs(release func()) {
	r.refs.Store(1)
	r.release = release
}

// Retain registers an additional holder. It fails once the count dropped to zero.
func (r *refCount) Retain() bool {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return false
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Dispose releases one holder.
func (r *refCount) Dispose() {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return
		}
		if r.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				r.release()
			}
			return
		}
	}
}

// Stats reports how often a composite built its pipelines.
type Stats struct {
	// PipelinesBuilt is the number of pipelines built, at most one per sink.
	PipelinesBuilt int64

	// NextOperationApplications is the number of terminal steps created.
	NextOperationApplications int64

	// PolicyApplications is the number of policy processors created.
	PolicyApplications int64

	// InFlight is the number of invocations currently running.
	InFlight int64

	// Disposed reports whether the sinks were closed.
	Disposed bool
}

type buildCounters struct {
	pipelines      atomic.Int64
	nextOperations atomic.Int64
	policies       atomic.Int64
}

func (c *buildCounters) stats(g *sinkGroup) Stats {
	return Stats{
		PipelinesBuilt:            c.pipelines.Load(),
		NextOperationApplications: c.nextOperations.Load(),
		PolicyApplications:        c.policies.Load(),
		InFlight:                  g.inFlight.Load(),
		Disposed:                  g.closed.Load(),
	}
}
