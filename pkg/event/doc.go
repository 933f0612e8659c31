// Package event defines the values that flow through the policy engine.
//
// An Event pairs a Message (payload plus attributes) with flow variables and a
// set of internal parameters reserved for the engine. Events are immutable:
// every With* method returns a copy, so a single event can be observed by
// several asynchronous stages without synchronization.
//
// Every event belongs to a Context. The Context represents one execution (for
// example one inbound request handled by a flow) and carries the lifecycle
// signal the engine relies on to release per-execution state: when the root
// Context terminates, all callbacks registered with OnTerminated run exactly
// once.
//
// # Basic Usage
//
//	ctx := event.NewContext(context.Background(), "")
//	ev := event.New(ctx, event.NewMessage("hello", map[string]any{"method": "GET"}))
//
//	ev = ev.WithVariable("user", "alice")
//
//	ctx.OnTerminated(func(result *event.Event, err error) {
//	    log.Printf("execution %s finished", ctx.ID())
//	})
//
//	ctx.Terminate(ev, nil)
package event
