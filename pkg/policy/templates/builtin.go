package templates

import (
	"fmt"
	"log/slog"

	"mercator-hq/saturn/pkg/event"
	"mercator-hq/saturn/pkg/policy"
	"mercator-hq/saturn/pkg/telemetry/logging"
)

// Phases of templates acting on the message.
const (
	PhaseRequest  = "request"
	PhaseResponse = "response"
)

func builtins() map[string]Template {
	return map[string]Template{
		"passthrough":       passthrough,
		"set-variable":      setVariable,
		"set-attribute":     setAttribute,
		"set-payload":       setPayload,
		"log":               logTemplate,
		"deny":              deny,
		"rate-limit":        rateLimit,
		"concurrency-limit": concurrencyLimit,
	}
}

// transform returns a processor applying fn to the event.
func transform(fn func(ev *event.Event) *event.Event) policy.Processor {
	return policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
		done(fn(ev), nil)
	})
}

// around places p before or after next depending on phase.
func around(phase string, p, next policy.Processor) []policy.Processor {
	if phase == PhaseResponse {
		return []policy.Processor{next, p}
	}
	return []policy.Processor{p, next}
}

func passthrough(b *BuildContext) ([]policy.Processor, error) {
	return []policy.Processor{b.Next}, nil
}

func setVariable(b *BuildContext) ([]policy.Processor, error) {
	name := b.RequiredString("name")
	value, _ := b.Value("value")

	set := transform(func(ev *event.Event) *event.Event {
		return ev.WithVariable(name, value)
	})
	return []policy.Processor{set, b.Next}, nil
}

func setAttribute(b *BuildContext) ([]policy.Processor, error) {
	name := b.RequiredString("name")
	value, _ := b.Value("value")
	phase := b.OneOf("phase", PhaseRequest, PhaseRequest, PhaseResponse)

	set := transform(func(ev *event.Event) *event.Event {
		return ev.WithMessage(ev.Message().WithAttribute(name, value))
	})
	return around(phase, set, b.Next), nil
}

func setPayload(b *BuildContext) ([]policy.Processor, error) {
	value, ok := b.Value("value")
	if !ok {
		return nil, &ParameterError{Template: "set-payload", Parameter: "value", Message: "is required"}
	}
	phase := b.OneOf("phase", PhaseRequest, PhaseRequest, PhaseResponse)

	set := transform(func(ev *event.Event) *event.Event {
		return ev.WithPayload(value)
	})
	return around(phase, set, b.Next), nil
}

func logTemplate(b *BuildContext) ([]policy.Processor, error) {
	message := b.String("message", "policy applied")
	level := slog.LevelInfo
	switch b.OneOf("level", "info", "debug", "info", "warn", "error") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := b.Logger
	log := transform(func(ev *event.Event) *event.Event {
		ctx := logging.WithExecutionID(ev.Context().Context(), ev.ID())
		ctx = logging.WithCorrelationID(ctx, ev.Context().CorrelationID())
		if location := policy.ComponentLocation(ev); location != "" {
			ctx = logging.WithComponent(ctx, location)
		}
		logger.Log(ctx, level, message, "attributes", ev.Message().Attributes)
		return ev
	})
	return []policy.Processor{log, b.Next}, nil
}

func deny(b *BuildContext) ([]policy.Processor, error) {
	reason := b.String("reason", ErrDenied.Error())
	attribute := b.String("attribute", "")
	equals, hasEquals := b.Value("equals")
	if attribute != "" && !hasEquals {
		return nil, &ParameterError{Template: "deny", Parameter: "equals", Message: "is required with attribute"}
	}

	policyID := b.PolicyID
	next := b.Next
	guard := policy.ProcessorFunc(func(ev *event.Event, done policy.Callback) {
		if attribute != "" {
			v, ok := ev.Message().Attribute(attribute)
			if !ok || fmt.Sprint(v) != fmt.Sprint(equals) {
				next.Process(ev, done)
				return
			}
		}
		done(nil, &RejectedError{PolicyID: policyID, Reason: reason, Cause: ErrDenied})
	})
	return []policy.Processor{guard}, nil
}

