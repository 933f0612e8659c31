// Package templates builds policy chains from named templates.
//
// A policy binding names a template and gives it parameters; the catalog turns
// the pair into a policy.Policy whose chain continues to the wrapped step
// through processor.ExecuteNext.
//
// # Built-in templates
//
//   - passthrough: continues unchanged
//   - set-variable: sets a policy variable (name, value)
//   - set-attribute: sets a message attribute before or after the wrapped step (name, value, phase)
//   - set-payload: replaces the payload before or after the wrapped step (value, phase)
//   - log: logs the message entering the policy (message, level)
//   - deny: fails without continuing, optionally only when an attribute matches (reason, attribute, equals)
//   - rate-limit: token bucket, optionally per attribute value (rate, burst, key_attribute)
//   - concurrency-limit: caps simultaneous executions of the wrapped step (max)
//
// # Usage
//
//	catalog := templates.NewCatalog(handler, logger)
//	p, err := catalog.Build("deny-delete", "deny", templates.Parameters{
//	    "attribute": "method",
//	    "equals":    "DELETE",
//	}, true)
package templates
