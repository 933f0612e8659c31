// Package provider supplies policies from a YAML bindings file.
//
// A bindings file lists policies, each built from a template of the
// templates catalog and bound to the sources and operations its selectors
// match:
//
//	policies:
//	  - id: deny-delete
//	    template: deny
//	    order: 10
//	    parameters:
//	      attribute: method
//	      equals: DELETE
//	    source:
//	      namespace: http
//	      name: listener
//	      attributes:
//	        path: /admin/*
//
// Matching policies are returned sorted by order, then id. Selector
// attributes are path.Match patterns tested against the attributes of the
// pointcut parameters.
//
// # Hot reload
//
// FileProvider.Watch watches the file with fsnotify and reloads it after a
// debounce interval. A reload that fails keeps the current policies.
// Listeners registered with OnPoliciesChanged run after every reload that
// changed the policy set; the policy manager uses it to invalidate its caches.
package provider
