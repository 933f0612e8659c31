// Package engine assembles a policy engine process from configuration: the
// template catalog, the file policy provider, the policy manager, the
// transition notifier and the optional journal.
//
// It is shared by the "saturn run" and "saturn simulate" commands.
package engine
