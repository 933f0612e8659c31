// Saturn is a policy execution engine: it wraps the sources and operations
// of message flows with ordered policy chains declared in a bindings file.
//
// Usage:
//
//	# Serve metrics and health endpoints, reload bindings on change
//	saturn run --config config.yaml --watch
//
//	# Validate a bindings file
//	saturn validate --file policies.yaml
//
//	# Drive a sample event through the policies of a component
//	saturn simulate --source http:listener --attr method=GET
//
//	# Inspect the transition journal
//	saturn journal --execution 3f2c...
package main

import (
	"fmt"
	"os"

	"mercator-hq/saturn/pkg/cli"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
