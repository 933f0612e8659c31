package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/saturn/internal/engine"
	"mercator-hq/saturn/pkg/cli"
	"mercator-hq/saturn/pkg/journal"
	"mercator-hq/saturn/pkg/policy"
)

var simulateFlags struct {
	source            string
	location          string
	attributes        map[string]string
	payload           string
	operation         string
	operationLocation string
	parameters        map[string]string
	timeout           time.Duration
	format            string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive one event through the configured policies",
	Long: `Drive one event through the policies applying to a source and,
optionally, to an operation invoked by the flow.

The flow echoes the event it receives. With --operation the flow invokes
the operation first; the operation echoes its input too. The command prints
the policies that applied, every policy transition and the final event.

Examples:
  # Simulate an HTTP listener event
  saturn simulate --source http:listener --attr method=GET --payload '{"id":1}'

  # Include an outbound request and print JSON
  saturn simulate --source http:listener --operation http:request --format json`,
	RunE: runSimulation,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	f := simulateCmd.Flags()
	f.StringVar(&simulateFlags.source, "source", "", "source component identifier (namespace:name)")
	f.StringVar(&simulateFlags.location, "location", "simulation/source", "source component location")
	f.StringToStringVar(&simulateFlags.attributes, "attr", nil, "message attribute key=value (repeatable)")
	f.StringVar(&simulateFlags.payload, "payload", "", "message payload")
	f.StringVar(&simulateFlags.operation, "operation", "", "operation component identifier (namespace:name)")
	f.StringVar(&simulateFlags.operationLocation, "operation-location", "simulation/processors/0", "operation component location")
	f.StringToStringVar(&simulateFlags.parameters, "param", nil, "operation parameter key=value (repeatable)")
	f.DurationVar(&simulateFlags.timeout, "timeout", engine.DefaultSimulationTimeout, "simulation timeout")
	f.StringVar(&simulateFlags.format, "format", "text", "output format: text, json, csv")

	_ = simulateCmd.MarkFlagRequired("source")
}

// simulationOutput is the JSON rendering of a simulation.
type simulationOutput struct {
	*engine.SimulationResult
	Transitions []journal.Record `json:"transitions"`
}

func runSimulation(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(simulateFlags.format)
	if err != nil {
		return err
	}

	sim, err := buildSimulation()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.DiscardHandler)
	if verbose {
		if logger, err = newLogger(cfg); err != nil {
			return err
		}
	}

	eng, err := engine.New(cfg, logger, engine.Options{})
	if err != nil {
		return cli.NewConfigError(cfg.Policy.FilePath, err.Error())
	}
	defer eng.Close()

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	result, err := eng.Simulate(ctx, sim)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	records := make(recordTable, 0, len(result.Transitions))
	for _, t := range result.Transitions {
		records = append(records, journal.FromTransition(t))
	}

	out := cmd.OutOrStdout()
	switch format {
	case cli.FormatJSON:
		return cli.NewFormatter(format).FormatTo(out, simulationOutput{SimulationResult: result, Transitions: records})
	case cli.FormatCSV:
		return cli.NewFormatter(format).FormatTo(out, records)
	}

	fmt.Fprintf(out, "correlation:        %s\n", result.CorrelationID)
	fmt.Fprintf(out, "source policies:    %s\n", joinOrNone(result.SourcePolicies))
	if sim.Operation != nil {
		fmt.Fprintf(out, "operation policies: %s\n", joinOrNone(result.OperationPolicies))
	}
	fmt.Fprintf(out, "duration:           %s\n\n", result.Duration)

	if err := cli.NewFormatter(format).FormatTo(out, records); err != nil {
		return err
	}
	fmt.Fprintln(out)

	if result.Error != "" {
		fmt.Fprintf(out, "✗ failed at stage %s: %s\n", result.Stage, result.Error)
		return nil
	}
	fmt.Fprintf(out, "✓ payload: %v\n", result.Payload)
	for _, k := range slices.Sorted(maps.Keys(result.Attributes)) {
		fmt.Fprintf(out, "  attribute %s=%v\n", k, result.Attributes[k])
	}
	for _, k := range slices.Sorted(maps.Keys(result.Variables)) {
		fmt.Fprintf(out, "  variable %s=%v\n", k, result.Variables[k])
	}
	return nil
}

func buildSimulation() (engine.Simulation, error) {
	source, err := parseIdentifier(simulateFlags.source)
	if err != nil {
		return engine.Simulation{}, err
	}

	sim := engine.Simulation{
		Source:     policy.Component{Location: simulateFlags.location, Identifier: source},
		Attributes: toAny(simulateFlags.attributes),
		Timeout:    simulateFlags.timeout,
	}
	if simulateFlags.payload != "" {
		sim.Payload = simulateFlags.payload
	}

	if simulateFlags.operation != "" {
		op, err := parseIdentifier(simulateFlags.operation)
		if err != nil {
			return engine.Simulation{}, err
		}
		sim.Operation = &policy.Component{Location: simulateFlags.operationLocation, Identifier: op}
		sim.Parameters = toAny(simulateFlags.parameters)
	}
	return sim, nil
}

// parseIdentifier parses "namespace:name".
func parseIdentifier(s string) (policy.ComponentIdentifier, error) {
	ns, name, ok := strings.Cut(s, ":")
	if !ok || ns == "" || name == "" {
		return policy.ComponentIdentifier{}, fmt.Errorf("invalid component identifier %q: expected namespace:name", s)
	}
	return policy.ComponentIdentifier{Namespace: ns, Name: name}, nil
}

func toAny(m map[string]string) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
