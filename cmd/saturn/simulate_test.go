package main

import (
	"encoding/json"
	"strings"
	"testing"

	"mercator-hq/saturn/internal/engine"
)

func resetSimulateFlags() {
	simulateFlags.source = ""
	simulateFlags.location = "simulation/source"
	simulateFlags.attributes = nil
	simulateFlags.payload = ""
	simulateFlags.operation = ""
	simulateFlags.operationLocation = "simulation/processors/0"
	simulateFlags.parameters = nil
	simulateFlags.timeout = engine.DefaultSimulationTimeout
	simulateFlags.format = "text"
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{in: "http:listener"},
		{in: "http", wantErr: true},
		{in: ":listener", wantErr: true},
		{in: "http:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := parseIdentifier(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIdentifier(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && id.String() != tt.in {
				t.Errorf("parseIdentifier(%q) = %q", tt.in, id.String())
			}
		})
	}
}

func TestRunSimulation_Text(t *testing.T) {
	useConfig(t)
	resetSimulateFlags()
	defer resetSimulateFlags()

	simulateFlags.source = "http:listener"
	simulateFlags.attributes = map[string]string{"method": "GET"}
	simulateFlags.payload = "ping"
	simulateFlags.operation = "http:request"

	cmd, buf := testCommand()
	if err := runSimulation(cmd, nil); err != nil {
		t.Fatalf("runSimulation() error = %v, want nil", err)
	}

	out := buf.String()
	for _, want := range []string{
		"source policies:    greet, deny-delete",
		"operation policies: tag",
		"✓ payload: ping",
		"variable greeting=hello",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunSimulation_Denied(t *testing.T) {
	useConfig(t)
	resetSimulateFlags()
	defer resetSimulateFlags()

	simulateFlags.source = "http:listener"
	simulateFlags.attributes = map[string]string{"method": "DELETE"}

	cmd, buf := testCommand()
	if err := runSimulation(cmd, nil); err != nil {
		t.Fatalf("runSimulation() error = %v, want nil", err)
	}
	if !strings.Contains(buf.String(), "✗ failed at stage policy") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestRunSimulation_JSON(t *testing.T) {
	useConfig(t)
	resetSimulateFlags()
	defer resetSimulateFlags()

	simulateFlags.source = "http:listener"
	simulateFlags.format = "json"

	cmd, buf := testCommand()
	if err := runSimulation(cmd, nil); err != nil {
		t.Fatalf("runSimulation() error = %v, want nil", err)
	}

	var got struct {
		CorrelationID  string   `json:"correlation_id"`
		SourcePolicies []string `json:"source_policies"`
		Transitions    []struct {
			CorrelationID string `json:"correlation_id"`
			PolicyID      string `json:"policy_id"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}
	if len(got.SourcePolicies) != 2 {
		t.Errorf("SourcePolicies = %v, want 2 policies", got.SourcePolicies)
	}
	if len(got.Transitions) == 0 {
		t.Fatal("no transitions in output")
	}
	for _, tr := range got.Transitions {
		if tr.CorrelationID != got.CorrelationID {
			t.Errorf("transition correlation = %q, want %q", tr.CorrelationID, got.CorrelationID)
		}
	}
}

func TestRunSimulation_InvalidSource(t *testing.T) {
	resetSimulateFlags()
	defer resetSimulateFlags()

	simulateFlags.source = "listener"

	cmd, _ := testCommand()
	if err := runSimulation(cmd, nil); err == nil {
		t.Fatal("runSimulation() error = nil, want error")
	}
}
