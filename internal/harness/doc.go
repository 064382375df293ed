// Package harness provides scenario testing for filament circuits.
//
// The harness builds a blueprint on a fresh circuit, drives its facts
// through scripted steps, and validates what the probes observed and
// how every event was resolved.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario demonstrates"
//	blueprint: path/to/circuit.cue
//	steps:
//	  - emit: clicks
//	    value: 3
//	  - fail: sensor
//	    error: "sensor offline"
//	  - complete: clicks
//	  - settle: true
//	  - disconnect: { from: clicks, to: display }
//	assertions:
//	  - type: probe_equals
//	    probe: display
//	    signals: ["value 6"]
//	  - type: event_count
//	    outcome: applied
//	    count: 3
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - probe_equals: the probe's full log matches the signals exactly
//   - probe_contains: the probe's log includes the given signal line
//   - probe_count: the probe observed exactly N signals
//   - event_count: exactly N trace events match the given filters
//   - emitter_status: the named fact ended in the given status
//
// # Deterministic Testing
//
// Every scenario runs on a fresh circuit with sequential event IDs, so
// the same scenario produces byte-identical traces across runs. This is
// what makes golden snapshot comparison possible:
//
//   - Event IDs count up from ev-000001
//   - Sequence numbers count up from 1 in enqueue order
//   - Snapshots serialize to canonical JSON
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/doubler.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
//
// Or compare against a golden snapshot inside a test:
//
//	if err := harness.RunWithGolden(t, scenario); err != nil {
//	    t.Fatal(err)
//	}
package harness
