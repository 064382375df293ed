package cli

// Blueprint and scenario fixtures shared across command tests.

const doublerBlueprint = `circuit: {
	facts: {
		clicks: {schema: "int"}
		doubled: {schema: "int"}
	}
	relays: {
		double: {from: "clicks", to: "doubled", transform: "double"}
	}
	probes: {
		display: {on: ["doubled"]}
	}
}
`

const doublerScenario = `name: doubler
description: "Clicks double through a relay into a probe."
blueprint: circuit.cue
steps:
  - emit: clicks
    value: 2
assertions:
  - type: probe_equals
    probe: display
    signals: ["value 4"]
`

const failingScenario = `name: wrong-expectation
description: "Asserts a signal the probe never observes."
blueprint: circuit.cue
steps:
  - emit: clicks
    value: 2
assertions:
  - type: probe_equals
    probe: display
    signals: ["value 5"]
`

// danglingBlueprint wires a relay to a fact that does not exist.
const danglingBlueprint = `circuit: {
	facts: {
		clicks: {schema: "int"}
	}
	relays: {
		double: {from: "clicks", to: "nowhere", transform: "double"}
	}
	probes: {}
}
`

// cyclicBlueprint loops two relays back into each other. Valid, but the
// validator warns about it.
const cyclicBlueprint = `circuit: {
	facts: {
		ping: {schema: "int"}
		pong: {schema: "int"}
	}
	relays: {
		fwd: {from: "ping", to: "pong", transform: "identity"}
		back: {from: "pong", to: "ping", transform: "identity"}
	}
	probes: {}
}
`

const brokenBlueprint = `circuit: {facts: {`
