// Package harness provides conformance testing for query, aggregate and
// write behaviour against a scripted remote system.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	entities:
//	  - entities.cue
//	responses:
//	  - soql: "SELECT COUNT(Id) FROM Account WHERE Id = '3'"
//	    type: AggregateResult
//	    records:
//	      - { expr0: 1 }
//	steps:
//	  - kind: aggregate
//	    relation:
//	      from: Account
//	      where: { Id: "3" }
//	    aggregate: { op: count, column: "*" }
//	    expect:
//	      soql: "SELECT COUNT(Id) FROM Account WHERE Id = '3'"
//	      value: 1
//	assertions:
//	  - type: trace_count
//	    kind: query
//	    count: 1
//
// # Step Kinds
//
//   - compile: builds the relation and checks its SOQL without a remote call
//   - query, first: run the relation through the remote system
//   - aggregate: plans, runs and decodes an aggregate request
//   - create, update: send writes through the sandbox-gated redirector
//
// # Assertion Types
//
//   - trace_contains: a call of the kind with the SOQL or sobject was made
//   - trace_order: calls appear in the given order
//   - trace_count: exactly N calls of the kind were made
//   - no_writes: no create or update reached the remote system
//
// # Deterministic Testing
//
// Every remote call is journaled in an in-memory SQLite store with
// sequential IDs, a deterministic seq clock and a fixed timestamp, so the
// trace read back from the journal is identical across runs and can be
// compared against golden files with RunWithGolden.
package harness
