// Package simkernel is an agent-based social-simulation engine kernel: it
// advances a population of LLM-backed agents through scripted scenarios
// round by round, and lets a caller branch a running simulation into
// sibling variants to compare how different interventions play out from
// the same starting state.
//
// # Quick Start
//
// Load a scenario, register an LLM binding, build a root branch, and run
// it for a fixed number of rounds:
//
//	spec, _ := scenario.LoadSpecFile("scenario.yaml")
//	reg := llm.NewRegistry()
//	reg.RegisterFromConfig("default", config.LLMConfig{Provider: config.LLMProviderOpenAI})
//	client, _ := reg.Get("default")
//
//	tree := simtree.NewTree()
//	root, _ := tree.NewRoot(spec, agents, agentOrder)
//	tree.Run(ctx, root, 10, client, nil, nil)
//
// # Library Layout
//
//	pkg/scenario    - scenario specification, YAML loading, validation
//	pkg/grammar     - per-scenario action grammars (discrete/integer/freeform)
//	pkg/agentstate  - per-agent mutable record: properties, memory, summary
//	pkg/turn        - the Turn Pipeline: one agent's single-round action
//	pkg/round       - the Round Runner: one round across all agents
//	pkg/summarizer  - the Context Summariser: rolling memory compaction
//	pkg/eventlog    - the append-only per-branch event log, with diffing
//	pkg/simtree     - the Simulation Tree and Variant Executor
//	pkg/llm         - the LM client interface and provider dialects
//	pkg/telemetry   - optional tracing spans and Prometheus metrics
//
// cmd/simkernel wires these into a small CLI for driving a scenario file
// from the command line without writing Go.
//
// # Status
//
// This kernel is a research tool, not a hosted multi-tenant service: it
// holds all branches of one simulation tree in memory for the lifetime of
// one process.
package simkernel
