// Package observability records task lifecycle transitions for
// agentboard. Transitions are appended to a structured JSON Lines
// (JSONL) log and throughput metrics are derived on-demand from it.
package observability
