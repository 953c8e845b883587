// Package llm defines the provider-neutral chat interface used by the agent
// runtime: role-tagged messages, tool definitions and tool calls. Provider
// adapters live in sub-packages.
package llm
