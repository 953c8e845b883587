package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type agentMetrics struct {
	mu        sync.Mutex
	turns     map[string]uint64
	events    map[string]uint64
	inits     map[string]uint64
	turnTimes *histogram
}

func newAgentMetrics() *agentMetrics {
	return &agentMetrics{
		turns:     make(map[string]uint64),
		events:    make(map[string]uint64),
		inits:     make(map[string]uint64),
		turnTimes: newHistogram(),
	}
}

var agentCollector = newAgentMetrics()

// ObserveTurn records a finished chat turn. outcome is "ok", "error" or "timeout".
func ObserveTurn(outcome string, duration time.Duration) {
	agentCollector.mu.Lock()
	defer agentCollector.mu.Unlock()
	agentCollector.turns[outcome]++
	agentCollector.turnTimes.observe(duration.Seconds())
}

// ObserveTurnEvent counts one streamed event by kind.
func ObserveTurnEvent(kind string) {
	agentCollector.mu.Lock()
	defer agentCollector.mu.Unlock()
	agentCollector.events[kind]++
}

// ObserveSessionInit records an initialization attempt by outcome.
func ObserveSessionInit(outcome string) {
	agentCollector.mu.Lock()
	defer agentCollector.mu.Unlock()
	agentCollector.inits[outcome]++
}

func (a *agentMetrics) render(builder *strings.Builder) {
	a.mu.Lock()
	defer a.mu.Unlock()

	writeCounter(builder, "agentkit_turns_total", "Chat turns by outcome.", "outcome", a.turns)
	writeCounter(builder, "agentkit_turn_events_total", "Streamed turn events by kind.", "kind", a.events)
	writeCounter(builder, "agentkit_session_inits_total", "Session initialization attempts by outcome.", "outcome", a.inits)

	builder.WriteString("# HELP agentkit_turn_duration_seconds Chat turn duration in seconds.\n")
	builder.WriteString("# TYPE agentkit_turn_duration_seconds histogram\n")
	if a.turnTimes.count > 0 {
		snap := a.turnTimes.snapshot()
		for idx, bound := range snap.buckets {
			builder.WriteString(fmt.Sprintf("agentkit_turn_duration_seconds_bucket{le=\"%s\"} %d\n", formatFloat(bound), snap.counts[idx]))
		}
		builder.WriteString(fmt.Sprintf("agentkit_turn_duration_seconds_bucket{le=\"+Inf\"} %d\n", snap.count))
		builder.WriteString(fmt.Sprintf("agentkit_turn_duration_seconds_sum %s\n", formatFloat(snap.sum)))
		builder.WriteString(fmt.Sprintf("agentkit_turn_duration_seconds_count %d\n", snap.count))
	}
}

func writeCounter(builder *strings.Builder, name, help, label string, values map[string]uint64) {
	builder.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
	builder.WriteString(fmt.Sprintf("# TYPE %s counter\n", name))
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		builder.WriteString(fmt.Sprintf("%s{%s=\"%s\"} %d\n", name, label, escape(key), values[key]))
	}
}
