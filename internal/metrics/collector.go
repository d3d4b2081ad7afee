// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Frame metrics (only for stream operations)
	TotalFrames   int64
	DroppedFrames int64
	MinFrames     int64
	MaxFrames     int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count" yaml:"count"`
	Errors      int64   `json:"errors" yaml:"errors"`
	TotalTimeMs int64   `json:"totalTimeMs" yaml:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs" yaml:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs" yaml:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs" yaml:"maxTimeMs"`

	// Frame stats (nil if not applicable)
	TotalFrames   *int64   `json:"totalFrames,omitempty" yaml:"totalFrames,omitempty"`
	DroppedFrames *int64   `json:"droppedFrames,omitempty" yaml:"droppedFrames,omitempty"`
	AvgFrames     *float64 `json:"avgFrames,omitempty" yaml:"avgFrames,omitempty"`
	MinFrames     *int64   `json:"minFrames,omitempty" yaml:"minFrames,omitempty"`
	MaxFrames     *int64   `json:"maxFrames,omitempty" yaml:"maxFrames,omitempty"`
}

// Snapshot represents the client statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptimeSeconds" yaml:"uptimeSeconds"`
	APIRequest    *OperationSnapshot `json:"apiRequest,omitempty" yaml:"apiRequest,omitempty"`
	Stream        *OperationSnapshot `json:"stream,omitempty" yaml:"stream,omitempty"`
	TokenRefresh  *OperationSnapshot `json:"tokenRefresh,omitempty" yaml:"tokenRefresh,omitempty"`
	HistoryFetch  *OperationSnapshot `json:"historyFetch,omitempty" yaml:"historyFetch,omitempty"`
	Classify      *OperationSnapshot `json:"classify,omitempty" yaml:"classify,omitempty"`
}

// Operation names for the collector.
const (
	OpAPIRequest   = "api_request"
	OpStream       = "stream"
	OpTokenRefresh = "token_refresh"
	OpHistoryFetch = "history_fetch"
	OpClassify     = "classify"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe, and a nil *Collector discards everything.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime:   time.Duration(math.MaxInt64),
			MinFrames: math.MaxInt64,
		}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) addTiming(duration time.Duration, err error) {
	m.Count++
	m.TotalTime += duration
	if err != nil {
		m.Errors++
	}
	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.RecordResult(op, duration, nil)
}

// RecordResult records timing for an operation and counts it as failed
// when err is non-nil.
func (c *Collector) RecordResult(op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getOrCreate(op).addTiming(duration, err)
}

// RecordStream records timing and frame counts for one decoded stream.
func (c *Collector) RecordStream(duration time.Duration, frames, dropped int64, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(OpStream)
	m.addTiming(duration, err)

	m.TotalFrames += frames
	m.DroppedFrames += dropped
	if frames < m.MinFrames {
		m.MinFrames = frames
	}
	if frames > m.MaxFrames {
		m.MaxFrames = frames
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeFrames bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if includeFrames {
		total := m.TotalFrames
		dropped := m.DroppedFrames
		avg := float64(m.TotalFrames) / float64(m.Count)
		minFrames := m.MinFrames
		maxFrames := m.MaxFrames

		// Reset sentinel value for display
		if minFrames == math.MaxInt64 {
			minFrames = 0
		}

		snap.TotalFrames = &total
		snap.DroppedFrames = &dropped
		snap.AvgFrames = &avg
		snap.MinFrames = &minFrames
		snap.MaxFrames = &maxFrames
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		APIRequest:    snapshotOp(c.ops[OpAPIRequest], false),
		Stream:        snapshotOp(c.ops[OpStream], true),
		TokenRefresh:  snapshotOp(c.ops[OpTokenRefresh], false),
		HistoryFetch:  snapshotOp(c.ops[OpHistoryFetch], false),
		Classify:      snapshotOp(c.ops[OpClassify], false),
	}
}

// Operations lists the snapshot's populated operations in display order.
func (s Snapshot) Operations() []NamedSnapshot {
	all := []NamedSnapshot{
		{Name: OpAPIRequest, Stats: s.APIRequest},
		{Name: OpStream, Stats: s.Stream},
		{Name: OpTokenRefresh, Stats: s.TokenRefresh},
		{Name: OpHistoryFetch, Stats: s.HistoryFetch},
		{Name: OpClassify, Stats: s.Classify},
	}
	out := all[:0]
	for _, op := range all {
		if op.Stats != nil {
			out = append(out, op)
		}
	}
	return out
}

// NamedSnapshot pairs an operation name with its stats.
type NamedSnapshot struct {
	Name  string
	Stats *OperationSnapshot
}
