package api

import (
	"sort"
	"sync"
	"time"
)

// RouteMetrics aggregates timings for one route template
type RouteMetrics struct {
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	Count         int64         `json:"count"`
	ErrorCount    int64         `json:"errorCount"`
	TotalDuration time.Duration `json:"totalDuration"`
	AvgDuration   time.Duration `json:"avgDuration"`
	MaxDuration   time.Duration `json:"maxDuration"`
	LastSeen      time.Time     `json:"lastSeen"`
}

// MetricsCollector keeps per-route request metrics in memory
type MetricsCollector struct {
	mu      sync.RWMutex
	routes  map[string]*RouteMetrics
	started time.Time
}

// NewMetricsCollector returns an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		routes:  make(map[string]*RouteMetrics),
		started: time.Now(),
	}
}

// Record adds one request to the route's totals
func (mc *MetricsCollector) Record(method, path string, status int, d time.Duration) {
	key := method + " " + path
	mc.mu.Lock()
	defer mc.mu.Unlock()
	rm, ok := mc.routes[key]
	if !ok {
		rm = &RouteMetrics{Method: method, Path: path}
		mc.routes[key] = rm
	}
	rm.Count++
	if status >= 400 {
		rm.ErrorCount++
	}
	rm.TotalDuration += d
	rm.AvgDuration = rm.TotalDuration / time.Duration(rm.Count)
	if d > rm.MaxDuration {
		rm.MaxDuration = d
	}
	rm.LastSeen = time.Now()
}

// Summary is the collector's snapshot
type Summary struct {
	Uptime        time.Duration  `json:"uptime"`
	TotalRequests int64          `json:"totalRequests"`
	TotalErrors   int64          `json:"totalErrors"`
	Routes        []RouteMetrics `json:"routes"`
}

// Summary returns a copy of every route, slowest average first
func (mc *MetricsCollector) Summary() Summary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	s := Summary{Uptime: time.Since(mc.started), Routes: make([]RouteMetrics, 0, len(mc.routes))}
	for _, rm := range mc.routes {
		s.TotalRequests += rm.Count
		s.TotalErrors += rm.ErrorCount
		s.Routes = append(s.Routes, *rm)
	}
	sort.Slice(s.Routes, func(i, j int) bool {
		return s.Routes[i].AvgDuration > s.Routes[j].AvgDuration
	})
	return s
}
