// Package metrics is a small process-wide counter registry, exposed over
// HTTP as JSON by the member node.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
)

// Keys are counter names, values are *int64.
var registry sync.Map

// Inc increments a counter by 1.
func Inc(name string) {
	Add(name, 1)
}

// Add adds delta to a counter, creating it at zero first if needed.
func Add(name string, delta int64) {
	val, ok := registry.Load(name)
	if !ok {
		val, _ = registry.LoadOrStore(name, new(int64))
	}
	atomic.AddInt64(val.(*int64), delta)
}

// Get returns the current value of a counter.
func Get(name string) int64 {
	val, ok := registry.Load(name)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(val.(*int64))
}

// Handler serves a point-in-time snapshot of every counter as JSON.
func Handler(w http.ResponseWriter, r *http.Request) {
	snapshot := make(map[string]int64)
	registry.Range(func(key, value any) bool {
		snapshot[key.(string)] = atomic.LoadInt64(value.(*int64))
		return true
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}
