package metrics

import (
	"context"
	"runtime"
	"time"
)

// CollectRuntime samples goroutine and heap gauges every interval until ctx
// is done.
func CollectRuntime(ctx context.Context, r *Registry, interval time.Duration) {
	goroutines := r.Gauge("showpulse_goroutines", "Number of live goroutines.")
	heap := r.Gauge("showpulse_heap_alloc_bytes", "Bytes of allocated heap objects.")
	sample := func() {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		goroutines.SetInt(runtime.NumGoroutine())
		heap.Set(float64(ms.HeapAlloc))
	}
	sample()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sample()
		}
	}
}
