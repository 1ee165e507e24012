// Package resource implements the Controller for process-wide fetch limits.
//
// The Controller manages three resource types:
//
//   - Memory: bytes held by chunk caches (non-blocking, fail-fast)
//   - Concurrency: chunk fetches in flight against the backend
//   - IO: backend read throughput (token bucket)
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and atomic counters
// for usage tracking. Acquiring is non-blocking; a cache that cannot reserve
// memory simply does not admit the entry:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if !rc.TryAcquireMemory(int64(len(chunk))) {
//	    return // not cached
//	}
//	defer rc.ReleaseMemory(int64(len(chunk)))
//
// # Fetch Concurrency
//
//	if err := rc.AcquireFetch(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseFetch()
//
// # IO Rate Limiting
//
//	if err := rc.AcquireIO(ctx, chunk.TransformedSize); err != nil {
//	    return err
//	}
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
