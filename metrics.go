package chunkstream

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    bytesRead  prometheus.Counter
//	    fetchTimes prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordChunkFetch(duration time.Duration, err error) {
//	    p.fetchTimes.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordRangeRead is called when a range reader is closed.
	// bytes is what the consumer actually read, chunks the number of chunks
	// in the span, duration the time from ReadRange to Close.
	RecordRangeRead(bytes int64, chunks int, duration time.Duration, err error)

	// RecordChunkFetch is called after each backend chunk fetch. Cache hits
	// are not reported.
	RecordChunkFetch(duration time.Duration, err error)

	// RecordPrefetch is called after each Prefetch.
	RecordPrefetch(chunks int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRangeRead(int64, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordChunkFetch(time.Duration, error)           {}
func (NoopMetricsCollector) RecordPrefetch(int, time.Duration, error)        {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RangeReadCount      atomic.Int64
	RangeReadErrors     atomic.Int64
	RangeReadBytes      atomic.Int64
	RangeReadChunks     atomic.Int64
	RangeReadTotalNanos atomic.Int64
	ChunkFetchCount     atomic.Int64
	ChunkFetchErrors    atomic.Int64
	ChunkFetchNanos     atomic.Int64
	PrefetchCount       atomic.Int64
	PrefetchErrors      atomic.Int64
	PrefetchChunks      atomic.Int64
}

// RecordRangeRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRangeRead(bytes int64, chunks int, duration time.Duration, err error) {
	b.RangeReadCount.Add(1)
	b.RangeReadBytes.Add(bytes)
	b.RangeReadChunks.Add(int64(chunks))
	b.RangeReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RangeReadErrors.Add(1)
	}
}

// RecordChunkFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordChunkFetch(duration time.Duration, err error) {
	b.ChunkFetchCount.Add(1)
	b.ChunkFetchNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ChunkFetchErrors.Add(1)
	}
}

// RecordPrefetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPrefetch(chunks int, _ time.Duration, err error) {
	b.PrefetchCount.Add(1)
	b.PrefetchChunks.Add(int64(chunks))
	if err != nil {
		b.PrefetchErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RangeReadCount:     b.RangeReadCount.Load(),
		RangeReadErrors:    b.RangeReadErrors.Load(),
		RangeReadBytes:     b.RangeReadBytes.Load(),
		RangeReadChunks:    b.RangeReadChunks.Load(),
		RangeReadAvgNanos:  avg(b.RangeReadTotalNanos.Load(), b.RangeReadCount.Load()),
		ChunkFetchCount:    b.ChunkFetchCount.Load(),
		ChunkFetchErrors:   b.ChunkFetchErrors.Load(),
		ChunkFetchAvgNanos: avg(b.ChunkFetchNanos.Load(), b.ChunkFetchCount.Load()),
		PrefetchCount:      b.PrefetchCount.Load(),
		PrefetchErrors:     b.PrefetchErrors.Load(),
		PrefetchChunks:     b.PrefetchChunks.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RangeReadCount     int64
	RangeReadErrors    int64
	RangeReadBytes     int64
	RangeReadChunks    int64
	RangeReadAvgNanos  int64
	ChunkFetchCount    int64
	ChunkFetchErrors   int64
	ChunkFetchAvgNanos int64
	PrefetchCount      int64
	PrefetchErrors     int64
	PrefetchChunks     int64
}
