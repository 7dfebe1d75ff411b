package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricDependencies     = "sasspipe.resolve.dependencies"
	metricUnresolvedTotal  = "sasspipe.resolve.unresolved.total"
	metricCacheHitsTotal   = "sasspipe.cache.hits.total"
	metricCacheMissesTotal = "sasspipe.cache.misses.total"
	metricCompileDuration  = "sasspipe.compile.duration.seconds"
	metricOutputBytes      = "sasspipe.compile.output.bytes"

	attrArtifact = "sasspipe.artifact"
	artifactCSS  = "css"
	artifactMap  = "map"
)

// dependencyBuckets covers stylesheets with no imports up to large design systems.
var dependencyBuckets = []float64{0, 1, 2, 5, 10, 20, 50, 100, 250}

// outputBuckets covers a one-rule partial up to a bundled framework stylesheet.
var outputBuckets = []float64{256, 1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20, 4 << 20}

// PipelineMetrics records per-stylesheet resolution, cache and compile measurements.
// A nil *PipelineMetrics is valid and records nothing.
type PipelineMetrics struct {
	dependencies    metric.Float64Histogram
	unresolved      metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	compileDuration metric.Float64Histogram
	outputBytes     metric.Int64Histogram
	ops             *OperationMetrics
}

// NewPipelineMetrics creates pipeline instruments. Compiles are also counted as
// OpCompile operations when ops is non-nil.
func NewPipelineMetrics(mt metric.Meter, ops *OperationMetrics) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		dependencies:    b.histogram(metricDependencies, "Resolved dependencies per stylesheet", "{file}", dependencyBuckets...),
		unresolved:      b.counter(metricUnresolvedTotal, "Import targets that matched no file", "{import}"),
		cacheHits:       b.counter(metricCacheHitsTotal, "Compile cache hits", "{hit}"),
		cacheMisses:     b.counter(metricCacheMissesTotal, "Compile cache misses", "{miss}"),
		compileDuration: b.histogram(metricCompileDuration, "Compile duration in seconds", "s", durationBucketBoundaries...),
		outputBytes:     b.sizeHistogram(metricOutputBytes, "Size of freshly compiled CSS and source maps", outputBuckets...),
		ops:             ops,
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordResolution records the outcome of one dependency resolution.
func (pm *PipelineMetrics) RecordResolution(ctx context.Context, dependencies, unresolved int) {
	if pm == nil {
		return
	}

	pm.dependencies.Record(ctx, float64(dependencies))
	pm.unresolved.Add(ctx, int64(unresolved))
}

// RecordCache records one compile cache lookup.
func (pm *PipelineMetrics) RecordCache(ctx context.Context, hit bool) {
	if pm == nil {
		return
	}

	if hit {
		pm.cacheHits.Add(ctx, 1)

		return
	}

	pm.cacheMisses.Add(ctx, 1)
}

// RecordCompile records one compile attempt.
func (pm *PipelineMetrics) RecordCompile(ctx context.Context, duration time.Duration, err error) {
	if pm == nil {
		return
	}

	pm.compileDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String(attrStatus, Status(err))))

	pm.ops.Record(ctx, OpCompile, Status(err), duration)
}

// RecordOutput records the sizes of a compiled stylesheet and its source map.
// A zero mapBytes means no map was produced and is not recorded.
func (pm *PipelineMetrics) RecordOutput(ctx context.Context, cssBytes, mapBytes int) {
	if pm == nil {
		return
	}

	pm.outputBytes.Record(ctx, int64(cssBytes), metric.WithAttributes(attribute.String(attrArtifact, artifactCSS)))

	if mapBytes > 0 {
		pm.outputBytes.Record(ctx, int64(mapBytes), metric.WithAttributes(attribute.String(attrArtifact, artifactMap)))
	}
}
