package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricOperationsTotal    = "sasspipe.operations.total"
	metricOperationDuration  = "sasspipe.operation.duration.seconds"
	metricOperationFailures  = "sasspipe.operation.failures.total"
	metricOperationsInFlight = "sasspipe.operations.active"

	attrOp     = "sasspipe.op"
	attrStatus = "sasspipe.status"
	attrOpMode = "sasspipe.mode"

	// StatusOK marks an operation that finished without error.
	StatusOK = "ok"
	// StatusError marks a failed operation.
	StatusError = "error"
	// StatusCanceled marks an operation stopped by its caller, such as an
	// interrupted build or an MCP request the client abandoned.
	StatusCanceled = "canceled"
)

// Op names a unit of work sasspipe measures.
type Op string

const (
	// OpDeps is one run of the deps command.
	OpDeps Op = "deps"
	// OpCompile is one stylesheet compile.
	OpCompile Op = "compile"
	// OpBuild is one project build.
	OpBuild Op = "build"
)

// durationBucketBoundaries covers 1ms to 60s: a single resolution is fast, a
// full project build with a cold compiler is not.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// OperationMetrics counts and times sasspipe operations. Every measurement carries
// the operation, its outcome and the mode the binary runs in.
type OperationMetrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
	failures metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	mode     attribute.KeyValue
}

// NewOperationMetrics creates the operation instruments for a binary running in mode.
func NewOperationMetrics(mt metric.Meter, mode AppMode) (*OperationMetrics, error) {
	b := newMetricBuilder(mt)

	om := &OperationMetrics{
		total:    b.counter(metricOperationsTotal, "Completed deps, compile, build and MCP tool operations", "{operation}"),
		duration: b.histogram(metricOperationDuration, "Operation wall time in seconds", "s", durationBucketBoundaries...),
		failures: b.counter(metricOperationFailures, "Operations that ended in an error", "{operation}"),
		inFlight: b.upDownCounter(metricOperationsInFlight, "Operations currently running", "{operation}"),
		mode:     attribute.String(attrOpMode, string(mode)),
	}

	if b.err != nil {
		return nil, b.err
	}

	return om, nil
}

// Record records a finished operation.
func (om *OperationMetrics) Record(ctx context.Context, op Op, status string, duration time.Duration) {
	if om == nil {
		return
	}

	opAttr := attribute.String(attrOp, string(op))
	attrs := metric.WithAttributes(opAttr, attribute.String(attrStatus, status), om.mode)

	om.total.Add(ctx, 1, attrs)
	om.duration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		om.failures.Add(ctx, 1, metric.WithAttributes(opAttr, om.mode))
	}
}

// Track marks op as running and returns the function that marks it done.
func (om *OperationMetrics) Track(ctx context.Context, op Op) func() {
	if om == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, string(op)), om.mode)
	om.inFlight.Add(ctx, 1, attrs)

	return func() {
		om.inFlight.Add(ctx, -1, attrs)
	}
}

// Measure runs fn as one op and records its outcome.
func (om *OperationMetrics) Measure(ctx context.Context, op Op, fn func() error) error {
	done := om.Track(ctx, op)
	defer done()

	start := time.Now()
	err := fn()
	om.Record(ctx, op, Status(err), time.Since(start))

	return err
}

// Status maps an operation error to its status label. Cancellation is not a failure.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.Canceled):
		return StatusCanceled
	default:
		return StatusError
	}
}
