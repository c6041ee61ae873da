package tracer

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	UsersCreatedTotal        metric.Int64Counter
	UsersDeletedTotal        metric.Int64Counter
	ConflictsTotal           metric.Int64Counter
	ValidationFailuresTotal  metric.Int64Counter
	SearchRequestsTotal      metric.Int64Counter
	OperationDurationSeconds metric.Float64Histogram
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metric instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider, so the
// meter provider must be set before the first directory operation.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("user-directory")
		var err error
		m := &AppMetrics{}

		m.UsersCreatedTotal, err = meter.Int64Counter(
			"users_created_total",
			metric.WithDescription("Total number of user records created"),
			metric.WithUnit("{record}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create users_created_total: %v", err)
		}

		m.UsersDeletedTotal, err = meter.Int64Counter(
			"users_deleted_total",
			metric.WithDescription("Total number of user records deleted"),
			metric.WithUnit("{record}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create users_deleted_total: %v", err)
		}

		m.ConflictsTotal, err = meter.Int64Counter(
			"uniqueness_conflicts_total",
			metric.WithDescription("Total number of writes rejected by a uniqueness conflict"),
			metric.WithUnit("{conflict}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create uniqueness_conflicts_total: %v", err)
		}

		m.ValidationFailuresTotal, err = meter.Int64Counter(
			"validation_failures_total",
			metric.WithDescription("Total number of requests rejected by field validation"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create validation_failures_total: %v", err)
		}

		m.SearchRequestsTotal, err = meter.Int64Counter(
			"search_requests_total",
			metric.WithDescription("Total number of search requests served"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create search_requests_total: %v", err)
		}

		m.OperationDurationSeconds, err = meter.Float64Histogram(
			"directory_operation_duration_seconds",
			metric.WithDescription("Duration of directory operations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create directory_operation_duration_seconds: %v", err)
		}

		appMetrics = m
		log.Println("Application metrics initialized successfully.")
	})
}

// Metrics returns the global instruments, initializing them on first use.
func Metrics() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

// RecordConflict counts a rejected write, labelled with the offending field.
func RecordConflict(ctx context.Context, field string) {
	Metrics().ConflictsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
}

// ObserveOperation records the duration of a named directory operation.
func ObserveOperation(ctx context.Context, operation string, seconds float64) {
	Metrics().OperationDurationSeconds.Record(ctx, seconds, metric.WithAttributes(attribute.String("operation", operation)))
}
