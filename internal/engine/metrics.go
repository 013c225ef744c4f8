package engine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type storeMetrics struct {
	mutations metric.Int64Counter
	rollbacks metric.Int64Counter
	refreshes metric.Int64Counter
}

func newStoreMetrics() storeMetrics {
	meter := otel.Meter("github.com/ateli/materialflow/internal/engine")

	mutations, _ := meter.Int64Counter("orders.mutations",
		metric.WithDescription("Order mutations durably persisted"))
	rollbacks, _ := meter.Int64Counter("orders.rollbacks",
		metric.WithDescription("Optimistic updates rolled back after a failed durable write"))
	refreshes, _ := meter.Int64Counter("orders.refreshes",
		metric.WithDescription("Reconciliation reads against the record store"))

	return storeMetrics{mutations: mutations, rollbacks: rollbacks, refreshes: refreshes}
}
