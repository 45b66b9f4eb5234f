package trade

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ordersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiatln_orders_placed_total",
		Help: "Total number of placed orders",
	}, []string{"kind"})

	ordersClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiatln_orders_closed_total",
		Help: "Total number of closed orders by final status",
	}, []string{"kind", "status"})

	openOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiatln_open_orders",
		Help: "Number of orders with a running task",
	})

	transactionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiatln_transactions_closed_total",
		Help: "Total number of closed transactions by final status",
	}, []string{"kind", "status"})

	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiatln_call_duration_seconds",
		Help:    "Time spent waiting for the reply to an order task call",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)
