package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of pending orders created",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders completed by a captured payment",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected or failed order intents",
	}, []string{"reason"})

	PaymentIntentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_intent_latency_seconds",
		Help:    "Latency of payment intent creation at the provider",
		Buckets: prometheus.DefBuckets,
	})

	PaymentIntentFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_intent_failed_total",
		Help: "Total number of failed payment intent creations",
	})

	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_received_total",
		Help: "Total number of verified webhook notifications by event type",
	}, []string{"event"})

	WebhookSignatureFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Total number of rejected webhook notifications",
	}, []string{"reason"})

	ReconcileAnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconcile_anomalies_total",
		Help: "Total number of notifications that matched no pending order",
	}, []string{"kind"})

	CatalogCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_total",
		Help: "Catalog cache lookups by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
