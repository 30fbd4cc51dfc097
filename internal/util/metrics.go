package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Total number of sales created",
	})

	SalesCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_cancelled_total",
		Help: "Total number of sales cancelled",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of failed sale creations",
	}, []string{"reason"})

	SeatReservationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_reservations_failed_total",
		Help: "Total number of failed seat reservations",
	}, []string{"reason"})

	PaymentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of payments recorded",
	}, []string{"method"})

	PaymentsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_rejected_total",
		Help: "Total number of rejected payment attempts",
	}, []string{"reason"})

	QRGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_qr_generated_total",
		Help: "Total number of QR codes generated",
	})

	GatewayAuthTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_auth_total",
		Help: "Total number of gateway authentication attempts",
	}, []string{"outcome"})

	WebhookCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_callbacks_total",
		Help: "Total number of gateway webhook deliveries",
	}, []string{"outcome"})

	ReconciliationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_reconciliations_total",
		Help: "Total number of settlement reconciliation runs",
	})

	InstallmentsPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "installments_paid_total",
		Help: "Total number of installments settled in full",
	})

	OverdueSweepFlipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "installments_marked_overdue_total",
		Help: "Total number of installments flipped to overdue by the sweep",
	})

	GatewayRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of outbound gateway requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

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
