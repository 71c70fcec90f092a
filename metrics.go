package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// trainingSteps counts optimizer steps across all models.
	trainingSteps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autograd_training_steps_total",
		Help: "Total optimizer steps applied",
	})

	// trainingLoss is the mean loss of the most recent /api/train call.
	trainingLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autograd_training_loss",
		Help: "Mean loss reported by the latest training call",
	})

	backwardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autograd_backward_duration_seconds",
		Help:    "Backward pass duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10µs to ~160ms
	})

	graphNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autograd_graph_nodes",
		Help:    "Nodes visited per backward pass",
		Buckets: prometheus.ExponentialBuckets(4, 2, 12),
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autograd_api_requests_total",
		Help: "API requests by endpoint and result",
	}, []string{"endpoint", "result"}) // result: "ok" or "error"
)
