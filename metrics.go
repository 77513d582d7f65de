/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "wishwall"

var (
	registry = prometheus.NewRegistry()

	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submissions_total",
			Help:      "Wish submissions by outcome.",
		},
		[]string{"result"},
	)

	snapshotWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "snapshot_writes_total",
			Help:      "Snapshot writes by mode (async or sync) and result.",
		},
		[]string{"mode", "result"},
	)

	wishesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "wishes",
			Help:      "Number of wishes currently held.",
		},
	)

	subscribersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Display clients currently subscribed.",
		},
	)

	broadcastMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "messages_total",
			Help:      "Events published to subscribers.",
		},
	)

	broadcastDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "hub",
			Name:      "dropped_subscribers_total",
			Help:      "Subscribers dropped because they failed or fell behind.",
		},
	)

	cardsRenderedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "cards",
			Name:      "rendered_total",
			Help:      "Wish cards rendered.",
		},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		submissionsTotal,
		snapshotWritesTotal,
		wishesGauge,
		subscribersGauge,
		broadcastMessagesTotal,
		broadcastDroppedTotal,
		cardsRenderedTotal,
	)
}

func registerMetricsHandler(cfg *Config, mux *httprouter.Router) {
	mux.Handler("GET", cfg.prefix+"/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
