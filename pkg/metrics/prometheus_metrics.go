/*
Copyright 2023 The Kruise Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics centralizes the Prometheus collectors shared by every
// dorch binary, registered against the controller-runtime metrics registry
// so the reconciler's /metrics endpoint and the standalone binaries expose
// a consistent vocabulary.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Metric names
const (
	MetricGamesPhaseCount          = "dorch_games_phase_count"
	MetricSRPSessionsActive        = "dorch_srp_sessions_active"
	MetricSRPAuthResult            = "dorch_srp_auth_result_total"
	MetricDispatchPublishedTotal   = "dorch_dispatch_published_total"
	MetricDispatchEmptyPollTotal   = "dorch_dispatch_empty_poll_total"
	MetricAnalysisJobsTotal        = "dorch_analysis_jobs_total"
	MetricWSConnectionsActive      = "dorch_ws_connections_active"
	MetricRateLimitDeniedTotal     = "dorch_ratelimit_denied_total"
	MetricMeshProxyParticipants    = "dorch_meshproxy_participants_active"
)

// Metric label names
const (
	LabelPhase  = "phase"
	LabelResult = "result"
	LabelPipe   = "pipeline"
	LabelOutcome = "outcome"
)

func init() {
	metrics.Registry.MustRegister(GamesPhaseCount)
	metrics.Registry.MustRegister(SRPSessionsActive)
	metrics.Registry.MustRegister(SRPAuthResult)
	metrics.Registry.MustRegister(DispatchPublishedTotal)
	metrics.Registry.MustRegister(DispatchEmptyPollTotal)
	metrics.Registry.MustRegister(AnalysisJobsTotal)
	metrics.Registry.MustRegister(WSConnectionsActive)
	metrics.Registry.MustRegister(RateLimitDeniedTotal)
	metrics.Registry.MustRegister(MeshProxyParticipants)
}

var (
	GamesPhaseCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricGamesPhaseCount,
			Help: "The number of reconcile decisions observed per action kind",
		},
		[]string{LabelPhase},
	)
	SRPSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricSRPSessionsActive,
			Help: "The number of live entries in the SRP session table",
		},
	)
	SRPAuthResult = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricSRPAuthResult,
			Help: "SRP handshake outcomes by result",
		},
		[]string{LabelResult},
	)
	DispatchPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricDispatchPublishedTotal,
			Help: "Work rows published to the broker by pipeline",
		},
		[]string{LabelPipe},
	)
	DispatchEmptyPollTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricDispatchEmptyPollTotal,
			Help: "Dispatch poll ticks that found no claimable row",
		},
		[]string{LabelPipe},
	)
	AnalysisJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: MetricAnalysisJobsTotal,
			Help: "Analysis jobs processed by outcome",
		},
		[]string{LabelOutcome},
	)
	WSConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricWSConnectionsActive,
			Help: "The number of live authenticated WS sessions",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: MetricRateLimitDeniedTotal,
			Help: "The number of rate-limit checks that returned deny",
		},
	)
	MeshProxyParticipants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: MetricMeshProxyParticipants,
			Help: "The number of participant sessions the mesh proxy is currently relaying",
		},
	)
)

// ObserveGamePhase increments the phase counter for the given reconcile
// decision kind.
func ObserveGamePhase(kind string) {
	GamesPhaseCount.WithLabelValues(kind).Inc()
}
