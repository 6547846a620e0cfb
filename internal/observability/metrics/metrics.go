package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics exposes counters/histograms for the analysis pipeline.
type AnalysisMetrics struct {
	analysesTotal   *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec
	chatSendsTotal  *prometheus.CounterVec
	speechTotal     *prometheus.CounterVec
	lookupsTotal    *prometheus.CounterVec
}

func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	m := &AnalysisMetrics{
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearhealth",
			Subsystem: "analysis",
			Name:      "total",
			Help:      "Total analyses by mode and outcome",
		}, []string{"mode", "status"}),
		analysisLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clearhealth",
			Subsystem: "analysis",
			Name:      "latency_seconds",
			Help:      "Latency of the analyze gateway call",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		chatSendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearhealth",
			Subsystem: "chat",
			Name:      "sends_total",
			Help:      "Total chat sends by outcome",
		}, []string{"status"}),
		speechTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearhealth",
			Subsystem: "audio",
			Name:      "synthesis_total",
			Help:      "Total speech synthesis requests by outcome and cache state",
		}, []string{"status", "cached"}),
		lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearhealth",
			Subsystem: "specialists",
			Name:      "lookups_total",
			Help:      "Total specialist lookups by outcome",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.analysesTotal, m.analysisLatency, m.chatSendsTotal, m.speechTotal, m.lookupsTotal)
	return m
}

func (m *AnalysisMetrics) ObserveAnalysis(mode, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(mode, status).Inc()
	m.analysisLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func (m *AnalysisMetrics) ObserveChatSend(status string) {
	if m == nil {
		return
	}
	m.chatSendsTotal.WithLabelValues(status).Inc()
}

func (m *AnalysisMetrics) ObserveSpeech(status string, cached bool) {
	if m == nil {
		return
	}
	label := "false"
	if cached {
		label = "true"
	}
	m.speechTotal.WithLabelValues(status, label).Inc()
}

func (m *AnalysisMetrics) ObserveLookup(status string) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(status).Inc()
}
