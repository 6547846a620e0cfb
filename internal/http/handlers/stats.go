package handlers

import (
	"math"
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/clearhealth/clearhealth-ai/internal/session"
	"github.com/clearhealth/clearhealth-ai/pkg/logging"
)

// StatsHandler reports an operational snapshot assembled from gathered
// Prometheus metrics plus live session counts. It reads the same series
// /metrics exposes, so the two can never disagree.
type StatsHandler struct {
	manager  *session.Manager
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

func NewStatsHandler(manager *session.Manager, gatherer prometheus.Gatherer, logger *logging.Logger) *StatsHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsHandler{manager: manager, gatherer: gatherer, logger: logger}
}

// StatsSnapshot is the JSON body of GET /stats.
type StatsSnapshot struct {
	ActiveSessions  int              `json:"active_sessions"`
	AnalysesByMode  map[string]int64 `json:"analyses_by_mode"`
	AnalysisErrors  int64            `json:"analysis_errors"`
	AnalysisP90Ms   float64          `json:"analysis_p90_ms"`
	AnalysisP95Ms   float64          `json:"analysis_p95_ms"`
	ChatSends       int64            `json:"chat_sends"`
	SpeechRequests  int64            `json:"speech_requests"`
	SpeechCacheHits int64            `json:"speech_cache_hits"`
	Lookups         int64            `json:"specialist_lookups"`
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	mfs, err := h.gatherer.Gather()
	if err != nil {
		h.logger.Error("metrics gather failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not gather metrics")
		return
	}

	snap := StatsSnapshot{
		AnalysesByMode: map[string]int64{},
	}
	if h.manager != nil {
		snap.ActiveSessions = h.manager.Len()
	}

	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case "clearhealth_analysis_total":
			for _, m := range mf.Metric {
				count := int64(m.GetCounter().GetValue())
				if mode := labelValue(m, "mode"); mode != "" {
					snap.AnalysesByMode[mode] += count
				}
				if labelValue(m, "status") == "error" {
					snap.AnalysisErrors += count
				}
			}
		case "clearhealth_analysis_latency_seconds":
			p90, p95 := histogramQuantiles(mf)
			snap.AnalysisP90Ms = p90 * 1000.0
			snap.AnalysisP95Ms = p95 * 1000.0
		case "clearhealth_chat_sends_total":
			for _, m := range mf.Metric {
				snap.ChatSends += int64(m.GetCounter().GetValue())
			}
		case "clearhealth_audio_synthesis_total":
			for _, m := range mf.Metric {
				count := int64(m.GetCounter().GetValue())
				snap.SpeechRequests += count
				if labelValue(m, "cached") == "true" {
					snap.SpeechCacheHits += count
				}
			}
		case "clearhealth_specialists_lookups_total":
			for _, m := range mf.Metric {
				snap.Lookups += int64(m.GetCounter().GetValue())
			}
		}
	}

	writeJSON(w, http.StatusOK, snap)
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// histogramQuantiles aggregates every series in the family and
// estimates p90/p95 by linear interpolation within buckets.
func histogramQuantiles(mf *dto.MetricFamily) (p90, p95 float64) {
	cumulativeByUpper := map[float64]uint64{}
	var sampleCount uint64

	for _, metric := range mf.Metric {
		hist := metric.GetHistogram()
		if hist == nil {
			continue
		}
		sampleCount += hist.GetSampleCount()
		for _, b := range hist.Bucket {
			cumulativeByUpper[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if sampleCount == 0 || len(cumulativeByUpper) == 0 {
		return 0, 0
	}

	uppers := make([]float64, 0, len(cumulativeByUpper))
	for upper := range cumulativeByUpper {
		uppers = append(uppers, upper)
	}
	sort.Float64s(uppers)

	return histogramQuantile(0.90, sampleCount, uppers, cumulativeByUpper),
		histogramQuantile(0.95, sampleCount, uppers, cumulativeByUpper)
}

func histogramQuantile(q float64, sampleCount uint64, uppers []float64, cumulative map[float64]uint64) float64 {
	rank := q * float64(sampleCount)
	var prevCum uint64
	var prevUpper float64
	for _, upper := range uppers {
		cum := cumulative[upper]
		if float64(cum) >= rank {
			if math.IsInf(upper, 1) {
				return prevUpper
			}
			bucketCount := cum - prevCum
			if bucketCount == 0 {
				return upper
			}
			fraction := (rank - float64(prevCum)) / float64(bucketCount)
			return prevUpper + (upper-prevUpper)*fraction
		}
		prevCum = cum
		if !math.IsInf(upper, 1) {
			prevUpper = upper
		}
	}
	return prevUpper
}
