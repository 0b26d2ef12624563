package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(analysisTotal, speechRejectsTotal) }

var analysisTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "spider_analysis_total",
		Help: "Per-item creative analysis outcomes.",
	},
	[]string{"result"}, // 'ok', 'error'
)

var speechRejectsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "spider_speech_rejects_total",
		Help: "Transcripts rejected by the speech-presence filter, by reason.",
	},
	[]string{"reason"},
)

func IncAnalysis(result string) {
	analysisTotal.WithLabelValues(norm(result)).Inc()
}

func IncSpeechReject(reason string) {
	speechRejectsTotal.WithLabelValues(norm(reason)).Inc()
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
