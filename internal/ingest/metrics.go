package ingest

import "github.com/prometheus/client_golang/prometheus"

var (
	ingestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bonus_ingest_total",
			Help: "Inbound Telegram messages by ingestion outcome.",
		},
		[]string{"outcome"},
	)

	storeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bonus_store_total",
			Help: "Parsed bonus codes by storage outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(ingestTotal, storeTotal)
}
