package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	feedDecisionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spring",
		Subsystem: "feed",
		Name:      "decisions_total",
		Help:      "Swipe decisions resolved by the feed engine, by outcome.",
	}, []string{"decision"})
	joinFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "spring",
		Subsystem: "feed",
		Name:      "join_insert_failures_total",
		Help:      "Participant inserts that failed after an accept decision.",
	})
	messageSentCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "spring",
		Subsystem: "chat",
		Name:      "messages_sent_total",
		Help:      "Messages successfully inserted from a chat room.",
	})
	gatewayErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spring",
		Subsystem: "gateway",
		Name:      "errors_total",
		Help:      "Failed remote data operations, by operation.",
	}, []string{"op"})
	liveEventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spring",
		Subsystem: "realtime",
		Name:      "events_total",
		Help:      "Live-insert events fanned out to subscribers, by collection.",
	}, []string{"collection"})
	lastMessageGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "spring",
		Subsystem: "chat",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent message insert observed.",
	})
)

func init() {
	prometheus.MustRegister(
		feedDecisionCounter,
		joinFailureCounter,
		messageSentCounter,
		gatewayErrorCounter,
		liveEventCounter,
		lastMessageGauge,
	)
}

// RecordDecision counts a resolved swipe decision.
func RecordDecision(decision string) {
	feedDecisionCounter.WithLabelValues(decision).Inc()
}

// RecordJoinFailure counts a swallowed participant-insert failure.
func RecordJoinFailure() {
	joinFailureCounter.Inc()
}

// RecordMessageSent updates the chat send counter and watermark.
func RecordMessageSent(ts time.Time) {
	messageSentCounter.Inc()
	if !ts.IsZero() {
		lastMessageGauge.Set(float64(ts.Unix()))
	}
}

// RecordGatewayError counts a failed remote operation.
func RecordGatewayError(op string) {
	gatewayErrorCounter.WithLabelValues(op).Inc()
}

// RecordLiveEvent counts a fanned-out live insert.
func RecordLiveEvent(collection string) {
	liveEventCounter.WithLabelValues(collection).Inc()
}
