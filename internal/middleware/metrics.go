package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Message metrics
	messagesScreened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_bot_messages_screened_total",
		Help: "Total number of messages passed through the moderation pipeline",
	}, []string{"chat_type"})

	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_bot_messages_processed_total",
		Help: "Total number of messages processed",
	}, []string{"status"})

	// Command metrics
	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_bot_commands_executed_total",
		Help: "Total number of commands executed",
	}, []string{"command"})

	// Anti-spam metrics
	spamBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_bot_spam_blocks_total",
		Help: "Total number of messages blocked by the anti-spam engine",
	}, []string{"reason"})

	bansIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_bot_bans_issued_total",
		Help: "Total number of mutes issued, by escalation level",
	}, []string{"level"})

	// Keyword metrics
	keywordMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_bot_keyword_matches_total",
		Help: "Total number of keyword rule matches",
	})

	resolverTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_bot_resolver_timeouts_total",
		Help: "Total number of keyword scans that hit the time budget",
	})

	resolverDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderation_bot_resolver_duration_seconds",
		Help:    "Duration of keyword resolution",
		Buckets: prometheus.DefBuckets,
	})

	// Gauges
	activeBans = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moderation_bot_active_bans",
		Help: "Number of currently active bans",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordMessageScreened(chatType string) {
	messagesScreened.WithLabelValues(chatType).Inc()
}

func (m *Metrics) RecordMessageProcessed(status string) {
	messagesProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordCommandExecuted(command string) {
	commandsExecuted.WithLabelValues(command).Inc()
}

func (m *Metrics) RecordSpamBlock(reason string) {
	spamBlocks.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordBanIssued(level string) {
	bansIssued.WithLabelValues(level).Inc()
}

func (m *Metrics) RecordKeywordMatch() {
	keywordMatches.Inc()
}

func (m *Metrics) RecordResolverTimeout() {
	resolverTimeouts.Inc()
}

func (m *Metrics) ObserveResolverDuration(d time.Duration) {
	resolverDuration.Observe(d.Seconds())
}

func (m *Metrics) SetActiveBans(count int) {
	activeBans.Set(float64(count))
}

// StartMetricsServer starts the Prometheus metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
