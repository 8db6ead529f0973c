package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message outcomes recorded by the consumer.
const (
	OutcomeAcked        = "acked"
	OutcomeMalformed    = "malformed"
	OutcomeFailed       = "failed"
	OutcomeDeadLettered = "dead_lettered"
)

// Analysis kinds recorded by the handlers.
const (
	AnalysisAnswer = "answer"
	AnalysisReport = "report"
)

// Pipeline holds the collectors of one consumer process. A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	namespace string
	buckets   []float64
	registry  prometheus.Registerer

	messages        *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	analyses        *prometheus.CounterVec
	loopErrors      prometheus.Counter
	reclaimed       prometheus.Counter
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		namespace: "interview_worker",
		buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      "messages_total",
		Help:      "Stream messages processed, by event type and outcome.",
	}, []string{"event", "outcome"})

	p.handlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: p.namespace,
		Name:      "handler_duration_seconds",
		Help:      "Time spent dispatching one message, by event type.",
		Buckets:   p.buckets,
	}, []string{"event"})

	p.analyses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      "analyses_total",
		Help:      "Completion-service analyses, by kind and whether the fallback was used.",
	}, []string{"kind", "fallback"})

	p.loopErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      "loop_errors_total",
		Help:      "Errors that interrupted a consumer loop iteration.",
	})

	p.reclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      "pending_messages_total",
		Help:      "Previously delivered messages read back from the pending entries list.",
	})

	p.registry.MustRegister(p.messages, p.handlerDuration, p.analyses, p.loopErrors, p.reclaimed)

	return p
}

// ObserveMessage records the outcome of one message and, when d > 0, its dispatch time.
func (p *Pipeline) ObserveMessage(event, outcome string, d time.Duration) {
	if p == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	p.messages.WithLabelValues(event, outcome).Inc()
	if d > 0 {
		p.handlerDuration.WithLabelValues(event).Observe(d.Seconds())
	}
}

func (p *Pipeline) ObserveAnalysis(kind string, fallback bool) {
	if p == nil {
		return
	}
	label := "false"
	if fallback {
		label = "true"
	}
	p.analyses.WithLabelValues(kind, label).Inc()
}

func (p *Pipeline) LoopError() {
	if p == nil {
		return
	}
	p.loopErrors.Inc()
}

func (p *Pipeline) PendingRead(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.reclaimed.Add(float64(n))
}
