package services

import "github.com/prometheus/client_golang/prometheus"

// Domain metrics. HTTP-level metrics live in the middleware package; these
// count the things operators actually page on: dropped webhooks, fallback
// replies, validator behavior, and match runs.
var (
	webhooksAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_webhooks_accepted_total",
		Help: "Webhook deliveries accepted for asynchronous processing.",
	})

	webhooksDeduped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_webhooks_deduped_total",
		Help: "Webhook deliveries skipped as duplicates of a seen message ID.",
	})

	repliesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_replies_sent_total",
		Help: "Outbound chat replies, by kind (interview, welcome, fallback, nudge).",
	}, []string{"kind"})

	replyFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_reply_fallbacks_total",
		Help: "Replies downgraded to a fallback, by cause (timeout, error, panic).",
	}, []string{"cause"})

	validatorDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_validator_decisions_total",
		Help: "Answer validator outcomes, by source (precheck, llm, fault) and decision (accept, reject).",
	}, []string{"source", "decision"})

	matchingRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matcher_matching_runs_total",
		Help: "Full matching runs, by result (completed, failed, rejected).",
	}, []string{"result"})

	qualitativeFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matcher_qualitative_fallbacks_total",
		Help: "Pairwise qualitative scores that fell back to the neutral default.",
	})
)

func init() {
	prometheus.MustRegister(
		webhooksAccepted,
		webhooksDeduped,
		repliesSent,
		replyFallbacks,
		validatorDecisions,
		matchingRuns,
		qualitativeFallbacks,
	)
}
