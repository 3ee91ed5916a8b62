package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	SubmitsTotal   *prometheus.CounterVec
	ItemsTotal     *prometheus.CounterVec
	FallbacksTotal prometheus.Counter
	QuickWinsTotal prometheus.Counter
	ItemScore      prometheus.Histogram
	LLMCallsTotal  *prometheus.CounterVec
	LLMTokensIn    prometheus.Counter
	LLMTokensOut   prometheus.Counter
	LLMDuration    prometheus.Histogram
	ChunkDuration  prometheus.Histogram
	ChunkSize      prometheus.Histogram
	VIPErrorsTotal prometheus.Counter
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sieve_runs_total",
			Help: "Total triage runs by final status.",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sieve_run_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~512s
		}, []string{"status"}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sieve_submits_total",
			Help: "Total run submissions by result.",
		}, []string{"result"}),
		ItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sieve_items_categorized_total",
			Help: "Total categorized items by category and priority.",
		}, []string{"category", "priority"}),
		FallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sieve_fallbacks_total",
			Help: "Total items that received a fallback categorization.",
		}),
		QuickWinsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sieve_quick_wins_total",
			Help: "Total items flagged as quick wins.",
		}),
		ItemScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sieve_item_score",
			Help:    "Total priority score per categorized item.",
			Buckets: prometheus.LinearBuckets(0, 20, 9), // 0 .. 160
		}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sieve_llm_calls_total",
			Help: "Total inference calls by status.",
		}, []string{"status"}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sieve_llm_tokens_input_total",
			Help: "Total inference input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sieve_llm_tokens_output_total",
			Help: "Total inference output tokens consumed.",
		}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sieve_llm_call_duration_seconds",
			Help:    "Duration of individual inference calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. ~32s
		}),
		ChunkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sieve_chunk_duration_seconds",
			Help:    "Wall time to categorize one chunk in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s .. ~32s
		}),
		ChunkSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sieve_chunk_items",
			Help:    "Items per categorization chunk.",
			Buckets: prometheus.LinearBuckets(1, 1, 10), // 1 .. 10
		}),
		VIPErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sieve_vip_errors_total",
			Help: "Total VIP lookups that failed and were treated as non-VIP.",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.SubmitsTotal,
		m.ItemsTotal,
		m.FallbacksTotal,
		m.QuickWinsTotal,
		m.ItemScore,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
		m.ChunkDuration,
		m.ChunkSize,
		m.VIPErrorsTotal,
	)

	return m
}

// CategorizerHooks returns hooks that record inference and per-item metrics.
func (m *Metrics) CategorizerHooks() CategorizerHooks {
	return CategorizerHooks{
		OnInference: func(duration float64, usage Usage, err error) {
			status := "success"
			if err != nil {
				status = "error"
			}
			m.LLMCallsTotal.WithLabelValues(status).Inc()
			m.LLMTokensIn.Add(float64(usage.InputTokens))
			m.LLMTokensOut.Add(float64(usage.OutputTokens))
			m.LLMDuration.Observe(duration)
		},
		OnResult: func(r *CategorizationResult) {
			m.ItemsTotal.WithLabelValues(string(r.Category), string(r.Priority)).Inc()
			m.ItemScore.Observe(float64(r.Scoring.TotalScore))
			if r.Fallback {
				m.FallbacksTotal.Inc()
			}
			if r.QuickWin {
				m.QuickWinsTotal.Inc()
			}
		},
	}
}

// BatchHooks returns hooks that record chunk metrics.
func (m *Metrics) BatchHooks() BatchHooks {
	return BatchHooks{
		OnChunk: func(size int, duration float64) {
			m.ChunkSize.Observe(float64(size))
			m.ChunkDuration.Observe(duration)
		},
		OnVIPError: func() {
			m.VIPErrorsTotal.Inc()
		},
	}
}
