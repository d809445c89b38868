package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuotesTotal counts computed pricing reports by endpoint and whether a tier matched.
	QuotesTotal *prometheus.CounterVec
	// QuoteLines observes the number of priced lines per report.
	QuoteLines prometheus.Histogram
	// RuleLookupsTotal counts rule lookups by resulting status.
	RuleLookupsTotal *prometheus.CounterVec
	// RuleCacheTotal counts rule cache reads by outcome.
	RuleCacheTotal *prometheus.CounterVec
	// RuleValidationRejections counts rule configurations rejected by the validator.
	RuleValidationRejections *prometheus.CounterVec
	// RuleChangeTasksTotal counts rule-change task processing outcomes.
	RuleChangeTasksTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_quotes_total",
			Help:      "Count of computed pricing reports.",
		}, []string{"endpoint", "tier"})
		QuoteLines = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pricing_quote_lines",
			Help:      "Number of priced lines per report.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		})
		RuleLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_rule_lookups_total",
			Help:      "Count of pricing rule lookups by status.",
		}, []string{"status"})
		RuleCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_rule_cache_total",
			Help:      "Count of pricing rule cache reads by outcome.",
		}, []string{"result"})
		RuleValidationRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_rule_validation_rejections_total",
			Help:      "Count of rule configurations rejected by validation.",
		}, []string{"source"})
		RuleChangeTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_rule_change_tasks_total",
			Help:      "Count of rule-change task outcomes.",
		}, []string{"stage", "result"})

		mustRegisterCollector(reg, QuotesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuotesTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteLines, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteLines = v
			}
		})
		mustRegisterCollector(reg, RuleLookupsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RuleLookupsTotal = v
			}
		})
		mustRegisterCollector(reg, RuleCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RuleCacheTotal = v
			}
		})
		mustRegisterCollector(reg, RuleValidationRejections, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RuleValidationRejections = v
			}
		})
		mustRegisterCollector(reg, RuleChangeTasksTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RuleChangeTasksTotal = v
			}
		})
	})
}

// ObserveQuote records a computed report. Safe to call before registration.
func ObserveQuote(endpoint string, tierMatched bool, lines int) {
	if QuotesTotal == nil {
		return
	}
	tier := "none"
	if tierMatched {
		tier = "matched"
	}
	QuotesTotal.WithLabelValues(endpoint, tier).Inc()
	QuoteLines.Observe(float64(lines))
}

// ObserveRuleLookup records the status of a rule lookup.
func ObserveRuleLookup(status string) {
	if RuleLookupsTotal != nil {
		RuleLookupsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveRuleCache records a rule cache read outcome (hit, miss, negative, error).
func ObserveRuleCache(result string) {
	if RuleCacheTotal != nil {
		RuleCacheTotal.WithLabelValues(result).Inc()
	}
}

// ObserveValidationRejection records a rejected rule configuration.
func ObserveValidationRejection(source string) {
	if RuleValidationRejections != nil {
		RuleValidationRejections.WithLabelValues(source).Inc()
	}
}

// ObserveRuleChangeTask records an enqueue or processing outcome of a rule-change task.
func ObserveRuleChangeTask(stage, result string) {
	if RuleChangeTasksTotal != nil {
		RuleChangeTasksTotal.WithLabelValues(stage, result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
