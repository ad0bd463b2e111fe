package cma

import "math"

// Metric names, in report order.
const (
	MetricFactualAcc        = "factual_acc"
	MetricTE                = "te"
	MetricNDE               = "nde"
	MetricTIE               = "tie"
	MetricTIEStd            = "tie_std"
	MetricTIEAcc            = "tie_acc"
	MetricNIE               = "nie"
	MetricNIEStd            = "nie_std"
	MetricNIEAcc            = "nie_acc"
	MetricINTmed            = "intmed"
	MetricINTmedStd         = "intmed_std"
	MetricINTmedAcc         = "intmed_acc"
	MetricCombinedAcc       = "combined_acc"
	MetricHeuristicFactual  = "heuristic_avg_factual"
	MetricHeuristicCombined = "heuristic_avg_combined"
)

// MetricOrder lists every metric name in report order.
var MetricOrder = []string{
	MetricFactualAcc,
	MetricTE, MetricNDE,
	MetricTIE, MetricTIEStd, MetricTIEAcc,
	MetricNIE, MetricNIEStd, MetricNIEAcc,
	MetricINTmed, MetricINTmedStd, MetricINTmedAcc,
	MetricCombinedAcc,
	MetricHeuristicFactual, MetricHeuristicCombined,
}

// MetricSummary is one metric across seeds.
type MetricSummary struct {
	Name string `json:"name"`
	// Seeds names the seed of each PerSeed value.
	Seeds   []string  `json:"seeds"`
	PerSeed []float64 `json:"per_seed"`
	Mean    float64   `json:"mean"`
	Std     float64   `json:"std"`
}

// aggregate reduces per-seed results to one summary per metric. Seeds that
// lack a metric do not contribute to it; metrics no seed reported are omitted.
func aggregate(results []*SeedResult) []MetricSummary {
	var out []MetricSummary
	for _, name := range MetricOrder {
		s := MetricSummary{Name: name}
		for _, r := range results {
			if v, ok := r.Metrics[name]; ok {
				s.Seeds = append(s.Seeds, r.Seed)
				s.PerSeed = append(s.PerSeed, v)
			}
		}
		if len(s.PerSeed) == 0 {
			continue
		}
		s.Mean = mean(s.PerSeed)
		s.Std = popStd(s.PerSeed)
		out = append(out, s)
	}
	return out
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// popStd is the population standard deviation (divisor n).
func popStd(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(vals)))
}
