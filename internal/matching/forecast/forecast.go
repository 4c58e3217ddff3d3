// Package forecast estimates, never gates, the probability that an open
// shift fills before its fillByDate. It is a supplemental feature (not in
// the core matching spec) adapted from the teacher's Monte-Carlo engine
// (internal/simulation/engine.go): the same "resample trial outcomes, sort,
// read off percentiles" shape, run as one sequential loop, applied to a branch's
// historical proposal response times and acceptance rate instead of Jira
// issue throughput. It never runs on the synchronous matchShift path.
package forecast

import (
	"math/rand"
	"sort"

	"mcs-mcp/internal/matching/domain"
)

// Percentiles mirrors the teacher's banding (P10/P30/P50/P70/P85/P90/P95/P98)
// applied here to minutes-to-fill rather than days-to-delivery.
type Percentiles struct {
	Aggressive    float64 // P10
	Unlikely      float64 // P30
	CoinToss      float64 // P50
	Probable      float64 // P70
	Likely        float64 // P85
	Conservative  float64 // P90
	Safe          float64 // P95
	AlmostCertain float64 // P98
}

// Result is the outcome of EstimateFillProbability.
type Result struct {
	// FillProbability is the fraction of simulated trials in which the
	// shift receives an ACCEPTED proposal before fillByDateMinutes.
	FillProbability float64
	// MinutesToFill bands the simulated accepted-proposal latency, for
	// trials that did fill (0 if no trial ever filled).
	MinutesToFill Percentiles
	// SampleSize is the number of historical (response-time, accepted)
	// observations the resample drew from.
	SampleSize int
}

// observation is one historical proposal's response latency and whether it
// was accepted, read from MatchHistory.
type observation struct {
	responseMinutes float64
	accepted        bool
}

// EstimateFillProbability runs a bootstrap Monte-Carlo resample over a
// branch's historical proposal outcomes (drawn from MatchHistory, supplied
// by the caller since history.Store partitions rows by shift rather than
// branch) to answer "what is the probability this shift is filled within
// fillByDateMinutes minutes of its first proposal". trials defaults to
// 10000 when <= 0, the same default the teacher's run_simulation tool used.
func EstimateFillProbability(branchHistory []domain.MatchHistory, fillByDateMinutes float64, trials int) Result {
	if trials <= 0 {
		trials = 10000
	}

	observations := observationsFrom(branchHistory)
	if len(observations) == 0 {
		return Result{SampleSize: 0}
	}

	rng := rand.New(rand.NewSource(1))
	filledMinutes := make([]float64, 0, trials)
	fillCount := 0

	for i := 0; i < trials; i++ {
		obs := observations[rng.Intn(len(observations))]
		if obs.accepted && (fillByDateMinutes <= 0 || obs.responseMinutes <= fillByDateMinutes) {
			fillCount++
			filledMinutes = append(filledMinutes, obs.responseMinutes)
		}
	}

	result := Result{
		FillProbability: float64(fillCount) / float64(trials),
		SampleSize:      len(observations),
	}

	if len(filledMinutes) == 0 {
		return result
	}

	sort.Float64s(filledMinutes)
	n := len(filledMinutes)
	result.MinutesToFill = Percentiles{
		Aggressive:    filledMinutes[pIndex(n, 0.10)],
		Unlikely:      filledMinutes[pIndex(n, 0.30)],
		CoinToss:      filledMinutes[pIndex(n, 0.50)],
		Probable:      filledMinutes[pIndex(n, 0.70)],
		Likely:        filledMinutes[pIndex(n, 0.85)],
		Conservative:  filledMinutes[pIndex(n, 0.90)],
		Safe:          filledMinutes[pIndex(n, 0.95)],
		AlmostCertain: filledMinutes[pIndex(n, 0.98)],
	}
	return result
}

func pIndex(n int, p float64) int {
	idx := int(float64(n) * p)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func observationsFrom(rows []domain.MatchHistory) []observation {
	out := make([]observation, 0, len(rows))
	for _, row := range rows {
		switch row.Outcome {
		case domain.OutcomeAccepted:
			out = append(out, observation{responseMinutes: row.ResponseTimeMinutes, accepted: true})
		case domain.OutcomeRejected, domain.OutcomeExpired:
			out = append(out, observation{responseMinutes: row.ResponseTimeMinutes, accepted: false})
		}
	}
	return out
}
