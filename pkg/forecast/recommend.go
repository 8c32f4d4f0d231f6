package forecast

import (
	"fmt"

	"github.com/stride-dev/stride/pkg/board"
)

// buildRecommendations derives the improvement levers a projection
// supports, in fixed priority order. Conditions are independent; a
// troubled board can collect several at once.
func buildRecommendations(p Projection) []Recommendation {
	var recs []Recommendation

	if p.DelayProbability >= 30 {
		recs = append(recs, Recommendation{
			Priority: 1,
			Code:     RecReduceScope,
			Summary:  "Reduce scope to protect the completion date",
			Detail: fmt.Sprintf("Delay probability is %.0f%%. Defer or cut lower-priority tasks to bring the projected date back inside the target.",
				p.DelayProbability),
			Impact: "high",
			Effort: "medium",
		})
	}

	if p.CV > 40 {
		recs = append(recs, Recommendation{
			Priority: 2,
			Code:     RecStabilizeVelocity,
			Summary:  "Stabilize delivery pace",
			Detail: fmt.Sprintf("Velocity varies by %.0f%% period to period. Smaller, more consistent task sizes narrow the completion window.",
				p.CV),
			Impact: "medium",
			Effort: "medium",
		})
	}

	if p.Trend == TrendDecreasing {
		recs = append(recs, Recommendation{
			Priority: 3,
			Code:     RecAddressSlowdown,
			Summary:  "Address the velocity slowdown",
			Detail:   "Recent periods are slower than earlier ones. Look for blockers, context switching, or hidden rework before the trend compounds.",
			Impact:   "critical",
			Effort:   "high",
		})
	}

	if p.RiskLevel == board.RiskHigh || p.RiskLevel == board.RiskCritical {
		recs = append(recs, Recommendation{
			Priority: 4,
			Code:     RecIncreaseCapacity,
			Summary:  "Add delivery capacity",
			Detail:   "Schedule risk is elevated. Additional hands or reassigned specialists on the critical path buy back margin.",
			Impact:   "high",
			Effort:   "high",
		})
	}

	if p.CV > 30 || p.Trend == TrendDecreasing {
		recs = append(recs, Recommendation{
			Priority: 5,
			Code:     RecProcessImprovement,
			Summary:  "Run a process review",
			Detail:   "Variable or declining throughput usually has a process cause. A short retrospective on hand-offs and review latency is cheap to try.",
			Impact:   "medium",
			Effort:   "low",
		})
	}

	if p.DelayProbability >= 20 {
		recs = append(recs, Recommendation{
			Priority: 6,
			Code:     RecIncreaseMonitoring,
			Summary:  "Tighten progress monitoring",
			Detail:   "With meaningful delay risk, move to shorter check-in cycles so slips surface within days instead of weeks.",
			Impact:   "low",
			Effort:   "low",
		})
	}

	return recs
}

// gatherMoreDataRecommendation accompanies the fallback projection.
func gatherMoreDataRecommendation(samples int) Recommendation {
	return Recommendation{
		Priority: 1,
		Code:     RecGatherMoreData,
		Summary:  "Record more velocity history",
		Detail: fmt.Sprintf("Only %d of the %d velocity snapshots needed for a projection exist. Keep recording weekly snapshots; forecasts unlock at %d.",
			samples, MinVelocitySamples, MinVelocitySamples),
		Impact: "high",
		Effort: "low",
	}
}
