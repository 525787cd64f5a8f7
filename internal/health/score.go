// Package health turns drift and change activity into a cluster health
// score, a status and advisory recommendations.
package health

import (
	"fmt"
	"strings"
)

// Status classifies a health score
type Status string

// Health statuses
const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusNoData   Status = "no_data"
)

const (
	maxScore = 100

	driftThreshold      = 10
	driftPerEvent       = 2
	maxDriftPenalty     = 30
	changeThreshold     = 50
	changesPerPoint     = 10
	maxChangePenalty    = 20
	minScansPerDay      = 0.5
	lowFrequencyPenalty = 20

	healthyScore = 80
	warningScore = 60

	highDriftEvents   = 20
	highChangeVolume  = 100
	unstableMentioned = 3
)

// Score starts at 100 and subtracts penalties for drift events above 10,
// change volume above 50 and scanning less than every other day. It never
// drops below 0.
func Score(driftEvents, changeVolume int, scanFrequencyPerDay float64) int {
	score := maxScore

	if driftEvents > driftThreshold {
		score -= min(maxDriftPenalty, driftPerEvent*(driftEvents-driftThreshold))
	}
	if changeVolume > changeThreshold {
		score -= min(maxChangePenalty, (changeVolume-changeThreshold)/changesPerPoint)
	}
	if scanFrequencyPerDay < minScansPerDay {
		score -= lowFrequencyPenalty
	}

	return max(0, score)
}

// Classify maps a score to a status; the first matching threshold wins.
func Classify(score int) Status {
	switch {
	case score >= healthyScore:
		return StatusHealthy
	case score >= warningScore:
		return StatusWarning
	default:
		return StatusCritical
	}
}

// Inputs feeds Recommendations
type Inputs struct {
	Score               int
	ScanFrequencyPerDay float64
	DriftEvents         int
	UnstableResources   []string
	ChangeVolume        int
}

// Recommendations applies every matching rule in order. When none match a
// single "appears healthy" message is returned.
func Recommendations(in Inputs) []string {
	var recs []string

	switch {
	case in.Score < warningScore:
		recs = append(recs, "Cluster health is critical - investigate recent changes and drift")
	case in.Score < healthyScore:
		recs = append(recs, "Cluster health needs attention - review configuration drift")
	}

	if in.ScanFrequencyPerDay < minScansPerDay {
		recs = append(recs, "Increase scanning frequency for better monitoring coverage")
	}

	if in.DriftEvents > highDriftEvents {
		recs = append(recs, "High configuration drift detected - review change management processes")
	}

	if len(in.UnstableResources) > 0 {
		names := in.UnstableResources
		if len(names) > unstableMentioned {
			names = names[:unstableMentioned]
		}
		recs = append(recs, fmt.Sprintf("Focus on stabilizing frequently changing resources: %s", strings.Join(names, ", ")))
	}

	if in.ChangeVolume > highChangeVolume {
		recs = append(recs, "High change volume - consider implementing change freezes or approval processes")
	}

	if len(recs) == 0 {
		recs = append(recs, "Cluster appears healthy - continue regular monitoring")
	}
	return recs
}
