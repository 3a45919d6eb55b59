// Package rank holds the pure ranking decisions: which status a freshly
// submitted score receives relative to the player's history, and how player
// statistics aggregate from a best-score window. Persistence stays outside.
package rank

import "github.com/osudroid-server/internal/domain"

// Decision is the outcome of evaluating a candidate score against the
// player's current best on the same beatmap.
type Decision struct {
	Status         domain.SubmissionStatus
	DemotePrevious bool
}

// bestStatusFor maps the beatmap approval state onto the user-best status.
// Loved maps take APPROVED: it counts for the map leaderboard and replaces
// like BEST but keeps its own tag.
func bestStatusFor(approval domain.ApprovalState) domain.SubmissionStatus {
	if approval == domain.ApprovalLoved {
		return domain.StatusApproved
	}
	return domain.StatusBest
}

// DecideStatus evaluates a candidate score once, at submission time.
// A candidate with no previous best becomes the best outright; one that
// strictly beats the previous best under the configured metric replaces it,
// demoting the old best to SUBMITTED; anything else fails and never feeds
// statistics.
func DecideStatus(previous *domain.Score, candidate *domain.Score, metric domain.Metric, approval domain.ApprovalState) Decision {
	if previous == nil {
		return Decision{Status: bestStatusFor(approval)}
	}
	if candidate.MetricValue(metric) > previous.MetricValue(metric) {
		return Decision{Status: bestStatusFor(approval), DemotePrevious: true}
	}
	return Decision{Status: domain.StatusFailed}
}
