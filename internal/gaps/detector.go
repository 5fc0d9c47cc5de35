// Package gaps finds high-value unwatched opportunities matching a tenant's
// coverage patterns. Pure functions, no I/O.
//
// Scoring budget (sums to 100):
//
//	State match        30 pts
//	Industry match     25 pts
//	Signal type match  20 pts
//	High deal score    15 pts  (>=70)
//	Freshness          10 pts  (<48h)
package gaps

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// minCount is the recurrence floor for a watchlist pattern to count.
	minCount = 2
	// maxProfileItems caps each inferred profile dimension.
	maxProfileItems = 10
	// freshHours is the age under which an opportunity counts as new.
	freshHours = 48
)

// fallbackReason annotates results when the tenant has no profile at all.
const fallbackReason = "Top deal by overall score"

// Profile is a tenant's coverage profile, inferred from watch behavior or
// set explicitly.
type Profile struct {
	States       []string `json:"states,omitempty"`
	Industries   []string `json:"industries,omitempty"`
	SignalTypes  []string `json:"signal_types,omitempty"`
	MinDealScore int      `json:"min_deal_score,omitempty"`
}

// IsEmpty reports whether the profile has no coverage dimensions.
func (p Profile) IsEmpty() bool {
	return len(p.States) == 0 && len(p.Industries) == 0 && len(p.SignalTypes) == 0
}

// WatchedCompany is the watchlist metadata the profile is inferred from.
type WatchedCompany struct {
	HeadquartersState string
	Industry          string
}

// Candidate is one opportunity considered for gap surfacing.
type Candidate struct {
	CompanyID         uuid.UUID
	HeadquartersState string
	Industry          string
	SignalTypes       []string
	DealScore         int
	LatestSignalAt    time.Time
}

// Match is the gap-scoring result for one surfaced opportunity.
type Match struct {
	Candidate    Candidate `json:"candidate"`
	GapScore     int       `json:"gap_score"`
	MatchReasons []string  `json:"match_reasons"`
	IsNew        bool      `json:"is_new"`
}

// DeriveProfile infers a Profile from the tenant's watchlist behavior:
// states/industries/signal types that recur at least twice, capped at the
// top 10 by frequency each.
func DeriveProfile(watched []WatchedCompany, watchedSignalTypes []string) Profile {
	if len(watched) == 0 {
		return Profile{}
	}

	stateCounts := make(map[string]int)
	industryCounts := make(map[string]int)
	for _, c := range watched {
		if c.HeadquartersState != "" {
			stateCounts[c.HeadquartersState]++
		}
		if c.Industry != "" {
			industryCounts[c.Industry]++
		}
	}
	typeCounts := make(map[string]int)
	for _, t := range watchedSignalTypes {
		typeCounts[t]++
	}

	return Profile{
		States:      topRecurring(stateCounts),
		Industries:  topRecurring(industryCounts),
		SignalTypes: topRecurring(typeCounts),
	}
}

// topRecurring returns keys with count >= minCount, most frequent first,
// capped at maxProfileItems. Ties break lexicographically for determinism.
func topRecurring(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	var out []string
	for _, k := range keys {
		if counts[k] < minCount {
			continue
		}
		out = append(out, k)
		if len(out) == maxProfileItems {
			break
		}
	}
	return out
}

// MergeExplicitPrefs overlays explicit tenant preferences onto an inferred
// profile. Explicit fields override the inferred ones entirely when present
// and non-empty; there is no blending.
func MergeExplicitPrefs(inferred Profile, explicit *Profile) Profile {
	if explicit == nil {
		return inferred
	}

	merged := inferred
	if len(explicit.States) > 0 {
		merged.States = explicit.States
	}
	if len(explicit.Industries) > 0 {
		merged.Industries = explicit.Industries
	}
	if len(explicit.SignalTypes) > 0 {
		merged.SignalTypes = explicit.SignalTypes
	}
	if explicit.MinDealScore > 0 {
		merged.MinDealScore = explicit.MinDealScore
	}
	return merged
}

// ScoreRelevance scores how relevant an unwatched opportunity is to the
// profile, returning (score 0-100, human-readable match reasons).
func ScoreRelevance(c Candidate, ageHours float64, profile Profile) (int, []string) {
	score := 0
	var reasons []string

	if c.HeadquartersState != "" && len(profile.States) > 0 {
		for _, s := range profile.States {
			if strings.EqualFold(s, c.HeadquartersState) {
				score += 30
				reasons = append(reasons, fmt.Sprintf("In your coverage area (%s)", c.HeadquartersState))
				break
			}
		}
	}

	// Industry match is a case-insensitive substring test in either direction.
	if c.Industry != "" && len(profile.Industries) > 0 {
		oppInd := strings.ToLower(c.Industry)
		for _, pi := range profile.Industries {
			pl := strings.ToLower(pi)
			if strings.Contains(oppInd, pl) || strings.Contains(pl, oppInd) {
				score += 25
				reasons = append(reasons, fmt.Sprintf("Matches your industry focus (%s)", c.Industry))
				break
			}
		}
	}

	if len(c.SignalTypes) > 0 && len(profile.SignalTypes) > 0 {
		if matched, ok := firstOverlap(c.SignalTypes, profile.SignalTypes); ok {
			score += 20
			reasons = append(reasons, fmt.Sprintf("Signal type you track (%s)", matched))
		}
	}

	if c.DealScore >= 70 {
		score += 15
		reasons = append(reasons, fmt.Sprintf("High-priority deal (score %d)", c.DealScore))
	}

	if ageHours < freshHours {
		score += 10
		reasons = append(reasons, "New signal detected")
	}

	if score > 100 {
		score = 100
	}
	return score, reasons
}

// firstOverlap returns the lexicographically first common element, for a
// deterministic match reason.
func firstOverlap(a, b []string) (string, bool) {
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	var matches []string
	for _, t := range a {
		if set[t] {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// Detect scores every unwatched candidate against the profile and returns the
// top matches plus the total count of qualifying unwatched opportunities.
//
// With an empty profile, candidates rank purely by deal score with a fixed
// fallback reason so new tenants still see a feed. Results sort by gap score
// descending with deal score as tiebreaker, truncated to limit.
func Detect(candidates []Candidate, watchedCompanyIDs map[uuid.UUID]bool, profile Profile, limit int, now time.Time) ([]Match, int) {
	hasProfile := !profile.IsEmpty()

	var scored []Match
	for _, c := range candidates {
		if watchedCompanyIDs[c.CompanyID] {
			continue
		}
		if profile.MinDealScore > 0 && c.DealScore < profile.MinDealScore {
			continue
		}

		ageHours := now.Sub(c.LatestSignalAt).Hours()
		if ageHours < 0 {
			ageHours = 0
		}

		var gapScore int
		var reasons []string
		if hasProfile {
			gapScore, reasons = ScoreRelevance(c, ageHours, profile)
		} else {
			gapScore = c.DealScore
			reasons = []string{fallbackReason}
		}

		scored = append(scored, Match{
			Candidate:    c,
			GapScore:     gapScore,
			MatchReasons: reasons,
			IsNew:        ageHours < freshHours,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].GapScore != scored[j].GapScore {
			return scored[i].GapScore > scored[j].GapScore
		}
		return scored[i].Candidate.DealScore > scored[j].Candidate.DealScore
	})

	total := len(scored)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, total
}
