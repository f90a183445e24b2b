package rules

import (
	"strings"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
)

const (
	sharedInterestWeight = 2.0
	maxSharedInterests   = 5
	sameCourseWeight     = 3.0
	sameYearWeight       = 1.5
	adjacentYearWeight   = 0.5
	preferenceWeight     = 4.0
)

// PreferenceAllows reports whether a person looking for lookingFor would be shown
// someone of the given gender. Empty and "any" preferences accept everyone.
func PreferenceAllows(lookingFor, gender string) bool {
	pref := normalize(lookingFor)
	if pref == "" || pref == "any" || pref == "all" || pref == "everyone" {
		return true
	}
	return pref == normalize(gender)
}

// MutuallyCompatible applies the preference check in both directions.
func MutuallyCompatible(viewerGender, viewerLookingFor, candidateGender, candidateLookingFor string) bool {
	return PreferenceAllows(viewerLookingFor, candidateGender) &&
		PreferenceAllows(candidateLookingFor, viewerGender)
}

type Affinity struct {
	Gender     string
	LookingFor string
	Course     string
	Year       int
	Interests  []string
}

// CompatibilityScore ranks a candidate for a viewer. Under the soft gender policy the
// preference direction contributes to the score instead of excluding the candidate.
func CompatibilityScore(viewer, candidate Affinity, policy enums.GenderPolicy) float64 {
	score := 0.0

	shared := SharedInterests(viewer.Interests, candidate.Interests)
	if shared > maxSharedInterests {
		shared = maxSharedInterests
	}
	score += float64(shared) * sharedInterestWeight

	if c := normalize(viewer.Course); c != "" && c == normalize(candidate.Course) {
		score += sameCourseWeight
	}

	if viewer.Year > 0 && candidate.Year > 0 {
		switch diff := viewer.Year - candidate.Year; {
		case diff == 0:
			score += sameYearWeight
		case diff == 1 || diff == -1:
			score += adjacentYearWeight
		}
	}

	if policy == enums.GenderPolicySoft &&
		MutuallyCompatible(viewer.Gender, viewer.LookingFor, candidate.Gender, candidate.LookingFor) {
		score += preferenceWeight
	}

	return score
}

// SharedInterests counts case-insensitive tags present in both sets.
func SharedInterests(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		if v := normalize(tag); v != "" {
			set[v] = struct{}{}
		}
	}
	count := 0
	seen := make(map[string]struct{}, len(b))
	for _, tag := range b {
		v := normalize(tag)
		if _, ok := set[v]; !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		count++
	}
	return count
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
