package rules

import (
	"testing"

	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
)

func TestPreferenceAllows(t *testing.T) {
	tests := []struct {
		name       string
		lookingFor string
		gender     string
		expected   bool
	}{
		{name: "exact match", lookingFor: "female", gender: "female", expected: true},
		{name: "case insensitive", lookingFor: " Female ", gender: "FEMALE", expected: true},
		{name: "mismatch", lookingFor: "female", gender: "male", expected: false},
		{name: "any accepts all", lookingFor: "any", gender: "male", expected: true},
		{name: "empty accepts all", lookingFor: "", gender: "female", expected: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PreferenceAllows(tc.lookingFor, tc.gender); got != tc.expected {
				t.Fatalf("unexpected result: got %v want %v", got, tc.expected)
			}
		})
	}
}

func TestMutuallyCompatibleChecksBothDirections(t *testing.T) {
	if !MutuallyCompatible("male", "female", "female", "male") {
		t.Fatalf("expected male/female pair to be compatible")
	}
	if MutuallyCompatible("male", "female", "female", "female") {
		t.Fatalf("candidate preference must be respected")
	}
}

func TestCompatibilityScoreRanksAffinity(t *testing.T) {
	viewer := Affinity{Gender: "male", LookingFor: "female", Course: "CS", Year: 2, Interests: []string{"chess", "hiking", "jazz"}}
	near := Affinity{Gender: "female", LookingFor: "male", Course: "cs", Year: 2, Interests: []string{"Hiking", "jazz", "jazz"}}
	far := Affinity{Gender: "female", LookingFor: "male", Course: "Law", Year: 4, Interests: []string{"rowing"}}

	nearScore := CompatibilityScore(viewer, near, enums.GenderPolicyHard)
	farScore := CompatibilityScore(viewer, far, enums.GenderPolicyHard)

	// 2 shared interests, same course, same year.
	if nearScore != 2*sharedInterestWeight+sameCourseWeight+sameYearWeight {
		t.Fatalf("unexpected near score: %v", nearScore)
	}
	if farScore != 0 {
		t.Fatalf("unexpected far score: %v", farScore)
	}
}

func TestCompatibilityScoreSoftPolicyRewardsPreference(t *testing.T) {
	viewer := Affinity{Gender: "male", LookingFor: "female"}
	match := Affinity{Gender: "female", LookingFor: "male"}
	miss := Affinity{Gender: "male", LookingFor: "female"}

	if got := CompatibilityScore(viewer, match, enums.GenderPolicySoft); got != preferenceWeight {
		t.Fatalf("expected preference bonus, got %v", got)
	}
	if got := CompatibilityScore(viewer, miss, enums.GenderPolicySoft); got != 0 {
		t.Fatalf("expected no bonus for incompatible preference, got %v", got)
	}
	if got := CompatibilityScore(viewer, match, enums.GenderPolicyHard); got != 0 {
		t.Fatalf("hard policy must not add preference bonus, got %v", got)
	}
}
