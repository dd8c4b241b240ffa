package stats

import (
	"fmt"
	"strings"
)

// Denominator selects which cities a group's mean is divided by.
type Denominator int

const (
	// AllCities divides by the number of cities in the report, so cities
	// without the group dilute its mean.
	AllCities Denominator = iota
	// ContributingCities divides by the cities with a nonzero count for the
	// group. A group nobody contributed to has an undefined mean.
	ContributingCities
)

func (d Denominator) String() string {
	if d == ContributingCities {
		return "contributing_cities"
	}
	return "all_cities"
}

// AbsentPolicy decides what a city lacking a developed allergy does to that
// allergy's running statistics.
type AbsentPolicy int

const (
	// AbsentResetsMinimum forces the minimum count and percentage to zero,
	// attributed to the city lacking the allergy.
	AbsentResetsMinimum AbsentPolicy = iota
	// AbsentSkipped leaves the statistics untouched.
	AbsentSkipped
)

func (a AbsentPolicy) String() string {
	if a == AbsentSkipped {
		return "skipped"
	}
	return "resets_minimum"
}

// Policy names the per-dimension choices of the allergy aggregator.
type Policy struct {
	Total           Denominator
	Type            Denominator
	Developed       Denominator
	Outgrown        Denominator
	DevelopedAbsent AbsentPolicy
	// ContributingExtremes limits min/max to contributing cities, so a zero
	// count never becomes a minimum.
	ContributingExtremes bool
}

// Report modes accepted by PolicyForMode.
const (
	ModeLegacy = "legacy"
	ModeScoped = "scoped"
)

// LegacyPolicy reproduces the historical report: every mean except
// outgrown is over all cities, and a city lacking a developed allergy
// resets its minimum to zero.
func LegacyPolicy() Policy {
	return Policy{
		Total:           AllCities,
		Type:            AllCities,
		Developed:       AllCities,
		Outgrown:        ContributingCities,
		DevelopedAbsent: AbsentResetsMinimum,
	}
}

// ScopedPolicy restricts min, max and mean of every dimension to
// contributing cities.
func ScopedPolicy() Policy {
	return Policy{
		Total:           ContributingCities,
		Type:            ContributingCities,
		Developed:       ContributingCities,
		Outgrown:        ContributingCities,
		DevelopedAbsent: AbsentSkipped,

		ContributingExtremes: true,
	}
}

// PolicyForMode resolves a report mode name. An empty mode is legacy.
func PolicyForMode(mode string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeLegacy:
		return LegacyPolicy(), nil
	case ModeScoped:
		return ScopedPolicy(), nil
	default:
		return Policy{}, fmt.Errorf("unknown report mode %q", mode)
	}
}
