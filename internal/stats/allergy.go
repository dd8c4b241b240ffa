package stats

import (
	"golang.org/x/sync/errgroup"

	"allergystats/internal/feeds/models"
	strutil "allergystats/pkg/platform/strings"
)

type options struct {
	policy     Policy
	concurrent bool
}

// Option configures ComputeAllergies.
type Option func(*options)

// WithPolicy replaces the default LegacyPolicy.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithConcurrentReducers runs the four reducers in parallel. They only read
// the per-city summaries, so results are identical to a sequential run.
func WithConcurrentReducers() Option {
	return func(o *options) {
		o.concurrent = true
	}
}

// ComputeAllergies builds a summary per city and folds the summaries into
// global statistics for the total, type, developed and outgrown dimensions.
//
// allergyNames drives the developed and outgrown dimensions; it is
// deduplicated exactly, first occurrence winning. Allergies a city reports
// that are missing from allergyNames still count towards total and type.
func ComputeAllergies(cities []models.CityRecord, allergyNames []string, opts ...Option) (*AllergyStats, error) {
	o := options{policy: LegacyPolicy()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := validateCities(cities); err != nil {
		return nil, err
	}

	summaries := make([]CitySummary, 0, len(cities))
	for _, c := range cities {
		summaries = append(summaries, summarize(c))
	}
	names := strutil.Dedupe(allergyNames)

	var global GlobalStats
	reducers := []func(){
		func() { global.Total = reduceTotal(summaries, o.policy) },
		func() { global.Type = reduceTypes(summaries, o.policy) },
		func() { global.Developed = reduceDeveloped(summaries, names, o.policy) },
		func() { global.Outgrown = reduceOutgrown(summaries, names, o.policy) },
	}
	if o.concurrent {
		var g errgroup.Group
		for _, reduce := range reducers {
			g.Go(func() error {
				reduce()
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, reduce := range reducers {
			reduce()
		}
	}

	return &AllergyStats{Cities: summaries, Stats: global}, nil
}

// summarize is the per-city inner pass.
func summarize(c models.CityRecord) CitySummary {
	pop := float64(c.Population)
	s := CitySummary{
		City:      c.City,
		State:     c.State,
		Type:      []TypeCount{},
		Allergies: make([]CityAllergy, 0, len(c.Allergies)),
		byAllergy: make(map[string]int, len(c.Allergies)),
	}

	typeIndex := make(map[string]int)
	for _, a := range c.Allergies {
		developed := len(a.Developed)
		outgrown := len(a.Outgrown)
		s.Total.Total += developed

		ti, ok := typeIndex[a.Type]
		if !ok {
			ti = len(s.Type)
			typeIndex[a.Type] = ti
			s.Type = append(s.Type, TypeCount{Type: a.Type})
		}
		s.Type[ti].Total += developed

		if _, seen := s.byAllergy[a.Allergy]; !seen {
			s.byAllergy[a.Allergy] = len(s.Allergies)
		}
		s.Allergies = append(s.Allergies, CityAllergy{
			Allergy: a.Allergy,
			Type:    a.Type,
			Developed: Occurrence{
				Total:      developed,
				Percentage: Divide(float64(developed), pop),
				Ages:       append([]float64{}, a.Developed...),
			},
			Outgrown: Occurrence{
				Total:      outgrown,
				Percentage: Divide(float64(outgrown), float64(developed)),
				Ages:       append([]float64{}, a.Outgrown...),
			},
		})
	}

	s.Total.Percentage = Divide(float64(s.Total.Total), pop)
	for i := range s.Type {
		s.Type[i].Percentage = Divide(float64(s.Type[i].Total), pop)
	}
	return s
}

// allergy returns the city's first entry for name.
func (s *CitySummary) allergy(name string) (CityAllergy, bool) {
	i, ok := s.byAllergy[name]
	if !ok {
		return CityAllergy{}, false
	}
	return s.Allergies[i], true
}
