package stats

import (
	"allergystats/internal/feeds/models"
)

// ComputePopulation reports each city's share of the total population and
// the min, max and unweighted mean of city populations.
//
// Ties on min/max keep the first city seen. A zero total population leaves
// every percentage undefined but still produces a report.
func ComputePopulation(population int, cities []models.CityRecord) (*PopulationStats, error) {
	if err := validateCities(cities); err != nil {
		return nil, err
	}

	out := &PopulationStats{Cities: make([]PopulationCity, 0, len(cities))}
	sum := 0
	for i, c := range cities {
		pc := PopulationCity{
			City:       c.City,
			State:      c.State,
			Percentage: Divide(float64(c.Population), float64(population)),
			Population: c.Population,
		}
		out.Cities = append(out.Cities, pc)
		sum += c.Population

		if i == 0 || c.Population < out.Min.Population {
			out.Min = extremeOf(pc)
		}
		if i == 0 || c.Population > out.Max.Population {
			out.Max = extremeOf(pc)
		}
	}
	out.Mean = float64(sum) / float64(len(cities))

	return out, nil
}

func extremeOf(pc PopulationCity) PopulationExtreme {
	return PopulationExtreme{City: pc.City, Percentage: pc.Percentage, Population: pc.Population}
}
