// Package feeds loads the population, city and allergy-name feeds the
// statistics are computed from.
package feeds

import (
	"context"

	"allergystats/internal/feeds/models"
)

// Feed names, used in errors, metrics and span attributes.
const (
	FeedPopulation = "population"
	FeedCities     = "cities"
	FeedAllergies  = "allergies"
)

//go:generate mockgen -source=feeds.go -destination=mocks/mocks.go -package=mocks Source

// Source reads the three feeds from one backing store.
type Source interface {
	Population(ctx context.Context) (int, error)
	Cities(ctx context.Context) ([]models.CityRecord, error)
	AllergyNames(ctx context.Context) ([]string, error)
}
