// Package pgsource reads the feeds straight from the Postgres datalake the
// data service is backed by.
package pgsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"allergystats/internal/feeds"
	"allergystats/internal/feeds/models"
)

// Schema is the datalake layout the source reads. Row order of cities and
// city_allergies is their id order; allergy names are the distinct
// city_allergies names in first-seen order.
const Schema = `
CREATE TABLE IF NOT EXISTS population (
	total INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS cities (
	id         SERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	state      TEXT NOT NULL DEFAULT '',
	population INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS city_allergies (
	id        SERIAL PRIMARY KEY,
	city_id   INTEGER NOT NULL REFERENCES cities (id) ON DELETE CASCADE,
	allergy   TEXT NOT NULL,
	type      TEXT NOT NULL,
	developed DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
	outgrown  DOUBLE PRECISION[] NOT NULL DEFAULT '{}'
);
`

const (
	populationQuery = `SELECT total FROM population LIMIT 1`
	citiesQuery     = `
		SELECT c.id, c.name, c.state, c.population,
		       a.allergy, a.type, a.developed, a.outgrown
		FROM cities c
		LEFT JOIN city_allergies a ON a.city_id = c.id
		ORDER BY c.id, a.id`
	allergyNamesQuery = `
		SELECT allergy FROM city_allergies
		GROUP BY allergy
		ORDER BY MIN(id)`
)

// Source is a feeds.Source over *sql.DB.
type Source struct {
	db *sql.DB
}

func New(db *sql.DB) *Source {
	return &Source{db: db}
}

func (s *Source) Population(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, populationQuery).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, feeds.NewFeedError(feeds.ErrorBadData, feeds.FeedPopulation, "population row missing", nil)
	}
	if err != nil {
		return 0, feeds.Classify(feeds.FeedPopulation, fmt.Errorf("query population: %w", err))
	}
	return total, nil
}

func (s *Source) Cities(ctx context.Context) ([]models.CityRecord, error) {
	rows, err := s.db.QueryContext(ctx, citiesQuery)
	if err != nil {
		return nil, feeds.Classify(feeds.FeedCities, fmt.Errorf("query cities: %w", err))
	}
	defer rows.Close()

	var (
		cities []models.CityRecord
		lastID = -1
	)
	for rows.Next() {
		var (
			id                  int
			city                models.CityRecord
			allergy, allergyTyp sql.NullString
			developed, outgrown pq.Float64Array
		)
		if err := rows.Scan(&id, &city.City, &city.State, &city.Population,
			&allergy, &allergyTyp, &developed, &outgrown); err != nil {
			return nil, feeds.NewFeedError(feeds.ErrorBadData, feeds.FeedCities, "scan city row", err)
		}
		if id != lastID {
			city.Allergies = []models.AllergyRecord{}
			cities = append(cities, city)
			lastID = id
		}
		if !allergy.Valid {
			continue
		}
		cur := &cities[len(cities)-1]
		cur.Allergies = append(cur.Allergies, models.AllergyRecord{
			Allergy:   allergy.String,
			Type:      allergyTyp.String,
			Developed: []float64(developed),
			Outgrown:  []float64(outgrown),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, feeds.Classify(feeds.FeedCities, fmt.Errorf("iterate cities: %w", err))
	}

	for _, c := range cities {
		if err := c.Validate(); err != nil {
			return nil, feeds.NewFeedError(feeds.ErrorBadData, feeds.FeedCities, "invalid city record", err)
		}
	}
	if cities == nil {
		cities = []models.CityRecord{}
	}
	return cities, nil
}

func (s *Source) AllergyNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, allergyNamesQuery)
	if err != nil {
		return nil, feeds.Classify(feeds.FeedAllergies, fmt.Errorf("query allergy names: %w", err))
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, feeds.NewFeedError(feeds.ErrorBadData, feeds.FeedAllergies, "scan allergy name", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, feeds.Classify(feeds.FeedAllergies, fmt.Errorf("iterate allergy names: %w", err))
	}
	return names, nil
}

// Seed replaces the datalake contents with snap. It backs fixtures and the
// statsctl seed command. snap.AllergyNames is not stored: the allergy list is
// always derived from city_allergies.
func Seed(ctx context.Context, db *sql.DB, snap models.Snapshot) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `TRUNCATE city_allergies, cities, population RESTART IDENTITY`); err != nil {
		return fmt.Errorf("clear datalake: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO population (total) VALUES ($1)`, snap.Population); err != nil {
		return fmt.Errorf("insert population: %w", err)
	}
	for _, c := range snap.Cities {
		var id int
		err = tx.QueryRowContext(ctx,
			`INSERT INTO cities (name, state, population) VALUES ($1, $2, $3) RETURNING id`,
			c.City, c.State, c.Population).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert city %q: %w", c.City, err)
		}
		for _, a := range c.Allergies {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO city_allergies (city_id, allergy, type, developed, outgrown) VALUES ($1, $2, $3, $4, $5)`,
				id, a.Allergy, a.Type, pq.Float64Array(nonNil(a.Developed)), pq.Float64Array(nonNil(a.Outgrown)))
			if err != nil {
				return fmt.Errorf("insert allergy %q for %q: %w", a.Allergy, c.City, err)
			}
		}
	}
	return tx.Commit()
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
