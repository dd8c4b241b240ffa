package stats

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"allergystats/internal/feeds/models"
	dErrors "allergystats/pkg/domain-errors"
)

func TestComputePopulation(t *testing.T) {
	cities := []models.CityRecord{
		{City: "Springfield", State: "IL", Population: 300},
		{City: "Shelbyville", State: "IL", Population: 100},
		{City: "Capital City", State: "IL", Population: 600},
	}

	t.Run("percentages, extremes and unweighted mean", func(t *testing.T) {
		got, err := ComputePopulation(2000, cities)
		require.NoError(t, err)
		require.Len(t, got.Cities, 3)

		sum := 0.0
		for i, c := range got.Cities {
			assert.Equal(t, cities[i].City, c.City)
			assert.Equal(t, cities[i].State, c.State)
			v, ok := c.Percentage.Float64()
			require.True(t, ok)
			sum += v
			assert.LessOrEqual(t, got.Min.Population, c.Population)
			assert.GreaterOrEqual(t, got.Max.Population, c.Population)
		}
		assert.InDelta(t, 1000.0/2000.0, sum, 1e-12)

		assert.Equal(t, PopulationExtreme{City: "Shelbyville", Percentage: Value(0.05), Population: 100}, got.Min)
		assert.Equal(t, PopulationExtreme{City: "Capital City", Percentage: Value(0.3), Population: 600}, got.Max)
		assert.InDelta(t, 1000.0/3.0, got.Mean, 1e-9)
	})

	t.Run("ties keep the first city seen", func(t *testing.T) {
		got, err := ComputePopulation(100, []models.CityRecord{
			{City: "a", Population: 10},
			{City: "b", Population: 10},
		})
		require.NoError(t, err)
		assert.Equal(t, "a", got.Min.City)
		assert.Equal(t, "a", got.Max.City)
		assert.Equal(t, 10.0, got.Mean)
	})

	t.Run("single city is both min and max", func(t *testing.T) {
		got, err := ComputePopulation(50, cities[:1])
		require.NoError(t, err)
		assert.Equal(t, got.Min, got.Max)
		assert.Equal(t, 300.0, got.Mean)
	})

	t.Run("zero population leaves percentages undefined", func(t *testing.T) {
		got, err := ComputePopulation(0, cities)
		require.NoError(t, err)
		for _, c := range got.Cities {
			assert.False(t, c.Percentage.Defined())
		}
		assert.False(t, got.Min.Percentage.Defined())

		b, err := json.Marshal(got)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"percentage":null`)
		assert.NotContains(t, string(b), "NaN")
	})

	t.Run("no cities", func(t *testing.T) {
		_, err := ComputePopulation(100, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientData))
	})

	t.Run("malformed city", func(t *testing.T) {
		_, err := ComputePopulation(100, []models.CityRecord{
			{City: "ok", Population: 1},
			{City: "broken", Population: -5},
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedRecord))

		var recErr *models.RecordError
		require.True(t, errors.As(err, &recErr))
		assert.Equal(t, "broken", recErr.City)
	})
}
