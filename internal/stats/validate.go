package stats

import (
	"allergystats/internal/feeds/models"
	dErrors "allergystats/pkg/domain-errors"
)

func validateCities(cities []models.CityRecord) error {
	if len(cities) == 0 {
		return dErrors.New(dErrors.CodeInsufficientData, "no cities to aggregate")
	}
	for _, c := range cities {
		if err := c.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeMalformedRecord, err.Error())
		}
	}
	return nil
}
